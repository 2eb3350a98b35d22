// Package plan turns a raw user query into an executable research plan:
// understanding, planning over the category taxonomy, scope validation, and
// per-task query expansion.
package plan

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

const understandSystem = `You are a regulatory compliance analyst for Australian financial services. You classify business descriptions so the right regulatory obligations can be researched. You respond only with valid JSON.`

const understandPromptTemplate = `Classify the business described in the query below.

Query:
%s

Respond with JSON:
{
  "product_type": "e.g. consumer_credit, margin_lending, deposit_products, general",
  "business_model": "e.g. lender, broker, aggregator, adviser, other",
  "license_class_required": ["ACL", "AFSL"],
  "jurisdiction": "e.g. all_australia, nsw",
  "query_intent": "e.g. full_obligation_register, specific_topic",
  "confidence": 0.0,
  "ambiguities": ["anything unclear in the query"],
  "regulatory_scope": ["ASIC", "APRA", "AUSTRAC", "OAIC"]
}

confidence is your confidence in this classification, between 0.0 and 1.0.`

// Understander produces the business context for a query
type Understander struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewUnderstander creates the query-understanding stage
func NewUnderstander(provider llm.Provider, logger *zap.Logger) *Understander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Understander{provider: provider, logger: logger}
}

// Understand classifies the query. Failure falls back to the conservative
// default context so the run always proceeds with some scope.
func (u *Understander) Understand(ctx context.Context, state *model.RunState) error {
	result, err := llm.Invoke[model.BusinessContext](ctx, u.provider, "understand query", llm.Request{
		System: understandSystem,
		Prompt: fmt.Sprintf(understandPromptTemplate, state.Query),
	})
	if err != nil {
		state.Context = model.DefaultBusinessContext()
		state.AddError(fmt.Sprintf("query understanding: %v", err))
		u.logger.Warn("query understanding failed, using default context", zap.Error(err))
		return nil
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	if result.ProductType == "" {
		result.ProductType = "general"
	}
	state.Context = *result

	u.logger.Info("query understood",
		zap.String("product_type", result.ProductType),
		zap.String("business_model", result.BusinessModel),
		zap.Float64("confidence", result.Confidence))
	return nil
}
