package applicability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/worker"
)

const analysisSystem = `You are a regulatory compliance analyst. You determine the precise conditions under which a regulatory obligation applies to a business. You respond only with valid JSON.`

const analysisPromptTemplate = `Derive the applicability conditions for the obligation below.

Obligation:
%s

Subject: %s
Trigger: %s
Source: %s, %s %s

Business context:
%s

Respond with JSON:
{
  "applicability_factors": {
    "entity_type": ["which kinds of entities this binds"],
    "regulatory_status": ["licence or registration states that attract it"],
    "jurisdiction": ["where it applies"],
    "product_service": ["products or services in scope"],
    "customer_type": ["retail, wholesale, etc."],
    "thresholds": {"name": "value"},
    "operational": ["operational circumstances in scope"],
    "temporal": ["time-bound conditions"]
  },
  "applicability_rules": "IF <conditions> THEN this obligation applies",
  "exceptions": ["stated exceptions or carve-outs"],
  "evidence_expectations": ["records or artefacts a regulator would expect"]
}

Only include conditions supported by the obligation and its source. Leave dimensions empty rather than guessing.`

type analysisResult struct {
	Factors              model.ApplicabilityFactors `json:"applicability_factors"`
	Rules                string                     `json:"applicability_rules"`
	Exceptions           []string                   `json:"exceptions,omitempty"`
	EvidenceExpectations []string                   `json:"evidence_expectations,omitempty"`
}

func (r *analysisResult) Validate() error {
	if strings.TrimSpace(r.Rules) == "" {
		return fmt.Errorf("empty applicability rule")
	}
	return nil
}

// Analyzer enriches canonical obligations with applicability conditions
type Analyzer struct {
	provider llm.Provider
	cfg      model.PipelineConfig
	logger   *zap.Logger
}

// NewAnalyzer creates the applicability stage
func NewAnalyzer(provider llm.Provider, cfg model.PipelineConfig, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{provider: provider, cfg: cfg, logger: logger}
}

// Analyze enriches up to the batch cap of obligations; those beyond the cap
// pass through with their prior fields so the register is partially enriched
// rather than truncated. A per-item failure likewise keeps the obligation
// with its prior applicability fields.
func (a *Analyzer) Analyze(ctx context.Context, state *model.RunState) error {
	limit := a.cfg.ApplicabilityCap
	if limit <= 0 || limit > len(state.Canonical) {
		limit = len(state.Canonical)
	}
	batch := state.Canonical[:limit]

	outcomes := worker.Map(ctx, batch, a.cfg.Workers, func(ctx context.Context, o model.Obligation) (model.Obligation, error) {
		return a.analyze(ctx, o, state.Context)
	})

	enriched := make([]model.Obligation, 0, len(state.Canonical))
	failed := 0
	for i, outcome := range outcomes {
		if outcome.Skipped {
			failed++
			enriched = append(enriched, batch[i])
			state.AddError(fmt.Sprintf("applicability %s: %v", batch[i].ObligationID, outcome.Err))
			continue
		}
		enriched = append(enriched, outcome.Value)
	}
	enriched = append(enriched, state.Canonical[limit:]...)
	state.Canonical = enriched

	a.logger.Info("applicability analysis complete",
		zap.Int("analyzed", limit),
		zap.Int("failed", failed),
		zap.Int("passed_through", len(state.Canonical)-limit))
	return nil
}

func (a *Analyzer) analyze(ctx context.Context, o model.Obligation, bc model.BusinessContext) (model.Obligation, error) {
	g := o.SourceGrounding
	prompt := fmt.Sprintf(analysisPromptTemplate,
		o.Statement, o.Structure.Subject, o.Structure.Trigger,
		g.Regulator, g.LegalInstrument, g.SectionClause,
		describeContext(bc))

	result, err := llm.Invoke[analysisResult](ctx, a.provider, "analyze applicability", llm.Request{
		System: analysisSystem,
		Prompt: prompt,
	})
	if err != nil {
		return model.Obligation{}, err
	}

	o.ApplicabilityFactors = result.Factors
	o.ApplicabilityRules = result.Rules
	o.Exceptions = mergeUnique(o.Exceptions, result.Exceptions)
	o.EvidenceExpectations = result.EvidenceExpectations
	return o, nil
}

func describeContext(bc model.BusinessContext) string {
	return fmt.Sprintf("- Product type: %s\n- Business model: %s\n- Licenses: %s\n- Jurisdiction: %s",
		bc.ProductType, bc.BusinessModel, strings.Join(bc.LicenseClassRequired, ", "), bc.Jurisdiction)
}

func mergeUnique(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}
