package plan

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/worker"
)

const expandSystem = `You generate search queries for a regulatory document index covering Australian financial services law and regulatory guides. You respond only with valid JSON.`

const expandPromptTemplate = `Generate 5 to 8 search strings for this research task. Mix statutory phrasing ("credit activity", "responsible lending obligations") with regulatory-guide phrasing ("RG 209", "licensing requirements").

Task: %s
Category: %s
Keywords: %s

Respond with JSON:
{"search_terms": ["search string", "..."]}`

type expandResult struct {
	SearchTerms []string `json:"search_terms"`
}

func (r *expandResult) Validate() error {
	if len(r.SearchTerms) == 0 {
		return fmt.Errorf("no search terms")
	}
	return nil
}

// Expander turns plan items into concrete search strings
type Expander struct {
	provider llm.Provider
	workers  int
	logger   *zap.Logger
}

// NewExpander creates the query-expansion stage
func NewExpander(provider llm.Provider, workers int, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{provider: provider, workers: workers, logger: logger}
}

// Expand populates SearchTerms on every plan item. A failed expansion falls
// back to the item's own keywords so retrieval always has something to send.
func (e *Expander) Expand(ctx context.Context, state *model.RunState) error {
	outcomes := worker.Map(ctx, state.Plan, e.workers, func(ctx context.Context, item model.PlanItem) ([]string, error) {
		return e.expandItem(ctx, item)
	})

	fallbacks := 0
	for i, outcome := range outcomes {
		if outcome.Skipped {
			fallbacks++
			state.Plan[i].SearchTerms = fallbackTerms(state.Plan[i])
			continue
		}
		state.Plan[i].SearchTerms = outcome.Value
	}

	e.logger.Info("query expansion complete",
		zap.Int("items", len(state.Plan)),
		zap.Int("keyword_fallbacks", fallbacks))
	return nil
}

func (e *Expander) expandItem(ctx context.Context, item model.PlanItem) ([]string, error) {
	prompt := fmt.Sprintf(expandPromptTemplate,
		item.Task, item.Category, strings.Join(item.TopicKeywords, ", "))

	result, err := llm.Invoke[expandResult](ctx, e.provider, "expand search terms", llm.Request{
		System: expandSystem,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", item.ID, err)
	}
	return result.SearchTerms, nil
}

// fallbackTerms builds search strings from what the item already carries
func fallbackTerms(item model.PlanItem) []string {
	terms := []string{item.Task}
	if len(item.TopicKeywords) > 0 {
		terms = append(terms, strings.Join(item.TopicKeywords, " "))
	}
	return terms
}
