package plan

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

const planSystem = `You are a regulatory compliance research planner for Australian financial services. You respond only with valid JSON.`

const planPromptTemplate = `Produce a research plan for compiling the complete obligation register for this business.

Business context:
- Product type: %s
- Business model: %s
- Licenses: %s
- Jurisdiction: %s

Create 12 to 18 research tasks. Every task belongs to exactly one of these categories:
%s

Respond with JSON:
{
  "plan": [
    {
      "id": 1,
      "category": "one of the categories above, verbatim",
      "task": "what to research",
      "topic_keywords": ["terms central to the task"],
      "regulatory_sources": ["ASIC", "APRA"],
      "priority": "high|medium|low"
    }
  ]
}

Cover every category at least once. Prioritize licensing and conduct tasks for unlicensed businesses.`

type planResult struct {
	Plan []model.PlanItem `json:"plan"`
}

func (r *planResult) Validate() error {
	if len(r.Plan) == 0 {
		return fmt.Errorf("empty plan")
	}
	valid := make(map[string]bool, len(model.Categories))
	for _, c := range model.Categories {
		valid[c] = true
	}
	for i, item := range r.Plan {
		if strings.TrimSpace(item.Task) == "" {
			return fmt.Errorf("plan item %d: empty task", i)
		}
		if !valid[item.Category] {
			return fmt.Errorf("plan item %d: unknown category %q", i, item.Category)
		}
	}
	return nil
}

// Planner produces the research plan from the business context
type Planner struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewPlanner creates the planning stage
func NewPlanner(provider llm.Provider, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{provider: provider, logger: logger}
}

// Plan generates the research tasks. Planning is the one understanding stage
// with no degraded mode: without a plan there is nothing to retrieve.
func (p *Planner) Plan(ctx context.Context, state *model.RunState) error {
	bc := state.Context
	prompt := fmt.Sprintf(planPromptTemplate,
		bc.ProductType, bc.BusinessModel,
		strings.Join(bc.LicenseClassRequired, ", "), bc.Jurisdiction,
		"- "+strings.Join(model.Categories, "\n- "))

	result, err := llm.Invoke[planResult](ctx, p.provider, "create research plan", llm.Request{
		System: planSystem,
		Prompt: prompt,
	})
	if err != nil {
		return fmt.Errorf("create research plan: %w", err)
	}

	items := result.Plan
	for i := range items {
		items[i].ID = i + 1
		items[i].Status = model.PlanPending
	}
	state.Plan = items

	p.logger.Info("research plan created", zap.Int("items", len(items)))
	return nil
}
