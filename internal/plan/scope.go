package plan

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

const scopeSystem = `You are a regulatory compliance reviewer. You check research plans for coverage gaps. You respond only with valid JSON.`

const scopePromptTemplate = `Review this research plan for a %s %s business requiring %s.

Plan:
%s

Respond with JSON:
{
  "complete": true,
  "missing_topics": ["obligation areas the plan does not cover"],
  "additional_tasks": [
    {
      "category": "one of: %s",
      "task": "what to research",
      "topic_keywords": [],
      "regulatory_sources": [],
      "priority": "high|medium|low"
    }
  ]
}

Only add tasks for genuine gaps. An empty additional_tasks list is the expected answer for a complete plan.`

type scopeResult struct {
	Complete        bool             `json:"complete"`
	MissingTopics   []string         `json:"missing_topics,omitempty"`
	AdditionalTasks []model.PlanItem `json:"additional_tasks,omitempty"`
}

// ScopeValidator reviews the plan for coverage gaps and fills them
type ScopeValidator struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewScopeValidator creates the scope-validation stage
func NewScopeValidator(provider llm.Provider, logger *zap.Logger) *ScopeValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeValidator{provider: provider, logger: logger}
}

// Validate appends any gap-filling tasks to the plan. Failure degrades to
// accepting the plan as-is.
func (v *ScopeValidator) Validate(ctx context.Context, state *model.RunState) error {
	var b strings.Builder
	for _, item := range state.Plan {
		fmt.Fprintf(&b, "%d. [%s] %s\n", item.ID, item.Category, item.Task)
	}

	bc := state.Context
	prompt := fmt.Sprintf(scopePromptTemplate,
		bc.ProductType, bc.BusinessModel, strings.Join(bc.LicenseClassRequired, ", "),
		b.String(), strings.Join(model.Categories, "; "))

	result, err := llm.Invoke[scopeResult](ctx, v.provider, "validate plan scope", llm.Request{
		System: scopeSystem,
		Prompt: prompt,
	})
	if err != nil {
		state.PlanValidated = true
		state.AddError(fmt.Sprintf("scope validation: %v", err))
		v.logger.Warn("scope validation failed, accepting plan", zap.Error(err))
		return nil
	}

	added := 0
	for _, task := range result.AdditionalTasks {
		if strings.TrimSpace(task.Task) == "" {
			continue
		}
		task.ID = len(state.Plan) + 1
		task.Status = model.PlanPending
		state.Plan = append(state.Plan, task)
		added++
	}
	state.PlanValidated = true

	v.logger.Info("plan scope validated",
		zap.Bool("complete", result.Complete),
		zap.Strings("missing_topics", result.MissingTopics),
		zap.Int("tasks_added", added))
	return nil
}
