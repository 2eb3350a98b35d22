package trust

import (
	"context"
	"fmt"
	"strings"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

const postureSystem = `You are a compliance safety reviewer. You check whether responding to a query would cross from regulatory information into legal advice. You respond only with valid JSON.`

const posturePromptTemplate = `The system below compiles factual regulatory obligations with citations. It must never provide legal advice: no recommendations on specific disputes, no advice on avoiding or minimizing legal exposure, no opinions on the merits of a legal position.

Query:
%s

Respond with JSON:
{
  "action": "CONTINUE|BLOCK|ESCALATE",
  "flags": ["reason for any BLOCK or ESCALATE"]
}

CONTINUE when the query seeks regulatory obligations that apply to a business. ESCALATE when parts of it edge toward advice but an information-only register still serves it. BLOCK only when the query cannot be answered without giving legal advice or assisting evasion of the law.`

type gateResult struct {
	Action model.GateAction `json:"action"`
	Flags  []string         `json:"flags,omitempty"`
}

func (r *gateResult) Validate() error {
	switch r.Action {
	case model.GateContinue, model.GateBlock, model.GateEscalate:
		return nil
	}
	return fmt.Errorf("unknown gate action %q", r.Action)
}

// PostureGate checks the query itself before any retrieval output is used
type PostureGate struct {
	provider llm.Provider
}

// NewPostureGate creates the legal-advice posture gate
func NewPostureGate(provider llm.Provider) *PostureGate {
	return &PostureGate{provider: provider}
}

func (g *PostureGate) Name() string { return "posture" }

// Check classifies the query. Evasion-oriented phrasing is blocked even
// before the model is consulted.
func (g *PostureGate) Check(ctx context.Context, state *model.RunState) (model.GateAction, []string, error) {
	if flag, bad := evasionPhrase(state.Query); bad {
		return model.GateBlock, []string{flag}, nil
	}

	result, err := llm.Invoke[gateResult](ctx, g.provider, "posture check", llm.Request{
		System: postureSystem,
		Prompt: fmt.Sprintf(posturePromptTemplate, state.Query),
	})
	if err != nil {
		return model.GateContinue, nil, err
	}
	return result.Action, result.Flags, nil
}

// evasionPhrase screens for queries asking how to get around obligations
func evasionPhrase(query string) (string, bool) {
	q := strings.ToLower(query)
	for _, phrase := range []string{
		"avoid complying",
		"get around the",
		"circumvent",
		"without getting caught",
		"loophole",
	} {
		if strings.Contains(q, phrase) {
			return "query seeks to evade obligations: " + phrase, true
		}
	}
	return "", false
}
