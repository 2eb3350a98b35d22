package trust

import (
	"context"
	"fmt"
	"strings"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

// GroundingGate verifies the retrieved passages are traceable to a source
// before any extraction spends calls on them. Entirely local.
type GroundingGate struct{}

// NewGroundingGate creates the source-traceability gate
func NewGroundingGate() *GroundingGate { return &GroundingGate{} }

func (g *GroundingGate) Name() string { return "grounding" }

// Check escalates per chunk missing source metadata and blocks only when not
// a single chunk is traceable: a register built from untraceable text would
// be ungrounded by construction.
func (g *GroundingGate) Check(ctx context.Context, state *model.RunState) (model.GateAction, []string, error) {
	if len(state.Chunks) == 0 {
		return model.GateBlock, []string{"no passages retrieved"}, nil
	}

	var flags []string
	traceable := 0
	for _, chunk := range state.Chunks {
		if chunk.Regulator != "" && chunk.DocumentName != "" {
			traceable++
			continue
		}
		flags = append(flags, fmt.Sprintf("chunk %s missing source metadata", chunk.ID))
	}

	if traceable == 0 {
		return model.GateBlock, append(flags, "no traceable passages"), nil
	}
	if len(flags) > 0 {
		return model.GateEscalate, flags, nil
	}
	return model.GateContinue, nil, nil
}

// ValidateGrounding stamps each canonical obligation's trust record. An
// obligation is grounded when every citation it carries passes the grounding
// invariants and its primary excerpt appears in the source passage (when
// that passage is still available in run state).
func ValidateGrounding(state *model.RunState, minExcerpt int) {
	for i := range state.Canonical {
		o := &state.Canonical[i]
		o.TrustValidation.GroundingValidated = groundingValid(o, state, minExcerpt)
		o.TrustValidation.PostureCompliant = true
		o.TrustValidation.NoLegalAdvice = true
		o.TrustValidation.PrivacyClear = len(state.TrustFlags) == 0
		o.TrustValidation.TrustFlags = state.TrustFlags
	}
}

func groundingValid(o *model.Obligation, state *model.RunState, minExcerpt int) bool {
	for _, g := range o.Citations() {
		if g.Validate(minExcerpt) != nil {
			return false
		}
	}
	return excerptInSource(o.SourceGrounding.VerbatimExcerpt, state)
}

// excerptInSource checks the excerpt against the retrieved passages. When the
// source chunk is no longer identifiable the citation-level checks stand
// alone.
func excerptInSource(excerpt string, state *model.RunState) bool {
	if len(state.Chunks) == 0 {
		return true
	}
	needle := normalizeSpace(excerpt)
	for _, chunk := range state.Chunks {
		if strings.Contains(normalizeSpace(chunk.Text), needle) {
			return true
		}
	}
	return false
}

func normalizeSpace(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
