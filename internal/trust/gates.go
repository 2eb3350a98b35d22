// Package trust implements the gate sequence that enforces the
// information-only posture: no legal advice, no personal information, no
// ungrounded claims.
package trust

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

// Gate is one trust check in the sequence. It inspects run state and returns
// the transition to take.
type Gate interface {
	Name() string
	Check(ctx context.Context, state *model.RunState) (model.GateAction, []string, error)
}

// Sequence runs gates in order. BLOCK is absorbing: it clears the
// should-continue flag, records the blocking gate, and stops the sequence.
// ESCALATE appends trust flags and proceeds. A gate error is treated as
// ESCALATE rather than BLOCK so an unreachable checker never silently kills
// a run.
type Sequence struct {
	gates  []Gate
	logger *zap.Logger
}

// NewSequence creates a gate sequence
func NewSequence(logger *zap.Logger, gates ...Gate) *Sequence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequence{gates: gates, logger: logger}
}

// Run executes the sequence against the run state
func (s *Sequence) Run(ctx context.Context, state *model.RunState) {
	for _, gate := range s.gates {
		action, flags, err := gate.Check(ctx, state)
		if err != nil {
			s.logger.Warn("trust gate errored, escalating",
				zap.String("gate", gate.Name()),
				zap.Error(err))
			state.TrustFlags = append(state.TrustFlags, fmt.Sprintf("%s: check failed: %v", gate.Name(), err))
			continue
		}

		switch action {
		case model.GateBlock:
			state.ShouldContinue = false
			state.TrustCheckPassed = false
			state.TrustFlags = append(state.TrustFlags, flags...)
			state.AddError(fmt.Sprintf("BLOCKED: %s gate halted the run", gate.Name()))
			s.logger.Warn("trust gate blocked run",
				zap.String("gate", gate.Name()),
				zap.Strings("flags", flags))
			return
		case model.GateEscalate:
			state.TrustFlags = append(state.TrustFlags, flags...)
			s.logger.Info("trust gate escalated",
				zap.String("gate", gate.Name()),
				zap.Strings("flags", flags))
		default:
			// CONTINUE
		}
	}
	state.TrustCheckPassed = true
}
