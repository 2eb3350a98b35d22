// Package pipeline sequences the register-generation stages and owns the
// run state they share.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

// Stage is one step in the sequence. Stages read and write only their own
// phase's fields on the run state.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *model.RunState) error
}

// StageFunc adapts a function to the Stage interface
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, state *model.RunState) error
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Run(ctx context.Context, state *model.RunState) error {
	return s.Fn(ctx, state)
}

// Pipeline is the register-generation orchestrator: a linear stage sequence
// with one early-exit edge (a trust gate clearing should-continue).
type Pipeline struct {
	stages []Stage
	logger *zap.Logger
}

// New creates a pipeline over the given stages
func New(logger *zap.Logger, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{stages: stages, logger: logger}
}

// Generate runs the full sequence for one query and assembles the register.
// A stage error is fatal only for stages with no degraded mode (stages that
// can degrade handle their own failures and return nil). A cleared
// should-continue flag stops the sequence but still returns the register, so
// a blocked run reports its error entries to the caller.
func (p *Pipeline) Generate(ctx context.Context, query string) (*model.Register, error) {
	state := model.NewRunState(uuid.NewString(), query)
	logger := p.logger.With(zap.String("run_id", state.RunID))
	logger.Info("run started", zap.String("query", query))

	for _, stage := range p.stages {
		if !state.ShouldContinue {
			logger.Warn("run halted before stage", zap.String("stage", stage.Name()))
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled: %w", err)
		}

		start := time.Now()
		if err := stage.Run(ctx, state); err != nil {
			state.AddError(fmt.Sprintf("%s: %v", stage.Name(), err))
			logger.Error("stage failed",
				zap.String("stage", stage.Name()),
				zap.Error(err))
			return p.assemble(state), fmt.Errorf("%s: %w", stage.Name(), err)
		}
		logger.Debug("stage complete",
			zap.String("stage", stage.Name()),
			zap.Duration("elapsed", time.Since(start)))
	}

	register := p.assemble(state)
	logger.Info("run complete",
		zap.Int("obligations", register.Metadata.TotalObligations),
		zap.Int("review_required", register.Metadata.ReviewRequired),
		zap.Int64("duration_ms", register.Metadata.DurationMillis))
	return register, nil
}

func (p *Pipeline) assemble(state *model.RunState) *model.Register {
	elapsed := time.Since(state.StartedAt)
	return &model.Register{
		RunID:          state.RunID,
		Query:          state.Query,
		GeneratedAt:    time.Now().UTC(),
		Obligations:    state.FinalOutput,
		ReviewPackages: state.ReviewPackages,
		Errors:         state.Errors,
		Metadata:       model.BuildMetadata(state.FinalOutput, state.ReviewPackages, len(state.Chunks), elapsed),
	}
}
