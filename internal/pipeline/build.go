package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/applicability"
	"github.com/PubuduLasith093/RiskSafeAI/internal/extract"
	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/normalize"
	"github.com/PubuduLasith093/RiskSafeAI/internal/plan"
	"github.com/PubuduLasith093/RiskSafeAI/internal/retrieval"
	"github.com/PubuduLasith093/RiskSafeAI/internal/trust"
)

// Build assembles the standard stage sequence from configuration. All
// collaborators come in through this one seam, so tests swap in fakes at any
// depth.
func Build(cfg *model.Config, provider llm.Provider, embedder normalize.Embedder, searcher retrieval.Searcher, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	understander := plan.NewUnderstander(provider, logger)
	planner := plan.NewPlanner(provider, logger)
	scope := plan.NewScopeValidator(provider, logger)
	expander := plan.NewExpander(provider, cfg.Pipeline.Workers, logger)
	retriever := retrieval.NewService(searcher, cfg.Retrieval, logger)

	gates := trust.NewSequence(logger,
		trust.NewPostureGate(provider),
		trust.NewPrivacyGate(provider, cfg.Trust.ChunkSampleSize),
		trust.NewGroundingGate(),
	)

	detector := extract.NewDetector(provider, cfg.Pipeline, logger)
	atomizer := extract.NewAtomizer(provider, cfg.Pipeline, cfg.Trust.MinExcerptLength, logger)
	scorer := extract.NewScorer(provider, cfg.Pipeline, logger)

	clusterer := normalize.NewClusterer(embedder, cfg.Pipeline.ClusterThreshold, logger)
	normalizer := normalize.NewNormalizer(provider, clusterer, cfg.Pipeline, logger)
	analyzer := applicability.NewAnalyzer(provider, cfg.Pipeline, logger)
	safety := trust.NewSafetyValidator(provider, cfg.Trust, logger)

	return New(logger,
		StageFunc{"understand", understander.Understand},
		StageFunc{"plan", planner.Plan},
		StageFunc{"scope", scope.Validate},
		StageFunc{"expand", expander.Expand},
		StageFunc{"retrieve", retriever.ExecutePlan},
		StageFunc{"trust", func(ctx context.Context, state *model.RunState) error {
			gates.Run(ctx, state)
			return nil
		}},
		StageFunc{"detect", detector.Detect},
		StageFunc{"atomize", atomizer.Atomize},
		StageFunc{"score", scorer.Score},
		StageFunc{"normalize", normalizer.Normalize},
		StageFunc{"applicability", analyzer.Analyze},
		StageFunc{"safety", safety.Validate},
	)
}
