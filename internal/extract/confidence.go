package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/worker"
)

// fallbackScore is assigned when scoring fails for an obligation. It lands in
// the review band so an unscored obligation is never presented as reliable.
const fallbackScore = 0.5

const scoringSystem = `You are a regulatory compliance analyst. You assess how confident a reader should be that an extracted obligation faithfully represents its source. You respond only with valid JSON.`

const scoringPromptTemplate = `Score the extraction below.

Obligation statement:
%s

Source: %s, %s %s
Verbatim excerpt:
"""
%s
"""

Consider:
- Does the statement follow directly from the excerpt, without inference?
- Is the source authoritative for this obligation (primary law > regulatory guide > commentary)?
- Is the obligation stated unconditionally or does its applicability depend on facts not in the source?

Respond with JSON:
{
  "confidence_score": 0.0,
  "certainty_level": "CERTAIN|LIKELY|UNCERTAIN",
  "reasoning": "brief justification"
}

confidence_score is between 0.0 and 1.0.`

type scoreResult struct {
	ConfidenceScore float64              `json:"confidence_score"`
	CertaintyLevel  model.CertaintyLevel `json:"certainty_level"`
	Reasoning       string               `json:"reasoning"`
}

// Scorer assigns confidence scores to atomic obligations
type Scorer struct {
	provider llm.Provider
	cfg      model.PipelineConfig
	logger   *zap.Logger
}

// NewScorer creates the confidence-scoring stage
func NewScorer(provider llm.Provider, cfg model.PipelineConfig, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{provider: provider, cfg: cfg, logger: logger}
}

// Score fans scoring out over the obligations. A scoring failure keeps the
// obligation with the conservative fallback score rather than dropping it.
// The confidence level is always derived from the score, never taken from
// the model, so level and score cannot disagree.
func (s *Scorer) Score(ctx context.Context, state *model.RunState) error {
	outcomes := worker.Map(ctx, state.Obligations, s.cfg.Workers, func(ctx context.Context, o model.Obligation) (model.Obligation, error) {
		return s.score(ctx, o)
	})

	scored := make([]model.Obligation, 0, len(state.Obligations))
	failed := 0
	for i, outcome := range outcomes {
		if outcome.Skipped {
			failed++
			o := state.Obligations[i]
			o.ConfidenceScore = fallbackScore
			o.ConfidenceLevel = model.LevelForScore(fallbackScore)
			o.CertaintyLevel = model.CertaintyUncertain
			scored = append(scored, o)
			state.AddError(fmt.Sprintf("scoring %s: %v", o.ObligationID, outcome.Err))
			continue
		}
		scored = append(scored, outcome.Value)
	}
	state.Obligations = scored

	s.logger.Info("scoring complete",
		zap.Int("obligations", len(scored)),
		zap.Int("fallback_scored", failed))
	return nil
}

func (s *Scorer) score(ctx context.Context, o model.Obligation) (model.Obligation, error) {
	g := o.SourceGrounding
	prompt := fmt.Sprintf(scoringPromptTemplate,
		o.Statement, g.Regulator, g.LegalInstrument, g.SectionClause, g.VerbatimExcerpt)

	result, err := llm.Invoke[scoreResult](ctx, s.provider, "score obligation", llm.Request{
		System: scoringSystem,
		Prompt: prompt,
	})
	if err != nil {
		return model.Obligation{}, err
	}

	score := result.ConfidenceScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	o.ConfidenceScore = score
	o.ConfidenceLevel = model.LevelForScore(score)
	o.CertaintyLevel = result.CertaintyLevel
	if o.CertaintyLevel == "" {
		o.CertaintyLevel = model.CertaintyUncertain
	}
	return o, nil
}
