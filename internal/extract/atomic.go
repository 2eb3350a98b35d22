package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/worker"
)

const atomicSystem = `You are a regulatory compliance analyst. You decompose compound regulatory obligations into atomic requirements, each independently satisfiable. You respond only with valid JSON.`

const atomicPromptTemplate = `Split the obligation below into atomic obligations. An atomic obligation has exactly one subject, one action, and at most one trigger condition. "Must do X and Y" is two obligations; "must do X when Z" is one.

If the obligation is already atomic, return it unchanged as a single entry.

Detected obligation:
%s

Source: %s, %s %s

Source passage:
"""
%s
"""

Respond with JSON:
{
  "obligations": [
    {
      "obligation_statement": "atomic, self-contained statement",
      "subject": "who must comply",
      "action": "the single required action",
      "trigger": "condition, if any",
      "object_scope": "what the action applies to, if stated",
      "standard": "required standard or timeframe, if stated",
      "obligation_type": "MANDATORY_OBLIGATION|CONDITIONAL_OBLIGATION|NON_BINDING_GUIDANCE|INFORMATIONAL_CONTENT",
      "action_type": "MUST_DO|MUST_NOT_DO|CONDITIONAL",
      "plain_english_explanation": "one sentence in plain language",
      "exceptions": [],
      "section_clause": "precise section or clause reference",
      "verbatim_excerpt": "exact supporting text copied from the source passage, at least %d characters"
    }
  ]
}

The verbatim_excerpt must be copied word for word from the source passage.`

// atomicEntry is one atomic obligation in the split reply
type atomicEntry struct {
	Statement       string               `json:"obligation_statement"`
	Subject         string               `json:"subject"`
	Action          string               `json:"action"`
	Trigger         string               `json:"trigger,omitempty"`
	ObjectScope     string               `json:"object_scope,omitempty"`
	Standard        string               `json:"standard,omitempty"`
	ObligationType  model.ObligationType `json:"obligation_type"`
	ActionType      model.ActionType     `json:"action_type"`
	PlainEnglish    string               `json:"plain_english_explanation"`
	Exceptions      []string             `json:"exceptions,omitempty"`
	SectionClause   string               `json:"section_clause"`
	VerbatimExcerpt string               `json:"verbatim_excerpt"`
}

type atomicResult struct {
	Obligations []atomicEntry `json:"obligations"`
}

func (r *atomicResult) Validate() error {
	if len(r.Obligations) == 0 {
		return fmt.Errorf("empty split result")
	}
	for i, e := range r.Obligations {
		if strings.TrimSpace(e.Statement) == "" {
			return fmt.Errorf("entry %d: empty statement", i)
		}
	}
	return nil
}

// Atomizer splits detected obligations into atomic requirements and builds
// the grounded obligation records
type Atomizer struct {
	provider   llm.Provider
	cfg        model.PipelineConfig
	minExcerpt int
	logger     *zap.Logger
}

// NewAtomizer creates the atomization stage. minExcerpt is the shortest
// verbatim excerpt accepted as grounding; non-positive falls back to the
// package default.
func NewAtomizer(provider llm.Provider, cfg model.PipelineConfig, minExcerpt int, logger *zap.Logger) *Atomizer {
	if minExcerpt <= 0 {
		minExcerpt = model.MinExcerptLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Atomizer{provider: provider, cfg: cfg, minExcerpt: minExcerpt, logger: logger}
}

// Atomize fans splitting out over the detected obligations, capped at the
// detection cap, then assigns sequential obligation IDs after the barrier.
// IDs are dense: a skipped item leaves no gap, and retrying a run with the
// same inputs yields the same IDs.
func (a *Atomizer) Atomize(ctx context.Context, state *model.RunState) error {
	detected := state.Detected
	if a.cfg.DetectionCap > 0 && len(detected) > a.cfg.DetectionCap {
		a.logger.Info("capping atomization input",
			zap.Int("detected", len(detected)),
			zap.Int("cap", a.cfg.DetectionCap))
		detected = detected[:a.cfg.DetectionCap]
	}

	outcomes := worker.Map(ctx, detected, a.cfg.Workers, func(ctx context.Context, d model.DetectedObligation) ([]model.Obligation, error) {
		chunk, ok := state.ChunkByID(d.ChunkID)
		if !ok {
			return nil, fmt.Errorf("detected obligation references unknown chunk %s", d.ChunkID)
		}
		return a.atomize(ctx, d, chunk)
	})

	obligations := worker.Collect(outcomes)
	for i := range obligations {
		obligations[i].ObligationID = fmt.Sprintf("OBL-%04d", i+1)
	}
	state.Obligations = obligations

	for _, err := range worker.SkipErrors(outcomes) {
		state.AddError(fmt.Sprintf("atomization: %v", err))
	}

	a.logger.Info("atomization complete",
		zap.Int("detected", len(detected)),
		zap.Int("atomic", len(obligations)))
	return nil
}

func (a *Atomizer) atomize(ctx context.Context, d model.DetectedObligation, chunk model.Chunk) ([]model.Obligation, error) {
	passage := truncate(chunk.Text, a.cfg.PassageMaxChars)
	prompt := fmt.Sprintf(atomicPromptTemplate,
		d.Statement, chunk.Regulator, chunk.DocumentName, chunk.Section, passage, a.minExcerpt)

	result, err := llm.Invoke[atomicResult](ctx, a.provider, "atomize obligation", llm.Request{
		System: atomicSystem,
		Prompt: prompt,
	})
	if err != nil {
		return nil, err
	}

	for i, e := range result.Obligations {
		if len(strings.TrimSpace(e.VerbatimExcerpt)) < a.minExcerpt {
			return nil, &model.SchemaError{
				Op:     "atomize obligation",
				Reason: fmt.Sprintf("entry %d: verbatim excerpt shorter than %d characters", i, a.minExcerpt),
			}
		}
	}

	obligations := make([]model.Obligation, 0, len(result.Obligations))
	for _, e := range result.Obligations {
		obligations = append(obligations, buildObligation(e, d, chunk))
	}
	return obligations, nil
}

// buildObligation assembles the grounded record from the split entry, the
// detection it came from, and the source chunk
func buildObligation(e atomicEntry, d model.DetectedObligation, chunk model.Chunk) model.Obligation {
	obligationType := e.ObligationType
	if obligationType == "" {
		obligationType = d.ObligationType
	}
	actionType := e.ActionType
	if actionType == "" {
		actionType = d.ActionType
	}
	section := e.SectionClause
	if section == "" {
		section = chunk.Section
	}

	return model.Obligation{
		Statement: e.Statement,
		SourceGrounding: model.SourceGrounding{
			Regulator:       chunk.Regulator,
			LegalInstrument: chunk.DocumentName,
			SectionClause:   section,
			VerbatimExcerpt: e.VerbatimExcerpt,
		},
		Structure: model.ObligationStructure{
			Subject:     e.Subject,
			Action:      e.Action,
			Trigger:     e.Trigger,
			ObjectScope: e.ObjectScope,
			Standard:    e.Standard,
		},
		ObligationType: obligationType,
		ActionType:     actionType,
		PlainEnglish:   e.PlainEnglish,
		Exceptions:     e.Exceptions,
	}
}
