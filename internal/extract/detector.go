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

const detectionSystem = `You are a regulatory compliance analyst. You identify obligations in Australian financial services regulation. You respond only with valid JSON.`

const detectionPromptTemplate = `Identify every regulatory obligation stated in the passage below.

An obligation is a statement that a regulated entity must do something, must not do something, or must do something when a condition holds. Obligation language includes: "must", "shall", "is required to", "is obliged to", "must not", "cannot", "is prohibited from". Guidance language ("should", "ASIC expects", "we encourage") is NON_BINDING_GUIDANCE. Background or descriptive text is INFORMATIONAL_CONTENT.

Business context:
%s

Source: %s, %s %s

Passage:
"""
%s
"""

Respond with JSON:
{
  "obligations": [
    {
      "obligation_statement": "complete self-contained restatement",
      "obligation_type": "MANDATORY_OBLIGATION|CONDITIONAL_OBLIGATION|NON_BINDING_GUIDANCE|INFORMATIONAL_CONTENT",
      "action_type": "MUST_DO|MUST_NOT_DO|CONDITIONAL",
      "subject": "who must comply",
      "action": "what must be done",
      "trigger": "condition, if any",
      "object_scope": "what the action applies to, if stated",
      "standard": "required standard or timeframe, if stated",
      "reasoning": "brief justification",
      "detection_confidence": 0.0
    }
  ]
}

Return {"obligations": []} when the passage contains no obligations. Do not invent obligations that are not in the passage.`

// detectionResult is the structured reply for one passage
type detectionResult struct {
	Obligations []model.DetectedObligation `json:"obligations"`
}

// Validate drops replies whose entries are missing the statement
func (r *detectionResult) Validate() error {
	for i, o := range r.Obligations {
		if strings.TrimSpace(o.Statement) == "" {
			return fmt.Errorf("obligation %d: empty statement", i)
		}
	}
	return nil
}

// Detector runs obligation detection over the retrieved passages
type Detector struct {
	provider llm.Provider
	cfg      model.PipelineConfig
	logger   *zap.Logger
}

// NewDetector creates the detection stage
func NewDetector(provider llm.Provider, cfg model.PipelineConfig, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{provider: provider, cfg: cfg, logger: logger}
}

// Detect fans detection out over the top-ranked chunks, up to the chunk
// cap. A failed chunk is skipped and logged; the run continues with the
// rest. Results keep chunk order.
func (d *Detector) Detect(ctx context.Context, state *model.RunState) error {
	chunks := state.Chunks
	if d.cfg.ChunkCap > 0 && len(chunks) > d.cfg.ChunkCap {
		d.logger.Info("capping detection input",
			zap.Int("retrieved", len(chunks)),
			zap.Int("cap", d.cfg.ChunkCap))
		chunks = chunks[:d.cfg.ChunkCap]
	}

	contextJSON := describeContext(state.Context)

	outcomes := worker.Map(ctx, chunks, d.cfg.Workers, func(ctx context.Context, chunk model.Chunk) ([]model.DetectedObligation, error) {
		return d.detectChunk(ctx, chunk, contextJSON)
	})

	state.Detected = worker.Collect(outcomes)
	for _, err := range worker.SkipErrors(outcomes) {
		state.AddError(fmt.Sprintf("detection: %v", err))
	}

	d.logger.Info("detection complete",
		zap.Int("chunks", len(chunks)),
		zap.Int("skipped", len(worker.SkipErrors(outcomes))),
		zap.Int("detected", len(state.Detected)))
	return nil
}

func (d *Detector) detectChunk(ctx context.Context, chunk model.Chunk, contextDesc string) ([]model.DetectedObligation, error) {
	passage := truncate(chunk.Text, d.cfg.PassageMaxChars)
	prompt := fmt.Sprintf(detectionPromptTemplate,
		contextDesc, chunk.Regulator, chunk.DocumentName, chunk.Section, passage)

	result, err := llm.Invoke[detectionResult](ctx, d.provider, "detect obligations", llm.Request{
		System: detectionSystem,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", chunk.ID, err)
	}

	detected := result.Obligations
	for i := range detected {
		detected[i].ChunkID = chunk.ID
		if detected[i].DetectionConfidence < 0 {
			detected[i].DetectionConfidence = 0
		}
		if detected[i].DetectionConfidence > 1 {
			detected[i].DetectionConfidence = 1
		}
	}
	return detected, nil
}

// describeContext renders the business context for prompt inclusion
func describeContext(bc model.BusinessContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Product type: %s\n", bc.ProductType)
	fmt.Fprintf(&b, "- Business model: %s\n", bc.BusinessModel)
	if len(bc.LicenseClassRequired) > 0 {
		fmt.Fprintf(&b, "- Licenses required: %s\n", strings.Join(bc.LicenseClassRequired, ", "))
	}
	fmt.Fprintf(&b, "- Jurisdiction: %s\n", bc.Jurisdiction)
	fmt.Fprintf(&b, "- Intent: %s", bc.QueryIntent)
	return b.String()
}

// truncate bounds a passage for prompt inclusion at a rune boundary
func truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
