package trust

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

const privacySystem = `You are a privacy reviewer. You scan text for personal information about identifiable individuals. Regulatory text naming officeholders in their official capacity is not personal information. You respond only with valid JSON.`

const privacyPromptTemplate = `Scan the text samples below for personal information: names of private individuals, contact details, account or identity numbers, health or financial details tied to a person.

Samples:
%s

Respond with JSON:
{
  "action": "CONTINUE|BLOCK|ESCALATE",
  "flags": ["description of any personal information found"]
}

ESCALATE when personal information appears incidentally in regulatory text. BLOCK only when the content is substantially about identifiable private individuals.`

var (
	tfnPattern   = regexp.MustCompile(`\b\d{3}[ -]?\d{3}[ -]?\d{3}\b`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// PrivacyGate scans a sample of retrieved passages for personal information
type PrivacyGate struct {
	provider   llm.Provider
	sampleSize int
}

// NewPrivacyGate creates the privacy/PII gate
func NewPrivacyGate(provider llm.Provider, sampleSize int) *PrivacyGate {
	if sampleSize <= 0 {
		sampleSize = 5
	}
	return &PrivacyGate{provider: provider, sampleSize: sampleSize}
}

func (g *PrivacyGate) Name() string { return "privacy" }

// Check runs the local pattern scan over every chunk and the model scan over
// the top sample. Pattern hits escalate rather than block: regulatory text
// legitimately contains example numbers.
func (g *PrivacyGate) Check(ctx context.Context, state *model.RunState) (model.GateAction, []string, error) {
	if len(state.Chunks) == 0 {
		return model.GateContinue, nil, nil
	}

	var flags []string
	for _, chunk := range state.Chunks {
		if emailPattern.MatchString(chunk.Text) {
			flags = append(flags, fmt.Sprintf("email address in chunk %s", chunk.ID))
		}
		if tfnPattern.MatchString(chunk.Text) {
			flags = append(flags, fmt.Sprintf("TFN-like number in chunk %s", chunk.ID))
		}
	}

	sample := state.Chunks
	if len(sample) > g.sampleSize {
		sample = sample[:g.sampleSize]
	}
	var b strings.Builder
	for i, chunk := range sample {
		fmt.Fprintf(&b, "--- sample %d (%s) ---\n%s\n", i+1, chunk.ID, truncateSample(chunk.Text, 1500))
	}

	result, err := llm.Invoke[gateResult](ctx, g.provider, "privacy scan", llm.Request{
		System: privacySystem,
		Prompt: fmt.Sprintf(privacyPromptTemplate, b.String()),
	})
	if err != nil {
		return model.GateContinue, flags, err
	}

	flags = append(flags, result.Flags...)
	action := result.Action
	if action == model.GateContinue && len(flags) > 0 {
		action = model.GateEscalate
	}
	return action, flags, nil
}

// truncateSample bounds a passage at a rune boundary so the prompt sample
// stays valid UTF-8
func truncateSample(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
