package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

// Validator is implemented by extraction output types that enforce
// required-field checks beyond what JSON decoding gives
type Validator interface {
	Validate() error
}

// Invoke runs one structured extraction call: completion, fence stripping,
// JSON decode into T, then T's own validation. Transport failures surface as
// model.TransportError and malformed output as model.SchemaError so callers
// can skip the affected item without aborting their batch.
func Invoke[T any](ctx context.Context, p Provider, op string, req Request) (*T, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, &model.TransportError{Op: op, Err: err}
	}

	raw := StripFences(resp.Text)

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &model.SchemaError{Op: op, Reason: "invalid JSON: " + err.Error()}
	}

	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, &model.SchemaError{Op: op, Reason: err.Error()}
		}
	}

	return &out, nil
}

// StripFences removes markdown code fences that models wrap JSON output in
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
