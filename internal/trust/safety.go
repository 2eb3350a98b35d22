package trust

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

const safetySystem = `You are a compliance safety reviewer performing the final check on a regulatory obligation register. You respond only with valid JSON.`

const safetyPromptTemplate = `Review the obligation register summary below before release. The register must contain only factual, cited regulatory obligations: no legal advice, no recommendations on specific situations, no ungrounded claims.

Query: %s

Register summary (%d obligations):
%s

Respond with JSON:
{
  "action": "APPROVE|REVIEW_REQUIRED|BLOCK",
  "flags": ["reason for any REVIEW_REQUIRED or BLOCK"]
}

BLOCK only when releasing the register would constitute legal advice or cause harm. REVIEW_REQUIRED when specific entries need a human check before reliance. APPROVE otherwise.`

type safetyResult struct {
	Action model.GateAction `json:"action"`
	Flags  []string         `json:"flags,omitempty"`
}

func (r *safetyResult) Validate() error {
	switch r.Action {
	case model.GateApprove, model.GateReviewRequired, model.GateBlock:
		return nil
	}
	return fmt.Errorf("unknown safety action %q", r.Action)
}

// SafetyValidator is the final gate. It stamps grounding, computes the
// review-required set, and can still block release.
type SafetyValidator struct {
	provider llm.Provider
	cfg      model.TrustConfig
	logger   *zap.Logger
}

// NewSafetyValidator creates the final safety stage
func NewSafetyValidator(provider llm.Provider, cfg model.TrustConfig, logger *zap.Logger) *SafetyValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SafetyValidator{provider: provider, cfg: cfg, logger: logger}
}

// Validate runs the final check over the canonical register. On BLOCK the
// final output is emptied and an explicit error recorded; otherwise every
// obligation below the review threshold, below the HIGH confidence band, or
// failing grounding validation is packaged for human review. Review is
// advisory: flagged obligations still ship, unreviewed.
func (v *SafetyValidator) Validate(ctx context.Context, state *model.RunState) error {
	ValidateGrounding(state, v.cfg.MinExcerptLength)

	action, flags, err := v.modelCheck(ctx, state)
	if err != nil {
		// An unreachable reviewer must not block release of a grounded
		// register; flag it instead
		state.TrustFlags = append(state.TrustFlags, fmt.Sprintf("safety check failed: %v", err))
		v.logger.Warn("final safety check errored", zap.Error(err))
		action = model.GateReviewRequired
	}

	if action == model.GateBlock {
		state.ShouldContinue = false
		state.TrustCheckPassed = false
		state.FinalOutput = []model.Obligation{}
		state.TrustFlags = append(state.TrustFlags, flags...)
		state.AddError("BLOCKED: final safety validation rejected the register")
		v.logger.Warn("final safety validation blocked register", zap.Strings("flags", flags))
		return nil
	}

	state.TrustFlags = append(state.TrustFlags, flags...)
	state.ReviewPackages = v.reviewSet(state.Canonical)
	for i := range state.Canonical {
		state.Canonical[i].TrustValidation.Action = action
	}
	state.FinalOutput = state.Canonical

	v.logger.Info("final safety validation complete",
		zap.String("action", string(action)),
		zap.Int("obligations", len(state.FinalOutput)),
		zap.Int("review_required", len(state.ReviewPackages)))
	return nil
}

func (v *SafetyValidator) modelCheck(ctx context.Context, state *model.RunState) (model.GateAction, []string, error) {
	if len(state.Canonical) == 0 {
		return model.GateApprove, nil, nil
	}

	var b strings.Builder
	for _, o := range state.Canonical {
		fmt.Fprintf(&b, "- [%s] (%.2f %s) %s\n", o.ObligationID, o.ConfidenceScore, o.ConfidenceLevel, o.Statement)
	}

	result, err := llm.Invoke[safetyResult](ctx, v.provider, "final safety validation", llm.Request{
		System: safetySystem,
		Prompt: fmt.Sprintf(safetyPromptTemplate, state.Query, len(state.Canonical), b.String()),
	})
	if err != nil {
		return model.GateReviewRequired, nil, err
	}
	return result.Action, result.Flags, nil
}

// reviewSet packages every obligation needing a human check
func (v *SafetyValidator) reviewSet(obligations []model.Obligation) []model.ReviewPackage {
	var packages []model.ReviewPackage
	for _, o := range obligations {
		var reasons []string
		if o.ConfidenceScore < v.cfg.ReviewThreshold {
			reasons = append(reasons, fmt.Sprintf("confidence score %.2f below %.2f", o.ConfidenceScore, v.cfg.ReviewThreshold))
		}
		if o.ConfidenceLevel == model.ConfidenceMedium || o.ConfidenceLevel == model.ConfidenceLow {
			reasons = append(reasons, fmt.Sprintf("confidence level %s", o.ConfidenceLevel))
		}
		if !o.TrustValidation.GroundingValidated {
			reasons = append(reasons, "grounding not validated")
		}
		if len(reasons) == 0 {
			continue
		}
		packages = append(packages, model.ReviewPackage{
			ObligationID:    o.ObligationID,
			Reasons:         reasons,
			SuggestedAction: "verify against the cited source before reliance",
		})
	}
	return packages
}
