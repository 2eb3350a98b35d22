package trust

import (
	"context"
	"errors"
	"testing"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

const sourceText = "A credit licensee must lodge an annual compliance certificate within 45 days after the licensing anniversary."

func groundedObligation(id string, score float64) model.Obligation {
	return model.Obligation{
		ObligationID: id,
		Statement:    "A credit licensee must lodge an annual compliance certificate",
		SourceGrounding: model.SourceGrounding{
			Regulator:       "ASIC",
			LegalInstrument: "NCCP Act 2009",
			SectionClause:   "s 53",
			VerbatimExcerpt: sourceText,
		},
		ConfidenceScore: score,
		ConfidenceLevel: model.LevelForScore(score),
	}
}

func trustConfig() model.TrustConfig {
	return model.TrustConfig{ReviewThreshold: 0.90, MinExcerptLength: 20, ChunkSampleSize: 5}
}

func approveProvider() *fakeProvider {
	return &fakeProvider{complete: func(req llm.Request) (string, error) {
		return `{"action": "APPROVE", "flags": []}`, nil
	}}
}

func stateWithSource(obligations ...model.Obligation) *model.RunState {
	state := model.NewRunState("run-1", "q")
	state.Chunks = []model.Chunk{{ID: "c1", Text: sourceText, Regulator: "ASIC", DocumentName: "NCCP Act 2009"}}
	state.Canonical = obligations
	return state
}

func TestValidateHighConfidenceShipsWithoutReview(t *testing.T) {
	v := NewSafetyValidator(approveProvider(), trustConfig(), nil)
	state := stateWithSource(groundedObligation("CANONICAL-0001", 0.95))

	if err := v.Validate(context.Background(), state); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(state.FinalOutput) != 1 {
		t.Fatalf("final output = %d, want 1", len(state.FinalOutput))
	}
	if len(state.ReviewPackages) != 0 {
		t.Errorf("review packages = %v, want none", state.ReviewPackages)
	}
	if !state.FinalOutput[0].TrustValidation.GroundingValidated {
		t.Error("grounded obligation should validate")
	}
}

func TestValidateLowConfidenceGetsReviewPackage(t *testing.T) {
	v := NewSafetyValidator(approveProvider(), trustConfig(), nil)
	state := stateWithSource(groundedObligation("CANONICAL-0001", 0.65))

	if err := v.Validate(context.Background(), state); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(state.FinalOutput) != 1 {
		t.Fatal("review is advisory: the obligation must still ship")
	}
	if state.FinalOutput[0].HumanReviewed {
		t.Error("human_reviewed must remain false")
	}
	if len(state.ReviewPackages) != 1 {
		t.Fatalf("review packages = %d, want 1", len(state.ReviewPackages))
	}
	pkg := state.ReviewPackages[0]
	if pkg.ObligationID != "CANONICAL-0001" {
		t.Errorf("package obligation = %s", pkg.ObligationID)
	}
	if len(pkg.Reasons) < 2 {
		t.Errorf("reasons = %v, want score and level reasons", pkg.Reasons)
	}
}

func TestValidateUngroundedGetsReviewPackage(t *testing.T) {
	v := NewSafetyValidator(approveProvider(), trustConfig(), nil)
	o := groundedObligation("CANONICAL-0001", 0.95)
	o.SourceGrounding.VerbatimExcerpt = "this text appears in no retrieved passage at all"
	state := stateWithSource(o)

	if err := v.Validate(context.Background(), state); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if state.FinalOutput[0].TrustValidation.GroundingValidated {
		t.Error("excerpt absent from every passage must fail grounding")
	}
	if len(state.ReviewPackages) != 1 {
		t.Fatalf("review packages = %d, want 1", len(state.ReviewPackages))
	}
}

func TestValidateBlockEmptiesOutput(t *testing.T) {
	provider := &fakeProvider{complete: func(req llm.Request) (string, error) {
		return `{"action": "BLOCK", "flags": ["register constitutes advice"]}`, nil
	}}
	v := NewSafetyValidator(provider, trustConfig(), nil)
	state := stateWithSource(groundedObligation("CANONICAL-0001", 0.95))

	if err := v.Validate(context.Background(), state); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(state.FinalOutput) != 0 {
		t.Errorf("final output = %d, want empty on BLOCK", len(state.FinalOutput))
	}
	if state.ShouldContinue {
		t.Error("BLOCK must clear should-continue")
	}
	found := false
	for _, e := range state.Errors {
		if len(e) >= 7 && e[:7] == "BLOCKED" {
			found = true
		}
	}
	if !found {
		t.Errorf("errors = %v, want BLOCKED entry", state.Errors)
	}
}

func TestValidateReviewerFailureDoesNotBlock(t *testing.T) {
	provider := &fakeProvider{complete: func(req llm.Request) (string, error) {
		return "", errors.New("backend down")
	}}
	v := NewSafetyValidator(provider, trustConfig(), nil)
	state := stateWithSource(groundedObligation("CANONICAL-0001", 0.95))

	if err := v.Validate(context.Background(), state); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(state.FinalOutput) != 1 {
		t.Error("an unreachable reviewer must not block a grounded register")
	}
	if len(state.TrustFlags) == 0 {
		t.Error("reviewer failure should be flagged")
	}
}
