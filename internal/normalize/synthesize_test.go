package normalize

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

type fakeProvider struct {
	complete func(req llm.Request) (string, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	text, err := f.complete(req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Text: text, Model: "fake"}, nil
}

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func mergeReply(statement, standard string) func(llm.Request) (string, error) {
	return func(req llm.Request) (string, error) {
		return fmt.Sprintf(`{"should_merge": true, "canonical_statement": %q, "strictest_standard": %q, "reasoning": "same requirement"}`, statement, standard), nil
	}
}

func obligation(id, statement, subject, trigger, standard, section string, score float64) model.Obligation {
	return model.Obligation{
		ObligationID: id,
		Statement:    statement,
		SourceGrounding: model.SourceGrounding{
			Regulator:       "ASIC",
			LegalInstrument: "National Consumer Credit Protection Act 2009",
			SectionClause:   section,
			VerbatimExcerpt: "A person must not engage in a credit activity without a licence.",
		},
		Structure: model.ObligationStructure{
			Subject:  subject,
			Trigger:  trigger,
			Standard: standard,
		},
		ConfidenceScore: score,
		ConfidenceLevel: model.LevelForScore(score),
	}
}

// allSimilar embeds everything identically so every statement lands in one
// cluster
type allSimilar struct{}

func (allSimilar) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func newNormalizer(provider llm.Provider, embedder Embedder) *Normalizer {
	clusterer := NewClusterer(embedder, 0.85, nil)
	return NewNormalizer(provider, clusterer, model.PipelineConfig{Workers: 4, ClusterThreshold: 0.85}, nil)
}

func TestNormalizeMergesPreservingCitations(t *testing.T) {
	provider := &fakeProvider{complete: mergeReply("An entity must hold an Australian Credit Licence", "")}
	n := newNormalizer(provider, allSimilar{})

	state := model.NewRunState("run-1", "q")
	state.Obligations = []model.Obligation{
		obligation("OBL-0001", "must hold an ACL", "credit provider", "", "", "s 29(1)", 0.95),
		obligation("OBL-0002", "must hold an Australian Credit License", "credit provider", "", "", "s 29(2)", 0.90),
		obligation("OBL-0003", "an ACL is required", "credit provider", "", "", "RG 204.12", 0.85),
	}

	if err := n.Normalize(context.Background(), state); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(state.Canonical) != 1 {
		t.Fatalf("canonical = %d, want 1 merged obligation", len(state.Canonical))
	}

	c := state.Canonical[0]
	if c.CanonicalID != "CANONICAL-0001" {
		t.Errorf("canonical id = %s, want CANONICAL-0001", c.CanonicalID)
	}
	if len(c.SourceObligationIDs) != 3 {
		t.Errorf("source ids = %v, want all 3 members", c.SourceObligationIDs)
	}
	if len(c.SourceGroundingList) != 3 {
		t.Fatalf("citations = %d, want the full union of 3", len(c.SourceGroundingList))
	}
	sections := map[string]bool{}
	for _, g := range c.SourceGroundingList {
		sections[g.SectionClause] = true
	}
	for _, want := range []string{"s 29(1)", "s 29(2)", "RG 204.12"} {
		if !sections[want] {
			t.Errorf("citation %s lost in merge", want)
		}
	}
	if c.ConfidenceScore != 0.95 {
		t.Errorf("confidence = %v, want max member score", c.ConfidenceScore)
	}
}

func TestNormalizeStrictestStandardWins(t *testing.T) {
	// Model claims 5 years; the local ordering must override with 7
	provider := &fakeProvider{complete: mergeReply("records must be retained", "5 years")}
	n := newNormalizer(provider, allSimilar{})

	state := model.NewRunState("run-2", "q")
	state.Obligations = []model.Obligation{
		obligation("OBL-0001", "keep records for 5 years", "licensee", "", "5 years", "s 988A", 0.9),
		obligation("OBL-0002", "keep records for 7 years", "licensee", "", "7 years", "s 286", 0.9),
	}

	if err := n.Normalize(context.Background(), state); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(state.Canonical) != 1 {
		t.Fatalf("canonical = %d, want 1", len(state.Canonical))
	}
	if got := state.Canonical[0].StrictestStandard; got != "7 years" {
		t.Errorf("strictest standard = %q, want 7 years", got)
	}
}

func TestNormalizeRefusesSubjectMismatch(t *testing.T) {
	// Even an eager model must not merge obligations binding different subjects
	provider := &fakeProvider{complete: mergeReply("merged", "")}
	n := newNormalizer(provider, allSimilar{})

	state := model.NewRunState("run-3", "q")
	state.Obligations = []model.Obligation{
		obligation("OBL-0001", "must report breaches", "credit licensee", "", "", "s 50A", 0.9),
		obligation("OBL-0002", "must report breaches", "AFS licensee", "", "", "s 912D", 0.9),
	}

	if err := n.Normalize(context.Background(), state); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(state.Canonical) != 2 {
		t.Fatalf("canonical = %d, want both members passed through", len(state.Canonical))
	}
	for _, c := range state.Canonical {
		if c.CanonicalID != "" {
			t.Errorf("pass-through obligation %s got canonical id %s", c.ObligationID, c.CanonicalID)
		}
	}
}

func TestNormalizeRefusesContradictoryTriggers(t *testing.T) {
	provider := &fakeProvider{complete: mergeReply("merged", "")}
	n := newNormalizer(provider, allSimilar{})

	state := model.NewRunState("run-4", "q")
	state.Obligations = []model.Obligation{
		obligation("OBL-0001", "must give a disclosure document", "licensee", "when dealing with retail clients", "", "s 941A", 0.9),
		obligation("OBL-0002", "must give a disclosure document", "licensee", "when dealing with wholesale clients", "", "s 941B", 0.9),
	}

	if err := n.Normalize(context.Background(), state); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(state.Canonical) != 2 {
		t.Errorf("canonical = %d, want un-merged pair", len(state.Canonical))
	}
}

func TestNormalizeModelDeclinesMerge(t *testing.T) {
	provider := &fakeProvider{complete: func(req llm.Request) (string, error) {
		return `{"should_merge": false, "canonical_statement": "", "reasoning": "different requirements"}`, nil
	}}
	n := newNormalizer(provider, allSimilar{})

	state := model.NewRunState("run-5", "q")
	state.Obligations = []model.Obligation{
		obligation("OBL-0001", "a", "licensee", "", "", "s 1", 0.9),
		obligation("OBL-0002", "b", "licensee", "", "", "s 2", 0.9),
	}

	if err := n.Normalize(context.Background(), state); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(state.Canonical) != 2 {
		t.Errorf("canonical = %d, want pass-through pair", len(state.Canonical))
	}
}

func TestNormalizeSynthesisFailurePassesMembersThrough(t *testing.T) {
	provider := &fakeProvider{complete: func(req llm.Request) (string, error) {
		return "", errors.New("backend down")
	}}
	n := newNormalizer(provider, allSimilar{})

	state := model.NewRunState("run-6", "q")
	state.Obligations = []model.Obligation{
		obligation("OBL-0001", "a", "licensee", "", "", "s 1", 0.9),
		obligation("OBL-0002", "b", "licensee", "", "", "s 2", 0.9),
	}

	if err := n.Normalize(context.Background(), state); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(state.Canonical) != 2 {
		t.Errorf("canonical = %d, data must never be dropped by synthesis failure", len(state.Canonical))
	}
}

func TestNormalizeSingletonPassesThrough(t *testing.T) {
	provider := &fakeProvider{complete: func(req llm.Request) (string, error) {
		t.Error("singleton cluster must not reach synthesis")
		return "", errors.New("unexpected call")
	}}
	n := newNormalizer(provider, allSimilar{})

	state := model.NewRunState("run-7", "q")
	state.Obligations = []model.Obligation{
		obligation("OBL-0001", "only one", "licensee", "", "", "s 1", 0.9),
	}

	if err := n.Normalize(context.Background(), state); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(state.Canonical) != 1 || state.Canonical[0].ObligationID != "OBL-0001" {
		t.Errorf("canonical = %+v, want untouched singleton", state.Canonical)
	}
}

func TestNormalizeEmbeddingFailureFallsBack(t *testing.T) {
	provider := &fakeProvider{complete: mergeReply("merged", "")}
	clusterer := NewClusterer(failingEmbedder{}, 0.85, nil)
	n := NewNormalizer(provider, clusterer, model.PipelineConfig{Workers: 4}, nil)

	state := model.NewRunState("run-8", "q")
	state.Obligations = []model.Obligation{
		obligation("OBL-0001", "a", "licensee", "", "", "s 1", 0.9),
		obligation("OBL-0002", "b", "licensee", "", "", "s 2", 0.9),
	}

	if err := n.Normalize(context.Background(), state); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(state.Canonical) != 2 {
		t.Errorf("canonical = %d, want every obligation standing alone", len(state.Canonical))
	}
	if len(state.Errors) != 1 {
		t.Errorf("run errors = %d, want clustering failure recorded", len(state.Errors))
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}
