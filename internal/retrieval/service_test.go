package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

type fakeSearcher struct {
	matches map[string][]Match // keyed by first search term
	parents map[string]string
	fail    map[string]bool
	calls   int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int, filters Filters) ([]Match, error) {
	f.calls++
	if f.fail[query] {
		return nil, errors.New("backend unavailable")
	}
	return f.matches[query], nil
}

func (f *fakeSearcher) FetchFullContext(ctx context.Context, childID string) (string, error) {
	if parent, ok := f.parents[childID]; ok {
		return parent, nil
	}
	return "", errors.New("no parent")
}

func testConfig() model.RetrievalConfig {
	return model.RetrievalConfig{TopK: 30, PlanItemCap: 15, ExpandParents: true}
}

func planItem(id int, term string) model.PlanItem {
	return model.PlanItem{ID: id, Category: "Conduct & Disclosure", Task: "task", SearchTerms: []string{term}, Status: model.PlanPending}
}

func TestExecutePlanDeduplicatesAcrossItems(t *testing.T) {
	searcher := &fakeSearcher{
		matches: map[string][]Match{
			"breach":  {{ID: "c1", Score: 0.9, Text: "breach reporting"}, {ID: "c2", Score: 0.7, Text: "notify ASIC"}},
			"records": {{ID: "c1", Score: 0.8, Text: "breach reporting"}, {ID: "c3", Score: 0.95, Text: "keep records"}},
		},
	}
	svc := NewService(searcher, testConfig(), nil)
	state := model.NewRunState("run-1", "obligations for a credit provider")
	state.Plan = []model.PlanItem{planItem(1, "breach"), planItem(2, "records")}

	if err := svc.ExecutePlan(context.Background(), state); err != nil {
		t.Fatalf("ExecutePlan: %v", err)
	}
	if len(state.Chunks) != 3 {
		t.Fatalf("expected 3 deduplicated chunks, got %d", len(state.Chunks))
	}
	for i := 1; i < len(state.Chunks); i++ {
		if state.Chunks[i].Score > state.Chunks[i-1].Score {
			t.Fatalf("chunks not sorted by descending score: %v then %v", state.Chunks[i-1].Score, state.Chunks[i].Score)
		}
	}
	for _, item := range state.Plan {
		if item.Status != model.PlanCompleted {
			t.Errorf("item %d status = %s, want completed", item.ID, item.Status)
		}
	}
}

func TestExecutePlanFailedItemIsSkipped(t *testing.T) {
	searcher := &fakeSearcher{
		matches: map[string][]Match{"records": {{ID: "c9", Score: 0.5, Text: "keep records"}}},
		fail:    map[string]bool{"breach": true},
	}
	svc := NewService(searcher, testConfig(), nil)
	state := model.NewRunState("run-2", "q")
	state.Plan = []model.PlanItem{planItem(1, "breach"), planItem(2, "records")}

	if err := svc.ExecutePlan(context.Background(), state); err != nil {
		t.Fatalf("ExecutePlan: %v", err)
	}
	if state.Plan[0].Status != model.PlanFailed {
		t.Errorf("failed item status = %s, want failed", state.Plan[0].Status)
	}
	if state.Plan[1].Status != model.PlanCompleted {
		t.Errorf("second item status = %s, want completed", state.Plan[1].Status)
	}
	if len(state.Chunks) != 1 {
		t.Errorf("expected 1 chunk from surviving item, got %d", len(state.Chunks))
	}
}

func TestExecutePlanAllItemsFailed(t *testing.T) {
	searcher := &fakeSearcher{fail: map[string]bool{"breach": true, "records": true}}
	svc := NewService(searcher, testConfig(), nil)
	state := model.NewRunState("run-3", "q")
	state.Plan = []model.PlanItem{planItem(1, "breach"), planItem(2, "records")}

	if err := svc.ExecutePlan(context.Background(), state); err == nil {
		t.Fatal("expected error when every plan item fails")
	}
}

func TestExecutePlanHonorsItemCap(t *testing.T) {
	searcher := &fakeSearcher{matches: map[string][]Match{}}
	cfg := testConfig()
	cfg.PlanItemCap = 15
	svc := NewService(searcher, cfg, nil)

	state := model.NewRunState("run-4", "q")
	for i := 0; i < 20; i++ {
		state.Plan = append(state.Plan, planItem(i+1, fmt.Sprintf("term-%d", i)))
	}

	if err := svc.ExecutePlan(context.Background(), state); err != nil {
		t.Fatalf("ExecutePlan: %v", err)
	}
	if searcher.calls != 15 {
		t.Errorf("search calls = %d, want 15", searcher.calls)
	}
	for _, item := range state.Plan[15:] {
		if item.Status != model.PlanPending {
			t.Errorf("item %d beyond cap should stay pending, got %s", item.ID, item.Status)
		}
	}
}

func TestExpandUsesParentText(t *testing.T) {
	searcher := &fakeSearcher{
		matches: map[string][]Match{"breach": {{ID: "c1", Score: 0.9, Text: "child passage", Metadata: map[string]string{"regulator": "APRA"}}}},
		parents: map[string]string{"c1": "full parent section text"},
	}
	svc := NewService(searcher, testConfig(), nil)
	state := model.NewRunState("run-5", "q")
	state.Plan = []model.PlanItem{planItem(1, "breach")}

	if err := svc.ExecutePlan(context.Background(), state); err != nil {
		t.Fatalf("ExecutePlan: %v", err)
	}
	if got := state.Chunks[0].Text; got != "full parent section text" {
		t.Errorf("chunk text = %q, want parent text", got)
	}
	if got := state.Chunks[0].Regulator; got != "APRA" {
		t.Errorf("regulator = %q, want APRA", got)
	}
}

func TestExpandFallsBackToChildOnParentError(t *testing.T) {
	searcher := &fakeSearcher{
		matches: map[string][]Match{"breach": {{ID: "c1", Score: 0.9, Text: "child passage"}}},
	}
	svc := NewService(searcher, testConfig(), nil)
	state := model.NewRunState("run-6", "q")
	state.Plan = []model.PlanItem{planItem(1, "breach")}

	if err := svc.ExecutePlan(context.Background(), state); err != nil {
		t.Fatalf("ExecutePlan: %v", err)
	}
	if got := state.Chunks[0].Text; got != "child passage" {
		t.Errorf("chunk text = %q, want child text", got)
	}
	if got := state.Chunks[0].Regulator; got != "ASIC" {
		t.Errorf("default regulator = %q, want ASIC", got)
	}
}
