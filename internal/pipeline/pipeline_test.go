package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/retrieval"
)

// routedProvider dispatches each call on a distinctive fragment of its
// system prompt, so one fake drives the whole pipeline
type routedProvider struct {
	routes    map[string]func(req llm.Request) (string, error)
	fallbackT *testing.T
}

func (p *routedProvider) Name() string { return "routed" }

func (p *routedProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	for fragment, fn := range p.routes {
		if strings.Contains(req.System, fragment) {
			text, err := fn(req)
			if err != nil {
				return nil, err
			}
			return &llm.Response{Text: text, Model: "routed"}, nil
		}
	}
	p.fallbackT.Errorf("no route for system prompt: %.60s", req.System)
	return nil, fmt.Errorf("no route")
}

func (p *routedProvider) IsAvailable(ctx context.Context) bool { return true }

// licenseStatement is shared by the three scenario-1 passages
const licenseStatement = "An entity engaging in credit activities must hold an Australian Credit License"

var licensePassages = map[string]string{
	"c1": "Under section 29(1), a person must not engage in a credit activity if the person does not hold a licence authorising the activity.",
	"c2": "Section 29(2) provides that a person must hold an Australian Credit Licence before engaging in any credit activity.",
	"c3": "RG 204.12: you must hold an Australian credit licence covering the credit activities you engage in.",
}

var licenseSections = map[string]string{"c1": "s 29(1)", "c2": "s 29(2)", "c3": "RG 204.12"}

type scenarioSearcher struct {
	chunks []retrieval.Match
}

func (s *scenarioSearcher) Search(ctx context.Context, query string, topK int, filters retrieval.Filters) ([]retrieval.Match, error) {
	return s.chunks, nil
}

func (s *scenarioSearcher) FetchFullContext(ctx context.Context, childID string) (string, error) {
	return "", fmt.Errorf("no parent")
}

// identicalEmbedder clusters everything that shares a statement prefix
type identicalEmbedder struct{}

func (identicalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.Contains(text, "Australian Credit Licen") {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

func defaultRoutes(t *testing.T) map[string]func(req llm.Request) (string, error) {
	return map[string]func(req llm.Request) (string, error){
		"classify business descriptions": func(req llm.Request) (string, error) {
			return `{"product_type": "consumer_credit", "business_model": "lender", "license_class_required": ["ACL"], "jurisdiction": "all_australia", "query_intent": "full_obligation_register", "confidence": 0.9}`, nil
		},
		"research planner": func(req llm.Request) (string, error) {
			return fmt.Sprintf(`{"plan": [{"id": 1, "category": %q, "task": "licensing obligations", "topic_keywords": ["credit licence"], "regulatory_sources": ["ASIC"], "priority": "high"}]}`, model.Categories[0]), nil
		},
		"check research plans": func(req llm.Request) (string, error) {
			return `{"complete": true, "missing_topics": [], "additional_tasks": []}`, nil
		},
		"generate search queries": func(req llm.Request) (string, error) {
			return `{"search_terms": ["credit licence requirement", "NCCP s 29"]}`, nil
		},
		"into legal advice": func(req llm.Request) (string, error) {
			return `{"action": "CONTINUE", "flags": []}`, nil
		},
		"privacy reviewer": func(req llm.Request) (string, error) {
			return `{"action": "CONTINUE", "flags": []}`, nil
		},
		"identify obligations": func(req llm.Request) (string, error) {
			for _, passage := range licensePassages {
				if strings.Contains(req.Prompt, passage) {
					return `{"obligations": [{"obligation_statement": "` + licenseStatement + `", "obligation_type": "MANDATORY_OBLIGATION", "action_type": "MUST_DO", "subject": "credit provider", "action": "hold an Australian Credit License", "detection_confidence": 0.95}]}`, nil
				}
			}
			return `{"obligations": []}`, nil
		},
		"decompose compound": func(req llm.Request) (string, error) {
			for id, passage := range licensePassages {
				if strings.Contains(req.Prompt, passage) {
					return fmt.Sprintf(`{"obligations": [{"obligation_statement": %q, "subject": "credit provider", "action": "hold an Australian Credit License", "obligation_type": "MANDATORY_OBLIGATION", "action_type": "MUST_DO", "section_clause": %q, "verbatim_excerpt": %q}]}`,
						licenseStatement, licenseSections[id], passage), nil
				}
			}
			return "", fmt.Errorf("unknown passage")
		},
		"assess how confident": func(req llm.Request) (string, error) {
			return `{"confidence_score": 0.95, "certainty_level": "CERTAIN", "reasoning": "direct quote"}`, nil
		},
		"merge duplicate regulatory obligations": func(req llm.Request) (string, error) {
			return fmt.Sprintf(`{"should_merge": true, "canonical_statement": %q, "strictest_standard": "", "reasoning": "same requirement"}`, licenseStatement), nil
		},
		"determine the precise conditions": func(req llm.Request) (string, error) {
			return `{"applicability_factors": {"entity_type": ["credit provider"]}, "applicability_rules": "IF entity engages in credit activities THEN this obligation applies"}`, nil
		},
		"final check on a regulatory obligation register": func(req llm.Request) (string, error) {
			return `{"action": "APPROVE", "flags": []}`, nil
		},
	}
}

func scenarioConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Pipeline.Workers = 2
	return cfg
}

func buildScenario(t *testing.T, routes map[string]func(req llm.Request) (string, error)) *Pipeline {
	provider := &routedProvider{routes: routes, fallbackT: t}
	searcher := &scenarioSearcher{chunks: []retrieval.Match{
		{ID: "c1", Score: 0.95, Text: licensePassages["c1"], Metadata: map[string]string{"regulator": "ASIC", "document_name": "NCCP Act 2009", "section": "s 29"}},
		{ID: "c2", Score: 0.93, Text: licensePassages["c2"], Metadata: map[string]string{"regulator": "ASIC", "document_name": "NCCP Act 2009", "section": "s 29"}},
		{ID: "c3", Score: 0.90, Text: licensePassages["c3"], Metadata: map[string]string{"regulator": "ASIC", "document_name": "RG 204", "section": "RG 204.12"}},
	}}
	return Build(scenarioConfig(), provider, identicalEmbedder{}, searcher, nil)
}

func TestScenarioDuplicateLicenseObligationsMergeToOneCanonical(t *testing.T) {
	p := buildScenario(t, defaultRoutes(t))

	register, err := p.Generate(context.Background(), "obligations for an online consumer lender")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(register.Obligations) != 1 {
		t.Fatalf("obligations = %d, want 3 duplicates merged into 1 canonical", len(register.Obligations))
	}

	o := register.Obligations[0]
	if o.CanonicalID != "CANONICAL-0001" {
		t.Errorf("canonical id = %s", o.CanonicalID)
	}
	if len(o.SourceObligationIDs) != 3 {
		t.Errorf("merge provenance = %v, want 3 source ids", o.SourceObligationIDs)
	}
	if len(o.SourceGroundingList) != 3 {
		t.Fatalf("citations = %d, want all 3 preserved", len(o.SourceGroundingList))
	}
	if register.Metadata.TotalObligations != 1 || register.Metadata.HighConfidenceCount != 1 {
		t.Errorf("metadata = %+v", register.Metadata)
	}
	if err := o.Validate(); err != nil {
		t.Errorf("final obligation invalid: %v", err)
	}
}

func TestScenarioLowConfidenceLandsInReviewQueue(t *testing.T) {
	routes := defaultRoutes(t)
	routes["assess how confident"] = func(req llm.Request) (string, error) {
		return `{"confidence_score": 0.65, "certainty_level": "LIKELY", "reasoning": "hedged language"}`, nil
	}
	p := buildScenario(t, routes)

	register, err := p.Generate(context.Background(), "obligations for an online consumer lender")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(register.Obligations) != 1 {
		t.Fatalf("obligations = %d, review is advisory and must not drop entries", len(register.Obligations))
	}
	if register.Obligations[0].HumanReviewed {
		t.Error("human_reviewed must remain false")
	}
	if len(register.ReviewPackages) != 1 {
		t.Fatalf("review packages = %d, want the 0.65 obligation flagged", len(register.ReviewPackages))
	}
	if register.ReviewPackages[0].ObligationID != register.Obligations[0].ObligationID {
		t.Errorf("package refers to %s, obligation is %s",
			register.ReviewPackages[0].ObligationID, register.Obligations[0].ObligationID)
	}
}

func TestScenarioGateBlockEmptiesOutput(t *testing.T) {
	routes := defaultRoutes(t)
	routes["into legal advice"] = func(req llm.Request) (string, error) {
		return `{"action": "BLOCK", "flags": ["query seeks advice on a specific dispute"]}`, nil
	}
	p := buildScenario(t, routes)

	register, err := p.Generate(context.Background(), "obligations for an online consumer lender")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(register.Obligations) != 0 {
		t.Errorf("obligations = %d, want empty output on BLOCK", len(register.Obligations))
	}
	blocked := false
	for _, e := range register.Errors {
		if strings.Contains(e, "BLOCKED") {
			blocked = true
		}
	}
	if !blocked {
		t.Errorf("errors = %v, want a BLOCKED entry", register.Errors)
	}
}

func TestScenarioContradictoryTriggersStayUnmerged(t *testing.T) {
	routes := defaultRoutes(t)
	routes["identify obligations"] = func(req llm.Request) (string, error) {
		switch {
		case strings.Contains(req.Prompt, licensePassages["c1"]):
			return `{"obligations": [{"obligation_statement": "must give a disclosure document", "subject": "licensee", "trigger": "when dealing with retail clients", "detection_confidence": 0.9}]}`, nil
		case strings.Contains(req.Prompt, licensePassages["c2"]):
			return `{"obligations": [{"obligation_statement": "must give a disclosure document", "subject": "licensee", "trigger": "when dealing with wholesale clients", "detection_confidence": 0.9}]}`, nil
		}
		return `{"obligations": []}`, nil
	}
	routes["decompose compound"] = func(req llm.Request) (string, error) {
		trigger := "when dealing with retail clients"
		if strings.Contains(req.Prompt, "wholesale") {
			trigger = "when dealing with wholesale clients"
		}
		return fmt.Sprintf(`{"obligations": [{"obligation_statement": "A licensee must give a disclosure document %s", "subject": "licensee", "trigger": %q, "obligation_type": "CONDITIONAL_OBLIGATION", "action_type": "CONDITIONAL", "section_clause": "s 941A", "verbatim_excerpt": %q}]}`,
			trigger, trigger, licensePassages["c1"]), nil
	}
	// Statements differ only in client type; the embedder still maps both to
	// the same vector so they land in one cluster
	routes["merge duplicate regulatory obligations"] = func(req llm.Request) (string, error) {
		t.Error("trigger mismatch must be refused before synthesis is consulted")
		return "", fmt.Errorf("unexpected call")
	}

	provider := &routedProvider{routes: routes, fallbackT: t}
	searcher := &scenarioSearcher{chunks: []retrieval.Match{
		{ID: "c1", Score: 0.95, Text: licensePassages["c1"], Metadata: map[string]string{"regulator": "ASIC", "document_name": "Corporations Act 2001", "section": "s 941A"}},
		{ID: "c2", Score: 0.93, Text: licensePassages["c2"], Metadata: map[string]string{"regulator": "ASIC", "document_name": "Corporations Act 2001", "section": "s 941A"}},
	}}

	sameVector := embedFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 0}
		}
		return out, nil
	})

	p := Build(scenarioConfig(), provider, sameVector, searcher, nil)
	register, err := p.Generate(context.Background(), "disclosure obligations")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(register.Obligations) != 2 {
		t.Fatalf("obligations = %d, contradictory triggers must stay unmerged", len(register.Obligations))
	}
	for _, o := range register.Obligations {
		if o.CanonicalID != "" {
			t.Errorf("obligation %s should not carry a canonical id", o.ObligationID)
		}
	}
}

type embedFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f embedFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

func TestRenderMarkdownContainsRegisterSections(t *testing.T) {
	p := buildScenario(t, defaultRoutes(t))
	register, err := p.Generate(context.Background(), "obligations for an online consumer lender")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	md := RenderMarkdown(register)
	for _, want := range []string{"# Obligation Register", "CANONICAL-0001", "## Summary", "not legal advice"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	p := buildScenario(t, defaultRoutes(t))
	register, err := p.Generate(context.Background(), "obligations for an online consumer lender")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	data, err := RenderJSON(register)
	if err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	if !strings.Contains(string(data), register.RunID) {
		t.Error("serialized register missing run id")
	}
}

func TestTrimExcerptKeepsRuneBoundary(t *testing.T) {
	excerpt := strings.Repeat("é", 10) // 20 bytes, 10 runes

	// Byte length exceeds the cap but rune length does not
	if got := trimExcerpt(excerpt, 15); got != excerpt {
		t.Errorf("trimExcerpt = %q, want input unchanged", got)
	}

	got := trimExcerpt(excerpt, 6)
	if !utf8.ValidString(got) {
		t.Errorf("trimExcerpt produced invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("é", 6)+"…" {
		t.Errorf("trimExcerpt = %q, want six runes and ellipsis", got)
	}
}
