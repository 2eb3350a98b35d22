package model

// PlanStatus tracks the lifecycle of a research task
type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// Categories is the fixed compliance taxonomy every plan item belongs to
var Categories = []string{
	"Licensing & Authorization",
	"Conduct & Disclosure",
	"Financial Resources & Risk Management",
	"Operational & Systems",
	"Governance & Personnel",
	"Record Keeping & Reporting",
	"Dispute Resolution & Remediation",
}

// PlanItem is a single research task produced by planning. Retrieval marks it
// completed or failed; it is read-only afterwards.
type PlanItem struct {
	ID                int        `json:"id"`
	Category          string     `json:"category"`
	Task              string     `json:"task"`
	TopicKeywords     []string   `json:"topic_keywords"`
	RegulatorySources []string   `json:"regulatory_sources"`
	Priority          string     `json:"priority"`
	SearchTerms       []string   `json:"search_terms,omitempty"`
	Status            PlanStatus `json:"status"`
}

// BusinessContext is the structured understanding of the user's query that
// every downstream extraction call receives
type BusinessContext struct {
	ProductType          string   `json:"product_type"`
	BusinessModel        string   `json:"business_model"`
	LicenseClassRequired []string `json:"license_class_required"`
	Jurisdiction         string   `json:"jurisdiction"`
	QueryIntent          string   `json:"query_intent"`
	Confidence           float64  `json:"confidence"`
	Ambiguities          []string `json:"ambiguities,omitempty"`
	RegulatoryScope      []string `json:"regulatory_scope,omitempty"`
	Notes                string   `json:"notes,omitempty"`
}

// DefaultBusinessContext is the conservative fallback used when query
// understanding fails
func DefaultBusinessContext() BusinessContext {
	return BusinessContext{
		ProductType:          "general",
		BusinessModel:        "other",
		LicenseClassRequired: []string{"ACL"},
		Jurisdiction:         "all_australia",
		QueryIntent:          "full_obligation_register",
		Confidence:           0.5,
		Notes:                "query understanding failed - using defaults",
	}
}
