package model

import (
	"fmt"
	"strings"
	"time"
)

// MinExcerptLength is the minimum verbatim excerpt length for valid grounding.
// An obligation whose citation excerpt is shorter than this is invalid by
// construction.
const MinExcerptLength = 20

// ConfidenceLevel bands the numeric confidence score
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// LevelForScore maps a numeric confidence score to its band.
// The HIGH band starts at the review threshold so that level and
// review-required flagging never disagree.
func LevelForScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.90:
		return ConfidenceHigh
	case score >= 0.70:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ObligationType classifies the binding force of an obligation
type ObligationType string

const (
	ObligationMandatory     ObligationType = "MANDATORY_OBLIGATION"
	ObligationConditional   ObligationType = "CONDITIONAL_OBLIGATION"
	ObligationGuidance      ObligationType = "NON_BINDING_GUIDANCE"
	ObligationInformational ObligationType = "INFORMATIONAL_CONTENT"
)

// ActionType classifies the direction of the required action
type ActionType string

const (
	ActionMustDo      ActionType = "MUST_DO"
	ActionMustNotDo   ActionType = "MUST_NOT_DO"
	ActionConditional ActionType = "CONDITIONAL"
)

// CertaintyLevel expresses how settled the regulatory position is
type CertaintyLevel string

const (
	CertaintyCertain   CertaintyLevel = "CERTAIN"
	CertaintyLikely    CertaintyLevel = "LIKELY"
	CertaintyUncertain CertaintyLevel = "UNCERTAIN"
)

// SourceGrounding is the complete citation for an obligation. Every
// obligation carries one; it is never mutated after creation.
type SourceGrounding struct {
	Regulator       string     `json:"regulator"`                // e.g. ASIC, APRA, AUSTRAC
	LegalInstrument string     `json:"legal_instrument"`         // e.g. RG 206, Corporations Act 2001
	SectionClause   string     `json:"section_clause"`           // e.g. RG 206.45, s 912A
	VerbatimExcerpt string     `json:"verbatim_excerpt"`         // exact text from the regulation
	EffectiveDate   *time.Time `json:"effective_date,omitempty"`
}

// Validate checks the grounding invariants. A non-positive minExcerpt falls
// back to the package default.
func (g SourceGrounding) Validate(minExcerpt int) error {
	if minExcerpt <= 0 {
		minExcerpt = MinExcerptLength
	}
	if strings.TrimSpace(g.Regulator) == "" {
		return fmt.Errorf("grounding: regulator is required")
	}
	if strings.TrimSpace(g.LegalInstrument) == "" {
		return fmt.Errorf("grounding: legal instrument is required")
	}
	if len(strings.TrimSpace(g.VerbatimExcerpt)) < minExcerpt {
		return fmt.Errorf("grounding: verbatim excerpt shorter than %d characters", minExcerpt)
	}
	return nil
}

// Key returns a stable identity for citation dedup (instrument + section)
func (g SourceGrounding) Key() string {
	return strings.ToLower(strings.TrimSpace(g.LegalInstrument)) + "|" + strings.ToLower(strings.TrimSpace(g.SectionClause))
}

// ObligationStructure holds the parsed components of an obligation statement
type ObligationStructure struct {
	Subject     string `json:"subject"`                // who must comply
	Action      string `json:"action"`                 // what must be done
	Trigger     string `json:"trigger,omitempty"`      // when / under what circumstances
	ObjectScope string `json:"object_scope,omitempty"` // what the action is performed on
	Standard    string `json:"standard,omitempty"`     // to what standard (7 years, reasonable steps)
}

// ApplicabilityFactors covers the eight dimensions that determine when an
// obligation applies
type ApplicabilityFactors struct {
	EntityType       []string          `json:"entity_type,omitempty"`
	RegulatoryStatus []string          `json:"regulatory_status,omitempty"`
	Jurisdiction     []string          `json:"jurisdiction,omitempty"`
	ProductService   []string          `json:"product_service,omitempty"`
	CustomerType     []string          `json:"customer_type,omitempty"`
	Thresholds       map[string]string `json:"thresholds,omitempty"`
	Operational      []string          `json:"operational,omitempty"`
	Temporal         []string          `json:"temporal,omitempty"`
}

// TrustValidation records the trust-layer checks applied to an obligation
type TrustValidation struct {
	GroundingValidated bool       `json:"grounding_validated"`
	PostureCompliant   bool       `json:"posture_compliant"`
	NoLegalAdvice      bool       `json:"no_legal_advice"`
	PrivacyClear       bool       `json:"privacy_clear"`
	TrustFlags         []string   `json:"trust_flags,omitempty"`
	Action             GateAction `json:"action"`
}

// Obligation is a single atomic regulatory requirement with mandatory source
// grounding. Canonical obligations (post-merge) reuse this type with the
// canonical fields populated.
type Obligation struct {
	ObligationID string `json:"obligation_id"`
	Statement    string `json:"obligation_statement"`

	SourceGrounding SourceGrounding     `json:"source_grounding"`
	Structure       ObligationStructure `json:"structure"`

	ObligationType  ObligationType  `json:"obligation_type"`
	ActionType      ActionType      `json:"action_type"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	ConfidenceScore float64         `json:"confidence_score"`
	CertaintyLevel  CertaintyLevel  `json:"certainty_level"`

	ApplicabilityFactors ApplicabilityFactors `json:"applicability_factors"`
	ApplicabilityRules   string               `json:"applicability_rules"`
	PlainEnglish         string               `json:"plain_english_explanation"`
	Exceptions           []string             `json:"exceptions,omitempty"`
	EvidenceExpectations []string             `json:"evidence_expectations,omitempty"`

	// Populated only on canonical (merged) obligations
	CanonicalID          string            `json:"canonical_obligation_id,omitempty"`
	SourceObligationIDs  []string          `json:"source_obligation_ids,omitempty"`
	StrictestStandard    string            `json:"strictest_standard,omitempty"`
	SourceGroundingList  []SourceGrounding `json:"source_grounding_list,omitempty"`

	TrustValidation TrustValidation `json:"trust_validation"`
	HumanReviewed   bool            `json:"human_reviewed"`
}

// Validate checks the obligation invariants that hold for every record in a
// final register
func (o Obligation) Validate() error {
	if strings.TrimSpace(o.Statement) == "" {
		return fmt.Errorf("obligation %s: empty statement", o.ObligationID)
	}
	if err := o.SourceGrounding.Validate(MinExcerptLength); err != nil {
		return fmt.Errorf("obligation %s: %w", o.ObligationID, err)
	}
	if o.ConfidenceScore < 0 || o.ConfidenceScore > 1 {
		return fmt.Errorf("obligation %s: confidence score %.2f out of [0,1]", o.ObligationID, o.ConfidenceScore)
	}
	return nil
}

// Citations returns every distinct citation carried by the obligation,
// including the merged set on canonical results
func (o Obligation) Citations() []SourceGrounding {
	if len(o.SourceGroundingList) > 0 {
		return o.SourceGroundingList
	}
	return []SourceGrounding{o.SourceGrounding}
}
