package model

// GateAction is the transition returned by a trust/safety gate
type GateAction string

const (
	GateContinue GateAction = "CONTINUE"
	GateBlock    GateAction = "BLOCK"
	GateEscalate GateAction = "ESCALATE"

	// Terminal actions of the final safety validator
	GateApprove        GateAction = "APPROVE"
	GateReviewRequired GateAction = "REVIEW_REQUIRED"
)

// ReviewPackage flags a low-confidence or ungrounded obligation for human
// review. Review is advisory: the obligation still ships in the register.
type ReviewPackage struct {
	ObligationID    string   `json:"obligation_id"`
	Reasons         []string `json:"reasons"`
	SuggestedAction string   `json:"suggested_action"`
}
