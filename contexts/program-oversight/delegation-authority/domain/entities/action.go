package entities

import "time"

// ActionContext describes a proposed action submitted for evaluation. It is
// ephemeral and never persisted by this context.
type ActionContext struct {
	ActionType string
	Bureau     string
	Project    string
	Category   string
	Amount     int64
	Currency   string
	Supplier   string
	// Controls the requester claims to have evidenced (document references,
	// prior approvals). Matched against policy required controls.
	EvidencedControls []string
	Requester         Person
	Timestamp         time.Time
}

type Verdict string

const (
	VerdictAuthorized     Verdict = "AUTHORIZED"
	VerdictDenied         Verdict = "DENIED"
	VerdictPendingControl Verdict = "PENDING_CONTROL"
)

type RiskSeverity string

const (
	RiskSeverityLow    RiskSeverity = "low"
	RiskSeverityMedium RiskSeverity = "medium"
	RiskSeverityHigh   RiskSeverity = "high"
)

const (
	RiskHighAmountProximity = "HIGH_AMOUNT_PROXIMITY_TO_LIMIT"
	RiskFirstUse            = "FIRST_USE"
	RiskUnknownSupplier     = "UNKNOWN_SUPPLIER"
	RiskQuotaNearExhaustion = "QUOTA_NEAR_EXHAUSTION"
)

type Risk struct {
	Type     string
	Severity RiskSeverity
	Message  string
}

// EvaluationResult explains an authorization decision. Risks are advisory and
// never change the verdict on their own.
type EvaluationResult struct {
	Verdict          Verdict
	Reasons          []string
	RequiredControls []string
	Risks            []Risk
	// MatchedPolicyID is set when a policy was selected for the action.
	MatchedPolicyID string
	EvaluatedAt     time.Time
}
