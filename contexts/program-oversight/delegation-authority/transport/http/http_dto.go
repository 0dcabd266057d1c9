package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PersonDTO struct {
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type TransitionRequest struct {
	Actor PersonDTO `json:"actor"`
	Notes string    `json:"notes,omitempty"`
	// Reason is mandatory for suspend and revoke.
	Reason string `json:"reason,omitempty"`
	// ExpectedReactivation is an optional RFC 3339 timestamp on suspend.
	ExpectedReactivation string `json:"expected_reactivation,omitempty"`
}

type TransitionDTO struct {
	DelegationID string `json:"delegation_id"`
	Status       string `json:"status"`
	EventID      string `json:"event_id"`
	EventHash    string `json:"event_hash"`
	HeadHash     string `json:"head_hash"`
	OccurredAt   string `json:"occurred_at"`
}

type TransitionResponse struct {
	Status string        `json:"status"`
	Data   TransitionDTO `json:"data"`
}

type EvaluateRequest struct {
	ActionType        string    `json:"action_type"`
	Bureau            string    `json:"bureau,omitempty"`
	Project           string    `json:"project,omitempty"`
	Category          string    `json:"category,omitempty"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency,omitempty"`
	Supplier          string    `json:"supplier,omitempty"`
	EvidencedControls []string  `json:"evidenced_controls,omitempty"`
	Requester         PersonDTO `json:"requester"`
	// Timestamp is optional RFC 3339; empty means "now".
	Timestamp string `json:"timestamp,omitempty"`
	// Record appends an ACTION_EVALUATED event to the audit chain.
	Record bool `json:"record,omitempty"`
}

type RiskDTO struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type EvaluationDTO struct {
	DelegationID     string    `json:"delegation_id"`
	Verdict          string    `json:"verdict"`
	Reasons          []string  `json:"reasons"`
	RequiredControls []string  `json:"required_controls,omitempty"`
	Risks            []RiskDTO `json:"risks"`
	MatchedPolicyID  string    `json:"matched_policy_id,omitempty"`
	Summary          string    `json:"summary"`
	Recorded         bool      `json:"recorded"`
	EventID          string    `json:"event_id,omitempty"`
	EventHash        string    `json:"event_hash,omitempty"`
}

type EvaluateResponse struct {
	Status string        `json:"status"`
	Data   EvaluationDTO `json:"data"`
}

type AuditReportDTO struct {
	DelegationID  string `json:"delegation_id"`
	Valid         bool   `json:"valid"`
	EventsChecked int    `json:"events_checked"`
	Algorithm     string `json:"algorithm"`
	BrokenAt      int    `json:"broken_at"`
	BrokenEventID string `json:"broken_event_id,omitempty"`
	HeadHash      string `json:"head_hash"`
	Message       string `json:"message"`
}

type AuditVerifyResponse struct {
	Status string         `json:"status"`
	Data   AuditReportDTO `json:"data"`
}

type EventDTO struct {
	EventID      string            `json:"event_id"`
	DelegationID string            `json:"delegation_id"`
	EventType    string            `json:"event_type"`
	Actor        PersonDTO         `json:"actor"`
	Summary      string            `json:"summary"`
	Details      map[string]string `json:"details,omitempty"`
	PreviousHash string            `json:"previous_hash"`
	EventHash    string            `json:"event_hash"`
	ShortHash    string            `json:"short_hash"`
	Verdict      string            `json:"verdict,omitempty"`
	CreatedAt    string            `json:"created_at"`
}

type EventListResponse struct {
	Status string     `json:"status"`
	Data   []EventDTO `json:"data"`
}

type DelegationDTO struct {
	DelegationID      string   `json:"delegation_id"`
	Category          string   `json:"category"`
	Status            string   `json:"status"`
	Expired           bool     `json:"expired"`
	Grantor           PersonDTO `json:"grantor"`
	Agent             PersonDTO `json:"agent"`
	ScopeMode         string   `json:"scope_mode"`
	Bureaus           []string `json:"bureaus,omitempty"`
	Projects          []string `json:"projects,omitempty"`
	Categories        []string `json:"categories,omitempty"`
	MaxPerTransaction int64    `json:"max_per_transaction"`
	Quota             int64    `json:"quota"`
	CommittedAmount   int64    `json:"committed_amount"`
	Currency          string   `json:"currency"`
	StartsAt          string   `json:"starts_at"`
	EndsAt            string   `json:"ends_at"`
	DecisionHash      string   `json:"decision_hash"`
	HeadHash          string   `json:"head_hash"`
	HashAlgorithm     string   `json:"hash_algorithm"`
}

type DelegationResponse struct {
	Status string        `json:"status"`
	Data   DelegationDTO `json:"data"`
}
