package entities

import "time"

const (
	EventTypeSubmitted       = "DELEGATION_SUBMITTED"
	EventTypeApproved        = "DELEGATION_APPROVED"
	EventTypeSuspended       = "DELEGATION_SUSPENDED"
	EventTypeReactivated     = "DELEGATION_REACTIVATED"
	EventTypeRevoked         = "DELEGATION_REVOKED"
	EventTypeActionEvaluated = "ACTION_EVALUATED"
)

// DelegationEvent is one link of the per-delegation audit chain. Events are
// append-only; nothing mutates or deletes them after creation.
type DelegationEvent struct {
	EventID      string
	DelegationID string
	EventType    string
	Actor        Person
	Summary      string
	Details      map[string]string
	PreviousHash string
	EventHash    string
	Evaluation   *EvaluationResult
	CreatedAt    time.Time
}
