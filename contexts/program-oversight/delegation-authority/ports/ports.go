package ports

import (
	"context"
	"time"

	contractsv1 "ouvrage/contracts/gen/events/v1"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
	"ouvrage/contexts/program-oversight/delegation-authority/domain/hashchain"
)

// AppendEventInput is the single atomic write of the context: one new chain
// event plus the matching status/tip update. Both land or neither does; a
// half-applied transition would break chain continuity permanently.
type AppendEventInput struct {
	DelegationID string
	Event        entities.DelegationEvent
	// NewStatus of "" leaves the status untouched (recorded evaluations).
	NewStatus entities.DelegationStatus
	// ExpectedPreviousHash is the chain tip the caller read. The store must
	// reject the write with ErrConcurrencyConflict when the stored tip moved.
	ExpectedPreviousHash string
	// Engagement is recorded with the event when the action commits funds
	// against the quota.
	Engagement *entities.Engagement
	// Outbox, when set, is persisted as a pending outbox row in the same
	// transaction as the event so relayed messages never outrun the chain.
	Outbox *EventEnvelope
}

type Repository interface {
	LoadDelegation(ctx context.Context, delegationID string) (entities.Delegation, error)
	ListEvents(ctx context.Context, delegationID string) ([]entities.DelegationEvent, error)
	AppendEvent(ctx context.Context, input AppendEventInput) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID  string
	EventType string
	Subject   string
	Payload   []byte
	CreatedAt time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, envelope EventEnvelope) error
}

// TransitionResult is returned by every accepted status transition.
type TransitionResult struct {
	DelegationID string
	Status       entities.DelegationStatus
	EventID      string
	EventHash    string
	HeadHash     string
	OccurredAt   time.Time
}

// EvaluationOutcome wraps an evaluation and, when the evaluation was
// recorded, the chain event that captured it.
type EvaluationOutcome struct {
	DelegationID string
	Result       entities.EvaluationResult
	Summary      string
	Recorded     bool
	EventID      string
	EventHash    string
}

// AuditReport is the structured outcome of a chain verification.
type AuditReport struct {
	DelegationID  string
	Valid         bool
	EventsChecked int
	Algorithm     hashchain.Algorithm
	BrokenAt      int
	BrokenEventID string
	HeadHash      string
	Message       string
}
