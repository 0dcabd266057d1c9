package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
	domainerrors "ouvrage/contexts/program-oversight/delegation-authority/domain/errors"
	"ouvrage/contexts/program-oversight/delegation-authority/domain/hashchain"
	"ouvrage/contexts/program-oversight/delegation-authority/ports"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Store is the in-memory adapter. It implements the repository, outbox,
// clock and id-generator ports, with the same optimistic-concurrency
// semantics as the postgres adapter: an append only succeeds when the
// caller's expected tip still matches the stored tip.
type Store struct {
	mu sync.RWMutex

	delegations map[string]entities.Delegation
	events      map[string][]entities.DelegationEvent
	outbox      map[string]outboxRecord
}

type outboxRecord struct {
	Message     ports.OutboxMessage
	Status      string
	PublishedAt *time.Time
}

func NewStore() *Store {
	return &Store{
		delegations: make(map[string]entities.Delegation),
		events:      make(map[string][]entities.DelegationEvent),
		outbox:      make(map[string]outboxRecord),
	}
}

// CreateDelegation seeds a delegation whose chain anchor is already
// initialized (decision hash, head hash, algorithm).
func (s *Store) CreateDelegation(_ context.Context, delegation entities.Delegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(delegation.DelegationID)
	if id == "" || delegation.DecisionHash == "" || delegation.HeadHash == "" {
		return domainerrors.ErrValidation
	}
	if _, exists := s.delegations[id]; exists {
		return domainerrors.ErrValidation
	}
	s.delegations[id] = copyDelegation(delegation)
	return nil
}

func (s *Store) LoadDelegation(_ context.Context, delegationID string) (entities.Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delegation, ok := s.delegations[strings.TrimSpace(delegationID)]
	if !ok {
		return entities.Delegation{}, domainerrors.ErrNotFound
	}
	return copyDelegation(delegation), nil
}

func (s *Store) ListEvents(_ context.Context, delegationID string) ([]entities.DelegationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.delegations[strings.TrimSpace(delegationID)]; !ok {
		return nil, domainerrors.ErrNotFound
	}
	stored := s.events[strings.TrimSpace(delegationID)]
	items := make([]entities.DelegationEvent, 0, len(stored))
	for _, event := range stored {
		items = append(items, copyEvent(event))
	}
	return items, nil
}

func (s *Store) AppendEvent(_ context.Context, input ports.AppendEventInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(input.DelegationID)
	delegation, ok := s.delegations[id]
	if !ok {
		return domainerrors.ErrNotFound
	}

	if !hashchain.CompareHashes(delegation.HeadHash, input.ExpectedPreviousHash) {
		return domainerrors.ErrConcurrencyConflict
	}
	// The CAS already matched; a differing previous hash on the event itself
	// means the caller built a link that does not continue this chain.
	if !hashchain.CompareHashes(input.Event.PreviousHash, delegation.HeadHash) {
		return domainerrors.ErrChainIntegrity
	}

	event := copyEvent(input.Event)
	s.events[id] = append(s.events[id], event)

	delegation.HeadHash = event.EventHash
	if input.NewStatus != "" {
		delegation.Status = input.NewStatus
	}
	if input.Engagement != nil {
		delegation.Engagements = append(delegation.Engagements, *input.Engagement)
	}
	delegation.UpdatedAt = event.CreatedAt
	s.delegations[id] = delegation

	if input.Outbox != nil {
		if err := s.appendOutboxLocked(*input.Outbox); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appendOutboxLocked(envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		return domainerrors.ErrValidation
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.Message.Payload, payload) {
			return domainerrors.ErrValidation
		}
		return nil
	}
	s.outbox[outboxID] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:  outboxID,
			EventType: envelope.EventType,
			Subject:   envelope.Subject,
			Payload:   payload,
			CreatedAt: envelope.OccurredAt.UTC(),
		},
		Status: outboxStatusPending,
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			items = append(items, row.Message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrNotFound
	}
	ts := publishedAt.UTC()
	row.Status = outboxStatusPublished
	row.PublishedAt = &ts
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

// NewID issues roughly time-ordered identifiers so chain order and storage
// order agree even without the database clock.
func (s *Store) NewID(_ context.Context) (string, error) {
	id, err := hashchain.NewEventID()
	if err != nil {
		return uuid.NewString(), nil
	}
	return id, nil
}

func copyDelegation(d entities.Delegation) entities.Delegation {
	out := d
	out.Policies = copyPolicies(d.Policies)
	out.Actors = append([]entities.Actor(nil), d.Actors...)
	out.Engagements = append([]entities.Engagement(nil), d.Engagements...)
	out.Scope.Bureaus = append([]string(nil), d.Scope.Bureaus...)
	out.Scope.Projects = append([]string(nil), d.Scope.Projects...)
	out.Scope.Categories = append([]string(nil), d.Scope.Categories...)
	out.Validity.AllowedWeekdays = append([]time.Weekday(nil), d.Validity.AllowedWeekdays...)
	return out
}

func copyPolicies(policies []entities.Policy) []entities.Policy {
	out := make([]entities.Policy, 0, len(policies))
	for _, p := range policies {
		copied := p
		copied.ActionTypes = append([]string(nil), p.ActionTypes...)
		copied.RequiredControls = append([]string(nil), p.RequiredControls...)
		out = append(out, copied)
	}
	return out
}

func copyEvent(e entities.DelegationEvent) entities.DelegationEvent {
	out := e
	if e.Details != nil {
		out.Details = make(map[string]string, len(e.Details))
		for key, value := range e.Details {
			out.Details[key] = value
		}
	}
	if e.Evaluation != nil {
		evaluation := *e.Evaluation
		evaluation.Reasons = append([]string(nil), e.Evaluation.Reasons...)
		evaluation.RequiredControls = append([]string(nil), e.Evaluation.RequiredControls...)
		evaluation.Risks = append([]entities.Risk(nil), e.Evaluation.Risks...)
		out.Evaluation = &evaluation
	}
	return out
}
