package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
	domainerrors "ouvrage/contexts/program-oversight/delegation-authority/domain/errors"
	"ouvrage/contexts/program-oversight/delegation-authority/domain/hashchain"
	"ouvrage/contexts/program-oversight/delegation-authority/domain/services"
	"ouvrage/contexts/program-oversight/delegation-authority/ports"
)

func seedStore(t *testing.T) (*Store, entities.Delegation) {
	t.Helper()

	store := NewStore()
	delegation := entities.Delegation{
		DelegationID: "delegation-1",
		Status:       entities.StatusActive,
		Grantor:      entities.Person{PersonID: "person-grantor", Name: "Awa Diop"},
		Agent:        entities.Person{PersonID: "person-agent", Name: "Mamadou Fall"},
		CreatedAt:    time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
	}
	if err := services.InitializeChain(&delegation, hashchain.DefaultAlgorithm); err != nil {
		t.Fatalf("initialize chain failed: %v", err)
	}
	if err := store.CreateDelegation(context.Background(), delegation); err != nil {
		t.Fatalf("create delegation failed: %v", err)
	}
	return store, delegation
}

func chainEvent(t *testing.T, delegation entities.Delegation, previousHash string, summary string) entities.DelegationEvent {
	t.Helper()

	eventID, err := hashchain.NewEventID()
	if err != nil {
		t.Fatalf("new event id failed: %v", err)
	}
	event := entities.DelegationEvent{
		EventID:      eventID,
		DelegationID: delegation.DelegationID,
		EventType:    entities.EventTypeSuspended,
		Actor:        delegation.Grantor,
		Summary:      summary,
		Details:      map[string]string{"reason": "test"},
		PreviousHash: previousHash,
		CreatedAt:    time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
	}
	eventHash, err := hashchain.ComputeEventHash(
		hashchain.EventPayload(event),
		previousHash,
		hashchain.Algorithm(delegation.HashAlgorithm),
	)
	if err != nil {
		t.Fatalf("compute event hash failed: %v", err)
	}
	event.EventHash = eventHash
	return event
}

func TestAppendEventAdvancesTipAndStatus(t *testing.T) {
	store, delegation := seedStore(t)
	event := chainEvent(t, delegation, delegation.HeadHash, "suspend for audit")

	err := store.AppendEvent(context.Background(), ports.AppendEventInput{
		DelegationID:         delegation.DelegationID,
		Event:                event,
		NewStatus:            entities.StatusSuspended,
		ExpectedPreviousHash: delegation.HeadHash,
	})
	if err != nil {
		t.Fatalf("append event failed: %v", err)
	}

	updated, err := store.LoadDelegation(context.Background(), delegation.DelegationID)
	if err != nil {
		t.Fatalf("load delegation failed: %v", err)
	}
	if updated.HeadHash != event.EventHash {
		t.Fatalf("tip must advance to the new event hash")
	}
	if updated.Status != entities.StatusSuspended {
		t.Fatalf("status must follow the transition, got %s", updated.Status)
	}
}

func TestAppendEventRejectsStaleTip(t *testing.T) {
	store, delegation := seedStore(t)

	first := chainEvent(t, delegation, delegation.HeadHash, "first writer")
	if err := store.AppendEvent(context.Background(), ports.AppendEventInput{
		DelegationID:         delegation.DelegationID,
		Event:                first,
		ExpectedPreviousHash: delegation.HeadHash,
	}); err != nil {
		t.Fatalf("first append failed: %v", err)
	}

	// Second writer raced on the same snapshot; its expected tip is stale.
	second := chainEvent(t, delegation, delegation.HeadHash, "second writer")
	err := store.AppendEvent(context.Background(), ports.AppendEventInput{
		DelegationID:         delegation.DelegationID,
		Event:                second,
		ExpectedPreviousHash: delegation.HeadHash,
	})
	if !errors.Is(err, domainerrors.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}

	events, _ := store.ListEvents(context.Background(), delegation.DelegationID)
	if len(events) != 1 {
		t.Fatalf("losing writer must not extend the chain, got %d events", len(events))
	}
}

func TestAppendEventRejectsDisconnectedLink(t *testing.T) {
	store, delegation := seedStore(t)

	event := chainEvent(t, delegation, "not-the-current-tip", "broken link")
	err := store.AppendEvent(context.Background(), ports.AppendEventInput{
		DelegationID:         delegation.DelegationID,
		Event:                event,
		ExpectedPreviousHash: delegation.HeadHash,
	})
	if !errors.Is(err, domainerrors.ErrChainIntegrity) {
		t.Fatalf("expected ErrChainIntegrity, got %v", err)
	}
}

func TestAppendEventUnknownDelegation(t *testing.T) {
	store, delegation := seedStore(t)
	event := chainEvent(t, delegation, delegation.HeadHash, "orphan")

	err := store.AppendEvent(context.Background(), ports.AppendEventInput{
		DelegationID:         "delegation-missing",
		Event:                event,
		ExpectedPreviousHash: delegation.HeadHash,
	})
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTamperedStoredEventFailsVerification(t *testing.T) {
	store, delegation := seedStore(t)

	event := chainEvent(t, delegation, delegation.HeadHash, "legitimate entry")
	if err := store.AppendEvent(context.Background(), ports.AppendEventInput{
		DelegationID:         delegation.DelegationID,
		Event:                event,
		ExpectedPreviousHash: delegation.HeadHash,
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Tamper with the stored record behind the repository's back.
	store.mu.Lock()
	store.events[delegation.DelegationID][0].Summary = "rewritten history"
	store.mu.Unlock()

	events, err := store.ListEvents(context.Background(), delegation.DelegationID)
	if err != nil {
		t.Fatalf("list events failed: %v", err)
	}
	result, err := hashchain.VerifyChain(delegation.DecisionHash, hashchain.Algorithm(delegation.HashAlgorithm), events)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Valid || result.BrokenAt != 0 {
		t.Fatalf("expected break at index 0, got %+v", result)
	}
}

func TestOutboxRowsRideTheAppend(t *testing.T) {
	store, delegation := seedStore(t)
	event := chainEvent(t, delegation, delegation.HeadHash, "with outbox")

	envelope := ports.EventEnvelope{
		EventID:       event.EventID,
		EventType:     event.EventType,
		OccurredAt:    event.CreatedAt,
		SourceService: "delegation-authority-service",
		SchemaVersion: 1,
		Subject:       delegation.DelegationID,
		ChainHash:     event.EventHash,
	}
	if err := store.AppendEvent(context.Background(), ports.AppendEventInput{
		DelegationID:         delegation.DelegationID,
		Event:                event,
		ExpectedPreviousHash: delegation.HeadHash,
		Outbox:               &envelope,
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != event.EventID {
		t.Fatalf("expected one pending outbox row for the event, got %+v", pending)
	}

	if err := store.MarkOutboxPublished(context.Background(), event.EventID, time.Now().UTC()); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, _ = store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("published row must leave the pending set")
	}
}

func TestLoadDelegationReturnsCopies(t *testing.T) {
	store, delegation := seedStore(t)

	loaded, err := store.LoadDelegation(context.Background(), delegation.DelegationID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	loaded.Status = entities.StatusRevoked
	loaded.Scope.Bureaus = append(loaded.Scope.Bureaus, "THIES")

	fresh, _ := store.LoadDelegation(context.Background(), delegation.DelegationID)
	if fresh.Status != entities.StatusActive {
		t.Fatalf("callers must not mutate stored state through returned values")
	}
}
