package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
	domainerrors "ouvrage/contexts/program-oversight/delegation-authority/domain/errors"
	"ouvrage/contexts/program-oversight/delegation-authority/domain/hashchain"
	"ouvrage/contexts/program-oversight/delegation-authority/domain/policy"
	"ouvrage/contexts/program-oversight/delegation-authority/ports"
)

const (
	moduleName    = "program-oversight/delegation-authority"
	sourceService = "delegation-authority-service"
)

// Service orchestrates delegation status transitions and couples every
// accepted transition to an extension of the audit chain. Rejected attempts
// touch neither the status nor the chain.
type Service struct {
	Repo                    ports.Repository
	Clock                   ports.Clock
	IDGen                   ports.IDGenerator
	DisableEvaluationEvents bool
	VerifyCache             *VerifyCache
	Logger                  *slog.Logger
}

// Submit moves a draft delegation into the approval queue. Only the grantor
// or a listed actor may submit.
func (s Service) Submit(ctx context.Context, delegationID string, actor entities.Person, notes string) (ports.TransitionResult, error) {
	return s.applyTransition(ctx, delegationID, actor, transitionSpec{
		target:    entities.StatusSubmitted,
		eventType: entities.EventTypeSubmitted,
		summary:   fmt.Sprintf("Delegation submitted for approval by %s", actor.Name),
		details:   map[string]string{"notes": strings.TrimSpace(notes)},
		guard: func(d entities.Delegation, now time.Time) error {
			if _, listed := d.ActorByID(actor.PersonID); !listed && !d.IsGrantor(actor.PersonID) {
				return domainerrors.ErrUnauthorized
			}
			return nil
		},
	})
}

// Approve activates a submitted delegation. The caller must hold the
// approve capability or be the grantor.
func (s Service) Approve(ctx context.Context, delegationID string, actor entities.Person, notes string) (ports.TransitionResult, error) {
	return s.applyTransition(ctx, delegationID, actor, transitionSpec{
		target:    entities.StatusActive,
		eventType: entities.EventTypeApproved,
		summary:   fmt.Sprintf("Delegation approved by %s", actor.Name),
		details:   map[string]string{"notes": strings.TrimSpace(notes)},
		guard: func(d entities.Delegation, now time.Time) error {
			if !d.ActorHas(actor.PersonID, entities.CapabilityApprove) && !d.IsGrantor(actor.PersonID) {
				return domainerrors.ErrUnauthorized
			}
			return nil
		},
	})
}

// Suspend pauses an active delegation. A reason is mandatory.
func (s Service) Suspend(ctx context.Context, delegationID string, actor entities.Person, reason string, expectedReactivation *time.Time) (ports.TransitionResult, error) {
	details := map[string]string{"reason": strings.TrimSpace(reason)}
	if expectedReactivation != nil {
		details["expected_reactivation"] = expectedReactivation.UTC().Format(time.RFC3339)
	}
	return s.applyTransition(ctx, delegationID, actor, transitionSpec{
		target:    entities.StatusSuspended,
		eventType: entities.EventTypeSuspended,
		summary:   fmt.Sprintf("Delegation suspended by %s", actor.Name),
		details:   details,
		guard: func(d entities.Delegation, now time.Time) error {
			if strings.TrimSpace(reason) == "" {
				return domainerrors.ErrValidation
			}
			return nil
		},
	})
}

// Reactivate resumes a suspended delegation, unless its validity window has
// already elapsed.
func (s Service) Reactivate(ctx context.Context, delegationID string, actor entities.Person) (ports.TransitionResult, error) {
	return s.applyTransition(ctx, delegationID, actor, transitionSpec{
		target:    entities.StatusActive,
		eventType: entities.EventTypeReactivated,
		summary:   fmt.Sprintf("Delegation reactivated by %s", actor.Name),
		details:   map[string]string{},
		guard: func(d entities.Delegation, now time.Time) error {
			if d.IsExpired(now) {
				return domainerrors.ErrInvalidTransition
			}
			return nil
		},
	})
}

// Revoke terminates the delegation. Revocation needs the revoke capability
// or the grantor, plus a reason; it succeeds exactly once.
func (s Service) Revoke(ctx context.Context, delegationID string, actor entities.Person, reason string) (ports.TransitionResult, error) {
	return s.applyTransition(ctx, delegationID, actor, transitionSpec{
		target:    entities.StatusRevoked,
		eventType: entities.EventTypeRevoked,
		summary:   fmt.Sprintf("Delegation revoked by %s", actor.Name),
		details:   map[string]string{"reason": strings.TrimSpace(reason)},
		guard: func(d entities.Delegation, now time.Time) error {
			if !d.ActorHas(actor.PersonID, entities.CapabilityRevoke) && !d.IsGrantor(actor.PersonID) {
				return domainerrors.ErrUnauthorized
			}
			if strings.TrimSpace(reason) == "" {
				return domainerrors.ErrValidation
			}
			return nil
		},
	})
}

type transitionSpec struct {
	target    entities.DelegationStatus
	eventType string
	summary   string
	details   map[string]string
	guard     func(d entities.Delegation, now time.Time) error
}

func (s Service) applyTransition(ctx context.Context, delegationID string, actor entities.Person, spec transitionSpec) (ports.TransitionResult, error) {
	logger := ResolveLogger(s.Logger)
	if strings.TrimSpace(delegationID) == "" || strings.TrimSpace(actor.PersonID) == "" {
		return ports.TransitionResult{}, domainerrors.ErrValidation
	}

	delegation, err := s.Repo.LoadDelegation(ctx, delegationID)
	if err != nil {
		return ports.TransitionResult{}, err
	}

	// Status machine first: submitting an active delegation is an invalid
	// transition regardless of who asks.
	if !delegation.CanTransitionTo(spec.target) {
		return ports.TransitionResult{}, domainerrors.ErrInvalidTransition
	}

	now := s.now()
	if err := spec.guard(delegation, now); err != nil {
		return ports.TransitionResult{}, err
	}

	event, err := s.buildEvent(ctx, delegation, actor, spec.eventType, spec.summary, spec.details, nil, now)
	if err != nil {
		return ports.TransitionResult{}, err
	}

	envelope, err := buildEnvelope(event, spec.target)
	if err != nil {
		return ports.TransitionResult{}, err
	}
	if err := s.Repo.AppendEvent(ctx, ports.AppendEventInput{
		DelegationID:         delegation.DelegationID,
		Event:                event,
		NewStatus:            spec.target,
		ExpectedPreviousHash: delegation.HeadHash,
		Outbox:               &envelope,
	}); err != nil {
		return ports.TransitionResult{}, err
	}

	logger.Info("delegation transition applied",
		"event", "delegation_transition_applied",
		"module", moduleName,
		"layer", "application",
		"delegation_id", delegation.DelegationID,
		"event_type", spec.eventType,
		"status", string(spec.target),
		"event_hash", hashchain.ShortHash(event.EventHash),
		"actor_id", actor.PersonID,
	)

	return ports.TransitionResult{
		DelegationID: delegation.DelegationID,
		Status:       spec.target,
		EventID:      event.EventID,
		EventHash:    event.EventHash,
		HeadHash:     event.EventHash,
		OccurredAt:   event.CreatedAt,
	}, nil
}

// Evaluate judges the action against the delegation without touching the
// chain; it is safe for what-if previews.
func (s Service) Evaluate(ctx context.Context, delegationID string, action entities.ActionContext) (ports.EvaluationOutcome, error) {
	if strings.TrimSpace(delegationID) == "" {
		return ports.EvaluationOutcome{}, domainerrors.ErrValidation
	}
	delegation, err := s.Repo.LoadDelegation(ctx, delegationID)
	if err != nil {
		return ports.EvaluationOutcome{}, err
	}

	if action.Timestamp.IsZero() {
		action.Timestamp = s.now()
	}
	result := policy.Evaluate(delegation, action)
	return ports.EvaluationOutcome{
		DelegationID: delegation.DelegationID,
		Result:       result,
		Summary:      policy.FormatEvaluationSummary(result),
	}, nil
}

// RecordEvaluation evaluates and appends an ACTION_EVALUATED event carrying
// the result snapshot. An authorized commitment also records an engagement
// against the quota in the same atomic write.
func (s Service) RecordEvaluation(ctx context.Context, delegationID string, action entities.ActionContext) (ports.EvaluationOutcome, error) {
	logger := ResolveLogger(s.Logger)
	outcome, err := s.Evaluate(ctx, delegationID, action)
	if err != nil {
		return ports.EvaluationOutcome{}, err
	}
	if s.DisableEvaluationEvents {
		return outcome, nil
	}

	delegation, err := s.Repo.LoadDelegation(ctx, delegationID)
	if err != nil {
		return ports.EvaluationOutcome{}, err
	}

	now := s.now()
	result := outcome.Result
	details := map[string]string{
		"action_type": action.ActionType,
		"bureau":      action.Bureau,
		"category":    action.Category,
		"amount":      strconv.FormatInt(action.Amount, 10),
		"currency":    action.Currency,
		"supplier":    action.Supplier,
		"verdict":     string(result.Verdict),
	}
	summary := fmt.Sprintf("Action %s evaluated: %s", action.ActionType, result.Verdict)
	event, err := s.buildEvent(ctx, delegation, action.Requester, entities.EventTypeActionEvaluated, summary, details, &result, now)
	if err != nil {
		return ports.EvaluationOutcome{}, err
	}

	input := ports.AppendEventInput{
		DelegationID:         delegation.DelegationID,
		Event:                event,
		ExpectedPreviousHash: delegation.HeadHash,
	}
	if result.Verdict == entities.VerdictAuthorized && action.Amount > 0 {
		engagementID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return ports.EvaluationOutcome{}, err
		}
		input.Engagement = &entities.Engagement{
			EngagementID: engagementID,
			Amount:       action.Amount,
			Supplier:     action.Supplier,
			RecordedAt:   now,
		}
	}
	envelope, err := buildEnvelope(event, delegation.Status)
	if err != nil {
		return ports.EvaluationOutcome{}, err
	}
	input.Outbox = &envelope

	if err := s.Repo.AppendEvent(ctx, input); err != nil {
		return ports.EvaluationOutcome{}, err
	}

	logger.Info("action evaluation recorded",
		"event", "delegation_evaluation_recorded",
		"module", moduleName,
		"layer", "application",
		"delegation_id", delegation.DelegationID,
		"verdict", string(result.Verdict),
		"event_hash", hashchain.ShortHash(event.EventHash),
	)

	outcome.Recorded = true
	outcome.EventID = event.EventID
	outcome.EventHash = event.EventHash
	return outcome, nil
}

// AuditVerify replays the full chain and reports the first break, if any.
// Results are cached by chain tip; a tip change misses the cache naturally.
func (s Service) AuditVerify(ctx context.Context, delegationID string) (ports.AuditReport, error) {
	if strings.TrimSpace(delegationID) == "" {
		return ports.AuditReport{}, domainerrors.ErrValidation
	}
	delegation, err := s.Repo.LoadDelegation(ctx, delegationID)
	if err != nil {
		return ports.AuditReport{}, err
	}

	if report, ok := s.VerifyCache.Get(delegation.HeadHash); ok {
		return report, nil
	}

	events, err := s.Repo.ListEvents(ctx, delegationID)
	if err != nil {
		return ports.AuditReport{}, err
	}

	verification, err := hashchain.VerifyChain(delegation.DecisionHash, hashchain.Algorithm(delegation.HashAlgorithm), events)
	if err != nil {
		return ports.AuditReport{}, err
	}

	report := ports.AuditReport{
		DelegationID:  delegation.DelegationID,
		Valid:         verification.Valid,
		EventsChecked: verification.EventsChecked,
		Algorithm:     verification.Algorithm,
		BrokenAt:      verification.BrokenAt,
		BrokenEventID: verification.BrokenEventID,
		HeadHash:      delegation.HeadHash,
	}
	if verification.Valid {
		report.Message = fmt.Sprintf("chain verified: %d event(s) under %s", verification.EventsChecked, verification.Algorithm)
	} else {
		report.Message = fmt.Sprintf("chain broken at index %d (event %s); this event and all later ones are untrusted", verification.BrokenAt, verification.BrokenEventID)
		ResolveLogger(s.Logger).Error("audit chain verification failed",
			"event", "delegation_chain_broken",
			"module", moduleName,
			"layer", "application",
			"delegation_id", delegation.DelegationID,
			"broken_at", verification.BrokenAt,
			"broken_event_id", verification.BrokenEventID,
		)
	}

	s.VerifyCache.Put(delegation.HeadHash, report)
	return report, nil
}

func (s Service) GetDelegation(ctx context.Context, delegationID string) (entities.Delegation, error) {
	if strings.TrimSpace(delegationID) == "" {
		return entities.Delegation{}, domainerrors.ErrValidation
	}
	return s.Repo.LoadDelegation(ctx, delegationID)
}

// ListEvents returns the chain oldest to newest for audit display. Display
// callers must pair this with AuditVerify and stop trusting entries at or
// after a reported break while still showing them for investigation.
func (s Service) ListEvents(ctx context.Context, delegationID string) ([]entities.DelegationEvent, error) {
	if strings.TrimSpace(delegationID) == "" {
		return nil, domainerrors.ErrValidation
	}
	return s.Repo.ListEvents(ctx, delegationID)
}

func (s Service) buildEvent(
	ctx context.Context,
	delegation entities.Delegation,
	actor entities.Person,
	eventType string,
	summary string,
	details map[string]string,
	evaluation *entities.EvaluationResult,
	now time.Time,
) (entities.DelegationEvent, error) {
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.DelegationEvent{}, err
	}

	event := entities.DelegationEvent{
		EventID:      eventID,
		DelegationID: delegation.DelegationID,
		EventType:    eventType,
		Actor:        actor,
		Summary:      summary,
		Details:      details,
		PreviousHash: delegation.HeadHash,
		Evaluation:   evaluation,
		CreatedAt:    now,
	}
	eventHash, err := hashchain.ComputeEventHash(
		hashchain.EventPayload(event),
		delegation.HeadHash,
		hashchain.Normalize(hashchain.Algorithm(delegation.HashAlgorithm)),
	)
	if err != nil {
		return entities.DelegationEvent{}, err
	}
	event.EventHash = eventHash
	return event, nil
}

func buildEnvelope(event entities.DelegationEvent, status entities.DelegationStatus) (ports.EventEnvelope, error) {
	data, err := json.Marshal(map[string]string{
		"delegation_id": event.DelegationID,
		"event_id":      event.EventID,
		"event_type":    event.EventType,
		"status":        string(status),
		"actor_id":      event.Actor.PersonID,
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:       event.EventID,
		EventType:     event.EventType,
		OccurredAt:    event.CreatedAt.UTC(),
		SourceService: sourceService,
		SchemaVersion: 1,
		Subject:       event.DelegationID,
		ChainHash:     event.EventHash,
		Data:          data,
	}, nil
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
