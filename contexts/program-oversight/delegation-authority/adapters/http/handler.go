package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"ouvrage/contexts/program-oversight/delegation-authority/application"
	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
	domainerrors "ouvrage/contexts/program-oversight/delegation-authority/domain/errors"
	"ouvrage/contexts/program-oversight/delegation-authority/domain/hashchain"
	"ouvrage/contexts/program-oversight/delegation-authority/ports"
	httptransport "ouvrage/contexts/program-oversight/delegation-authority/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) SubmitHandler(ctx context.Context, delegationID string, req httptransport.TransitionRequest) (httptransport.TransitionResponse, error) {
	result, err := h.Service.Submit(ctx, delegationID, toPerson(req.Actor), req.Notes)
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return transitionResponse(result), nil
}

func (h Handler) ApproveHandler(ctx context.Context, delegationID string, req httptransport.TransitionRequest) (httptransport.TransitionResponse, error) {
	result, err := h.Service.Approve(ctx, delegationID, toPerson(req.Actor), req.Notes)
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return transitionResponse(result), nil
}

func (h Handler) SuspendHandler(ctx context.Context, delegationID string, req httptransport.TransitionRequest) (httptransport.TransitionResponse, error) {
	var expectedReactivation *time.Time
	if req.ExpectedReactivation != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpectedReactivation)
		if err != nil {
			return httptransport.TransitionResponse{}, domainerrors.ErrValidation
		}
		expectedReactivation = &parsed
	}
	result, err := h.Service.Suspend(ctx, delegationID, toPerson(req.Actor), req.Reason, expectedReactivation)
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return transitionResponse(result), nil
}

func (h Handler) ReactivateHandler(ctx context.Context, delegationID string, req httptransport.TransitionRequest) (httptransport.TransitionResponse, error) {
	result, err := h.Service.Reactivate(ctx, delegationID, toPerson(req.Actor))
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return transitionResponse(result), nil
}

func (h Handler) RevokeHandler(ctx context.Context, delegationID string, req httptransport.TransitionRequest) (httptransport.TransitionResponse, error) {
	result, err := h.Service.Revoke(ctx, delegationID, toPerson(req.Actor), req.Reason)
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return transitionResponse(result), nil
}

func (h Handler) EvaluateHandler(ctx context.Context, delegationID string, req httptransport.EvaluateRequest) (httptransport.EvaluateResponse, error) {
	action := entities.ActionContext{
		ActionType:        req.ActionType,
		Bureau:            req.Bureau,
		Project:           req.Project,
		Category:          req.Category,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Supplier:          req.Supplier,
		EvidencedControls: req.EvidencedControls,
		Requester:         toPerson(req.Requester),
	}
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return httptransport.EvaluateResponse{}, domainerrors.ErrValidation
		}
		action.Timestamp = parsed
	}

	var outcome ports.EvaluationOutcome
	var err error
	if req.Record {
		outcome, err = h.Service.RecordEvaluation(ctx, delegationID, action)
	} else {
		outcome, err = h.Service.Evaluate(ctx, delegationID, action)
	}
	if err != nil {
		return httptransport.EvaluateResponse{}, err
	}
	return httptransport.EvaluateResponse{
		Status: "success",
		Data:   toEvaluationDTO(outcome),
	}, nil
}

func (h Handler) AuditVerifyHandler(ctx context.Context, delegationID string) (httptransport.AuditVerifyResponse, error) {
	report, err := h.Service.AuditVerify(ctx, delegationID)
	if err != nil {
		return httptransport.AuditVerifyResponse{}, err
	}
	return httptransport.AuditVerifyResponse{
		Status: "success",
		Data: httptransport.AuditReportDTO{
			DelegationID:  report.DelegationID,
			Valid:         report.Valid,
			EventsChecked: report.EventsChecked,
			Algorithm:     string(report.Algorithm),
			BrokenAt:      report.BrokenAt,
			BrokenEventID: report.BrokenEventID,
			HeadHash:      report.HeadHash,
			Message:       report.Message,
		},
	}, nil
}

func (h Handler) GetDelegationHandler(ctx context.Context, delegationID string) (httptransport.DelegationResponse, error) {
	delegation, err := h.Service.GetDelegation(ctx, delegationID)
	if err != nil {
		return httptransport.DelegationResponse{}, err
	}
	return httptransport.DelegationResponse{
		Status: "success",
		Data:   toDelegationDTO(delegation, time.Now().UTC()),
	}, nil
}

func (h Handler) ListEventsHandler(ctx context.Context, delegationID string) (httptransport.EventListResponse, error) {
	events, err := h.Service.ListEvents(ctx, delegationID)
	if err != nil {
		return httptransport.EventListResponse{}, err
	}
	resp := httptransport.EventListResponse{
		Status: "success",
		Data:   make([]httptransport.EventDTO, 0, len(events)),
	}
	for _, event := range events {
		resp.Data = append(resp.Data, toEventDTO(event))
	}
	return resp, nil
}

func toPerson(dto httptransport.PersonDTO) entities.Person {
	return entities.Person{
		PersonID: dto.PersonID,
		Name:     dto.Name,
		Role:     dto.Role,
	}
}

func transitionResponse(result ports.TransitionResult) httptransport.TransitionResponse {
	return httptransport.TransitionResponse{
		Status: "success",
		Data: httptransport.TransitionDTO{
			DelegationID: result.DelegationID,
			Status:       string(result.Status),
			EventID:      result.EventID,
			EventHash:    result.EventHash,
			HeadHash:     result.HeadHash,
			OccurredAt:   result.OccurredAt.UTC().Format(time.RFC3339),
		},
	}
}

func toEvaluationDTO(outcome ports.EvaluationOutcome) httptransport.EvaluationDTO {
	result := outcome.Result
	risks := make([]httptransport.RiskDTO, 0, len(result.Risks))
	for _, risk := range result.Risks {
		risks = append(risks, httptransport.RiskDTO{
			Type:     risk.Type,
			Severity: string(risk.Severity),
			Message:  risk.Message,
		})
	}
	reasons := result.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return httptransport.EvaluationDTO{
		DelegationID:     outcome.DelegationID,
		Verdict:          string(result.Verdict),
		Reasons:          reasons,
		RequiredControls: result.RequiredControls,
		Risks:            risks,
		MatchedPolicyID:  result.MatchedPolicyID,
		Summary:          outcome.Summary,
		Recorded:         outcome.Recorded,
		EventID:          outcome.EventID,
		EventHash:        outcome.EventHash,
	}
}

func toEventDTO(event entities.DelegationEvent) httptransport.EventDTO {
	dto := httptransport.EventDTO{
		EventID:      event.EventID,
		DelegationID: event.DelegationID,
		EventType:    event.EventType,
		Actor: httptransport.PersonDTO{
			PersonID: event.Actor.PersonID,
			Name:     event.Actor.Name,
			Role:     event.Actor.Role,
		},
		Summary:      event.Summary,
		Details:      event.Details,
		PreviousHash: event.PreviousHash,
		EventHash:    event.EventHash,
		ShortHash:    hashchain.ShortHash(event.EventHash),
		CreatedAt:    event.CreatedAt.UTC().Format(time.RFC3339),
	}
	if event.Evaluation != nil {
		dto.Verdict = string(event.Evaluation.Verdict)
	}
	return dto
}

func toDelegationDTO(delegation entities.Delegation, now time.Time) httptransport.DelegationDTO {
	return httptransport.DelegationDTO{
		DelegationID: delegation.DelegationID,
		Category:     delegation.Category,
		Status:       string(delegation.Status),
		Expired:      delegation.IsExpired(now),
		Grantor: httptransport.PersonDTO{
			PersonID: delegation.Grantor.PersonID,
			Name:     delegation.Grantor.Name,
			Role:     delegation.Grantor.Role,
		},
		Agent: httptransport.PersonDTO{
			PersonID: delegation.Agent.PersonID,
			Name:     delegation.Agent.Name,
			Role:     delegation.Agent.Role,
		},
		ScopeMode:         string(delegation.Scope.Mode),
		Bureaus:           delegation.Scope.Bureaus,
		Projects:          delegation.Scope.Projects,
		Categories:        delegation.Scope.Categories,
		MaxPerTransaction: delegation.Limits.MaxPerTransaction,
		Quota:             delegation.Limits.Quota,
		CommittedAmount:   delegation.CommittedAmount(),
		Currency:          delegation.Limits.Currency,
		StartsAt:          delegation.Validity.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:            delegation.Validity.EndsAt.UTC().Format(time.RFC3339),
		DecisionHash:      delegation.DecisionHash,
		HeadHash:          delegation.HeadHash,
		HashAlgorithm:     delegation.HashAlgorithm,
	}
}
