package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	delegationauthority "ouvrage/contexts/program-oversight/delegation-authority"
	domainerrors "ouvrage/contexts/program-oversight/delegation-authority/domain/errors"
	delegationhttp "ouvrage/contexts/program-oversight/delegation-authority/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	delegation delegationauthority.Module
}

func New(
	delegation delegationauthority.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		delegation: delegation,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/delegations/v1/{delegation_id}/submit", s.handleSubmit)
	s.mux.HandleFunc("POST /api/delegations/v1/{delegation_id}/approve", s.handleApprove)
	s.mux.HandleFunc("POST /api/delegations/v1/{delegation_id}/suspend", s.handleSuspend)
	s.mux.HandleFunc("POST /api/delegations/v1/{delegation_id}/reactivate", s.handleReactivate)
	s.mux.HandleFunc("POST /api/delegations/v1/{delegation_id}/revoke", s.handleRevoke)
	s.mux.HandleFunc("POST /api/delegations/v1/{delegation_id}/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("GET /api/delegations/v1/{delegation_id}", s.handleGetDelegation)
	s.mux.HandleFunc("GET /api/delegations/v1/{delegation_id}/events", s.handleListEvents)
	s.mux.HandleFunc("GET /api/delegations/v1/{delegation_id}/audit/verify", s.handleAuditVerify)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req delegationhttp.TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.delegation.Handler.SubmitHandler(r.Context(), r.PathValue("delegation_id"), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req delegationhttp.TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.delegation.Handler.ApproveHandler(r.Context(), r.PathValue("delegation_id"), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	var req delegationhttp.TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.delegation.Handler.SuspendHandler(r.Context(), r.PathValue("delegation_id"), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	var req delegationhttp.TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.delegation.Handler.ReactivateHandler(r.Context(), r.PathValue("delegation_id"), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req delegationhttp.TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.delegation.Handler.RevokeHandler(r.Context(), r.PathValue("delegation_id"), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req delegationhttp.EvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.delegation.Handler.EvaluateHandler(r.Context(), r.PathValue("delegation_id"), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDelegation(w http.ResponseWriter, r *http.Request) {
	resp, err := s.delegation.Handler.GetDelegationHandler(r.Context(), r.PathValue("delegation_id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	resp, err := s.delegation.Handler.ListEventsHandler(r.Context(), r.PathValue("delegation_id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	resp, err := s.delegation.Handler.AuditVerifyHandler(r.Context(), r.PathValue("delegation_id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domainerrors.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domainerrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domainerrors.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "concurrency_conflict", err.Error())
	case errors.Is(err, domainerrors.ErrChainIntegrity):
		writeError(w, http.StatusInternalServerError, "chain_integrity_broken", err.Error())
	default:
		s.logger.Error("unhandled domain error",
			"event", "http_unhandled_error",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, delegationhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
