// Package httpserver wires every substrate bounded context's HTTP handler
// facade onto one net/http.ServeMux, mapping domain errors to status codes
// and applying the cross-cutting correlation-id/observer/ops-role headers
// spec §6 names.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	agentengine "oxsubstrate/contexts/substrate/agent-engine"
	agenterrors "oxsubstrate/contexts/substrate/agent-engine/domain/errors"
	agenthttp "oxsubstrate/contexts/substrate/agent-engine/transport/http"

	environmentservice "oxsubstrate/contexts/substrate/environment-service"
	environmenterrors "oxsubstrate/contexts/substrate/environment-service/domain/errors"
	environmenthttp "oxsubstrate/contexts/substrate/environment-service/transport/http"

	sponsorengine "oxsubstrate/contexts/substrate/sponsor-engine"
	sponsorerrors "oxsubstrate/contexts/substrate/sponsor-engine/domain/errors"
	sponsorhttp "oxsubstrate/contexts/substrate/sponsor-engine/transport/http"

	readapi "oxsubstrate/contexts/substrate/read-api"
	readapierrors "oxsubstrate/contexts/substrate/read-api/domain/errors"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "oxsubstrate/internal/platform/httpserver/docs"
)

// Server wires every bounded context's inbound HTTP adapter onto one mux.
type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	httpServer *http.Server

	agents      agentengine.Module
	environment environmentservice.Module
	sponsors    sponsorengine.Module
	readAPI     readapi.Module
}

// New builds a Server from the already-wired per-context modules.
func New(
	agents agentengine.Module,
	environment environmentservice.Module,
	sponsors sponsorengine.Module,
	readAPI readapi.Module,
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
		mux:         http.NewServeMux(),
		logger:      logger,
		addr:        addr,
		agents:      agents,
		environment: environment,
		sponsors:    sponsors,
		readAPI:     readAPI,
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: withCorrelationID(s.mux),
	}
	return s
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if s.httpServer == nil {
		s.httpServer = &http.Server{Addr: s.addr, Handler: withCorrelationID(s.mux)}
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// withCorrelationID mints x-correlation-id when the caller didn't supply
// one, per spec §6, and propagates it back on the response for tracing.
func withCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := strings.TrimSpace(r.Header.Get("x-correlation-id"))
		if correlationID == "" {
			correlationID = randomID("corr")
			r.Header.Set("x-correlation-id", correlationID)
		}
		w.Header().Set("x-correlation-id", correlationID)
		next.ServeHTTP(w, r)
	})
}

func randomID(prefix string) string {
	return prefix + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Agent Action Engine (spec §4.3)
	s.mux.HandleFunc("POST /agents", s.handleAgentCreate)
	s.mux.HandleFunc("POST /agents/{agent_id}/archive", s.handleAgentArchive)
	s.mux.HandleFunc("POST /agents/{agent_id}/redeploy", s.handleAgentRedeploy)
	s.mux.HandleFunc("POST /agents/{agent_id}/sponsor", s.handleAgentReassignSponsor)
	s.mux.HandleFunc("PUT /agents/{agent_id}/config", s.handleAgentUpdateConfig)
	s.mux.HandleFunc("POST /agents/{agent_id}/capacity", s.handleAgentAllocateCapacity)
	s.mux.HandleFunc("POST /agents/{agent_id}/attempt", s.handleAgentAttempt)

	// Environment Service
	s.mux.HandleFunc("PUT /admin/environment/{target}", s.handleEnvironmentSetState)
	s.mux.HandleFunc("DELETE /admin/environment/{target}", s.handleEnvironmentRemoveState)
	s.mux.HandleFunc("POST /admin/environment/{target}/localities", s.handleEnvironmentCreateLocality)
	s.mux.HandleFunc("PUT /admin/localities/{locality_id}/members/{agent_id}", s.handleEnvironmentSetMembership)

	// Sponsor Influence Engine
	s.mux.HandleFunc("POST /sponsors/{sponsor_id}/credits/purchase", s.handleSponsorPurchaseCredits)
	s.mux.HandleFunc("POST /sponsors/{sponsor_id}/agents/{agent_id}/credits/allocate", s.handleSponsorAllocateCredits)
	s.mux.HandleFunc("POST /sponsors/{sponsor_id}/pressures", s.handleSponsorIssuePressure)
	s.mux.HandleFunc("DELETE /sponsors/{sponsor_id}/pressures/{pressure_id}", s.handleSponsorCancelPressure)

	// Read API (spec §4.6)
	s.mux.HandleFunc("GET /ox/live", s.handleReadLive)
	s.mux.HandleFunc("GET /ox/sessions", s.handleReadSessions)
	s.mux.HandleFunc("GET /ox/artifacts", s.handleReadArtifacts)
	s.mux.HandleFunc("GET /ox/agents/{agent_id}/perceived-by", s.handleReadPerceivedBy)
	s.mux.HandleFunc("GET /ox/observe", s.handleReadObserve)
	s.mux.HandleFunc("POST /ox/admin/dead-letters/{source_event_id}/redrive", s.handleReadRedrive)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, onError func(http.ResponseWriter, int, string, string)) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		onError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func correlationID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("x-correlation-id"))
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("x-idempotency-key"))
}

func queryIntOrDefault(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// --- Agent Action Engine -----------------------------------------------

func writeAgentError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, agenthttp.ErrorResponse{Code: code, Message: message})
}

func agentErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, agenterrors.ErrAgentNotFound):
		return http.StatusNotFound, "agent_not_found"
	case errors.Is(err, agenterrors.ErrAgentUnavailable):
		return http.StatusConflict, "agent_unavailable"
	case errors.Is(err, agenterrors.ErrInvalidActionType),
		errors.Is(err, agenterrors.ErrInvalidCost),
		errors.Is(err, agenterrors.ErrMissingSubjectAgent),
		errors.Is(err, agenterrors.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, agenterrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, agenterrors.ErrIdempotencyConflict):
		return http.StatusConflict, "idempotency_conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) handleAgentCreate(w http.ResponseWriter, r *http.Request) {
	var req agenthttp.CreateAgentRequest
	if !decodeJSON(w, r, &req, writeAgentError) {
		return
	}
	resp, err := s.agents.Handler.CreateAgentHandler(r.Context(), req)
	if err != nil {
		status, code := agentErrorStatus(err)
		writeAgentError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleAgentArchive(w http.ResponseWriter, r *http.Request) {
	if err := s.agents.Handler.ArchiveAgentHandler(r.Context(), r.PathValue("agent_id")); err != nil {
		status, code := agentErrorStatus(err)
		writeAgentError(w, status, code, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAgentRedeploy(w http.ResponseWriter, r *http.Request) {
	var req agenthttp.RedeployAgentRequest
	if !decodeJSON(w, r, &req, writeAgentError) {
		return
	}
	resp, err := s.agents.Handler.RedeployAgentHandler(r.Context(), r.PathValue("agent_id"), req)
	if err != nil {
		status, code := agentErrorStatus(err)
		writeAgentError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgentReassignSponsor(w http.ResponseWriter, r *http.Request) {
	var req agenthttp.ReassignSponsorRequest
	if !decodeJSON(w, r, &req, writeAgentError) {
		return
	}
	resp, err := s.agents.Handler.ReassignSponsorHandler(r.Context(), r.PathValue("agent_id"), req)
	if err != nil {
		status, code := agentErrorStatus(err)
		writeAgentError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgentUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req agenthttp.UpdateConfigRequest
	if !decodeJSON(w, r, &req, writeAgentError) {
		return
	}
	resp, err := s.agents.Handler.UpdateConfigHandler(r.Context(), r.PathValue("agent_id"), req)
	if err != nil {
		status, code := agentErrorStatus(err)
		writeAgentError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgentAllocateCapacity(w http.ResponseWriter, r *http.Request) {
	var req agenthttp.AllocateCapacityRequest
	if !decodeJSON(w, r, &req, writeAgentError) {
		return
	}
	resp, err := s.agents.Handler.AllocateCapacityHandler(r.Context(), r.PathValue("agent_id"), req)
	if err != nil {
		status, code := agentErrorStatus(err)
		writeAgentError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgentAttempt(w http.ResponseWriter, r *http.Request) {
	var req agenthttp.AttemptRequest
	if !decodeJSON(w, r, &req, writeAgentError) {
		return
	}
	if req.CorrelationID == "" {
		req.CorrelationID = correlationID(r)
	}
	resp, err := s.agents.Handler.AttemptHandler(r.Context(), r.PathValue("agent_id"), idempotencyKey(r), req)
	if err != nil {
		status, code := agentErrorStatus(err)
		writeAgentError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Environment Service -------------------------------------------------

func writeEnvironmentError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, environmenthttp.ErrorResponse{Error: message})
}

func environmentErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, environmenterrors.ErrStateNotFound), errors.Is(err, environmenterrors.ErrLocalityNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, environmenterrors.ErrInvalidThrottleFactor),
		errors.Is(err, environmenterrors.ErrInvalidWindow),
		errors.Is(err, environmenterrors.ErrInvalidAvailability):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, environmenterrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) handleEnvironmentSetState(w http.ResponseWriter, r *http.Request) {
	var req environmenthttp.SetStateRequest
	if !decodeJSON(w, r, &req, writeEnvironmentError) {
		return
	}
	actorID := strings.TrimSpace(r.Header.Get("x-observer-id"))
	resp, err := s.environment.Handler.SetStateHandler(r.Context(), r.PathValue("target"), actorID, correlationID(r), req)
	if err != nil {
		status, code := environmentErrorStatus(err)
		writeEnvironmentError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnvironmentRemoveState(w http.ResponseWriter, r *http.Request) {
	actorID := strings.TrimSpace(r.Header.Get("x-observer-id"))
	if err := s.environment.Handler.RemoveStateHandler(r.Context(), r.PathValue("target"), actorID, correlationID(r)); err != nil {
		status, code := environmentErrorStatus(err)
		writeEnvironmentError(w, status, code, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnvironmentCreateLocality(w http.ResponseWriter, r *http.Request) {
	var req environmenthttp.CreateLocalityRequest
	if !decodeJSON(w, r, &req, writeEnvironmentError) {
		return
	}
	resp, err := s.environment.Handler.CreateLocalityHandler(r.Context(), r.PathValue("target"), req)
	if err != nil {
		status, code := environmentErrorStatus(err)
		writeEnvironmentError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleEnvironmentSetMembership(w http.ResponseWriter, r *http.Request) {
	var req environmenthttp.SetMembershipRequest
	if !decodeJSON(w, r, &req, writeEnvironmentError) {
		return
	}
	if err := s.environment.Handler.SetMembershipHandler(r.Context(), r.PathValue("locality_id"), r.PathValue("agent_id"), req); err != nil {
		status, code := environmentErrorStatus(err)
		writeEnvironmentError(w, status, code, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sponsor Influence Engine ---------------------------------------------

func writeSponsorError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, sponsorhttp.ErrorResponse{Error: message})
}

func sponsorErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, sponsorerrors.ErrWalletNotFound),
		errors.Is(err, sponsorerrors.ErrPressureNotFound),
		errors.Is(err, sponsorerrors.ErrPolicyNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, sponsorerrors.ErrSponsorCreditInsufficient):
		return http.StatusPaymentRequired, "sponsor_credit_insufficient"
	case errors.Is(err, sponsorerrors.ErrInvalidAmount), errors.Is(err, sponsorerrors.ErrInvalidMagnitude),
		errors.Is(err, sponsorerrors.ErrInvalidHalfLife):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, sponsorerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, sponsorerrors.ErrIdempotencyConflict):
		return http.StatusConflict, "idempotency_conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) handleSponsorPurchaseCredits(w http.ResponseWriter, r *http.Request) {
	var req sponsorhttp.PurchaseCreditsRequest
	if !decodeJSON(w, r, &req, writeSponsorError) {
		return
	}
	resp, err := s.sponsors.Handler.PurchaseCreditsHandler(r.Context(), r.PathValue("sponsor_id"), idempotencyKey(r), req)
	if err != nil {
		status, code := sponsorErrorStatus(err)
		writeSponsorError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSponsorAllocateCredits(w http.ResponseWriter, r *http.Request) {
	var req sponsorhttp.AllocateCreditsRequest
	if !decodeJSON(w, r, &req, writeSponsorError) {
		return
	}
	resp, err := s.sponsors.Handler.AllocateCreditsHandler(r.Context(), r.PathValue("sponsor_id"), r.PathValue("agent_id"), idempotencyKey(r), req)
	if err != nil {
		status, code := sponsorErrorStatus(err)
		writeSponsorError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSponsorIssuePressure(w http.ResponseWriter, r *http.Request) {
	var req sponsorhttp.IssuePressureRequest
	if !decodeJSON(w, r, &req, writeSponsorError) {
		return
	}
	resp, err := s.sponsors.Handler.IssuePressureHandler(r.Context(), r.PathValue("sponsor_id"), req)
	if err != nil {
		status, code := sponsorErrorStatus(err)
		writeSponsorError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSponsorCancelPressure(w http.ResponseWriter, r *http.Request) {
	if err := s.sponsors.Handler.CancelPressureHandler(r.Context(), r.PathValue("sponsor_id"), r.PathValue("pressure_id")); err != nil {
		status, code := sponsorErrorStatus(err)
		writeSponsorError(w, status, code, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Read API ---------------------------------------------------------

func writeReadError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{Code: code, Message: message})
}

func readErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, readapierrors.ErrForbidden), errors.Is(err, readapierrors.ErrOpsForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, readapierrors.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, readapierrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, readapierrors.ErrAlreadyRedriven):
		return http.StatusConflict, "already_redriven"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func observerHeaders(r *http.Request) (string, string) {
	return strings.TrimSpace(r.Header.Get("x-observer-id")), strings.TrimSpace(r.Header.Get("x-observer-role"))
}

func (s *Server) handleReadLive(w http.ResponseWriter, r *http.Request) {
	observerID, observerRole := observerHeaders(r)
	rows, err := s.readAPI.Handler.LiveHandler(r.Context(), observerID, observerRole,
		r.URL.Query().Get("deployment_target"), queryIntOrDefault(r, "limit", 100))
	if err != nil {
		status, code := readErrorStatus(err)
		writeReadError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleReadSessions(w http.ResponseWriter, r *http.Request) {
	observerID, observerRole := observerHeaders(r)
	activeOnly := strings.TrimSpace(r.URL.Query().Get("active_only")) == "true"
	rows, err := s.readAPI.Handler.SessionsHandler(r.Context(), observerID, observerRole,
		r.URL.Query().Get("deployment_target"), activeOnly)
	if err != nil {
		status, code := readErrorStatus(err)
		writeReadError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleReadArtifacts(w http.ResponseWriter, r *http.Request) {
	observerID, observerRole := observerHeaders(r)
	rows, err := s.readAPI.Handler.ArtifactsHandler(r.Context(), observerID, observerRole,
		r.URL.Query().Get("agent_id"), queryIntOrDefault(r, "limit", 100))
	if err != nil {
		status, code := readErrorStatus(err)
		writeReadError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleReadPerceivedBy(w http.ResponseWriter, r *http.Request) {
	observerID, observerRole := observerHeaders(r)
	rows, err := s.readAPI.Handler.PerceivedByHandler(r.Context(), observerID, observerRole,
		r.PathValue("agent_id"), queryIntOrDefault(r, "limit", 100))
	if err != nil {
		status, code := readErrorStatus(err)
		writeReadError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleReadObserve(w http.ResponseWriter, r *http.Request) {
	observerID, observerRole := observerHeaders(r)
	resp, err := s.readAPI.Handler.ObserveHandler(r.Context(), observerID, observerRole)
	if err != nil {
		status, code := readErrorStatus(err)
		writeReadError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReadRedrive(w http.ResponseWriter, r *http.Request) {
	opsRole := strings.TrimSpace(r.Header.Get("x-ops-role"))
	if err := s.readAPI.Handler.RedriveDeadLetterHandler(r.Context(), opsRole, r.PathValue("source_event_id")); err != nil {
		status, code := readErrorStatus(err)
		writeReadError(w, status, code, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
