package application

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/read-api/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/read-api/domain/errors"
	"oxsubstrate/contexts/substrate/read-api/domain/services"
	"oxsubstrate/contexts/substrate/read-api/ports"
)

// QueryUseCase implements the common §4.6 envelope every read endpoint
// shares: resolve role, apply the endpoint's minimum, enforce its rate
// limit, write the access log, then let the caller apply role filtering to
// whatever Repo returned.
type QueryUseCase struct {
	Repo    ports.Repository
	Limiter ports.RateLimiter
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (uc QueryUseCase) logger() *slog.Logger { return ResolveLogger(uc.Logger) }

// Gate resolves and authorizes one request against endpoint's policy. The
// returned role is always at least the endpoint's minimum on success; on
// failure the caller must not execute the underlying query. A denied
// request is access-logged here with a response count of 0.
func (uc QueryUseCase) Gate(ctx context.Context, endpoint services.Endpoint, observerID, observerRoleHeader string) (entities.ObserverRole, error) {
	role := entities.NormalizeRole(observerRoleHeader)
	minimum := services.MinRole(endpoint)
	if !role.Satisfies(minimum) {
		uc.LogAccess(ctx, endpoint, observerID, role, nil, 0)
		return role, domainerrors.ErrForbidden
	}
	if uc.Limiter != nil && !uc.Limiter.Allow(string(endpoint), observerID, services.RequestsPerMinute(endpoint)) {
		uc.LogAccess(ctx, endpoint, observerID, role, nil, 0)
		return role, domainerrors.ErrRateLimited
	}
	return role, nil
}

// LogAccess records the ObserverAccessLog row written for every served or
// denied request (spec §3). A
// logging failure is reported but never blocks the response already
// computed by the caller.
func (uc QueryUseCase) LogAccess(ctx context.Context, endpoint services.Endpoint, observerID string, role entities.ObserverRole, queryParams map[string]string, responseCount int) {
	log := entities.AccessLog{
		ObserverID:    observerID,
		ObserverRole:  role,
		Endpoint:      string(endpoint),
		QueryParams:   encodeParams(queryParams),
		ResponseCount: responseCount,
		AccessedAt:    uc.now(),
	}
	if err := uc.Repo.RecordAccessLog(ctx, log); err != nil {
		uc.logger().Error("observer access log write failed",
			"event", "read_api_access_log_failed",
			"module", "substrate/read-api",
			"layer", "application",
			"endpoint", string(endpoint),
			"error", err.Error(),
		)
	}
}

// ListLive serves GET /ox/live.
func (uc QueryUseCase) ListLive(ctx context.Context, observerID, roleHeader, deploymentTarget string, limit int) ([]entities.LiveEventView, entities.ObserverRole, error) {
	role, err := uc.Gate(ctx, services.EndpointLive, observerID, roleHeader)
	if err != nil {
		return nil, role, err
	}
	rows, err := uc.Repo.ListLiveEvents(ctx, deploymentTarget, boundedLimit(limit))
	if err != nil {
		return nil, role, err
	}
	out := make([]entities.LiveEventView, 0, len(rows))
	for _, row := range rows {
		out = append(out, services.FilterLiveEvent(role, row))
	}
	uc.LogAccess(ctx, services.EndpointLive, observerID, role, map[string]string{
		"deployment_target": deploymentTarget, "limit": strconv.Itoa(limit),
	}, len(out))
	return out, role, nil
}

// ListSessions serves GET /ox/sessions.
func (uc QueryUseCase) ListSessions(ctx context.Context, observerID, roleHeader, deploymentTarget string, activeOnly bool) ([]entities.SessionView, entities.ObserverRole, error) {
	role, err := uc.Gate(ctx, services.EndpointSessions, observerID, roleHeader)
	if err != nil {
		return nil, role, err
	}
	rows, err := uc.Repo.ListSessions(ctx, deploymentTarget, activeOnly)
	if err != nil {
		return nil, role, err
	}
	out := make([]entities.SessionView, 0, len(rows))
	for _, row := range rows {
		out = append(out, services.FilterSession(role, row))
	}
	uc.LogAccess(ctx, services.EndpointSessions, observerID, role, map[string]string{
		"deployment_target": deploymentTarget, "active_only": strconv.FormatBool(activeOnly),
	}, len(out))
	return out, role, nil
}

// ListArtifacts serves GET /ox/artifacts.
func (uc QueryUseCase) ListArtifacts(ctx context.Context, observerID, roleHeader, agentID string, limit int) ([]entities.ArtifactView, entities.ObserverRole, error) {
	role, err := uc.Gate(ctx, services.EndpointArtifacts, observerID, roleHeader)
	if err != nil {
		return nil, role, err
	}
	rows, err := uc.Repo.ListArtifacts(ctx, agentID, boundedLimit(limit))
	if err != nil {
		return nil, role, err
	}
	out := make([]entities.ArtifactView, 0, len(rows))
	for _, row := range rows {
		out = append(out, services.FilterArtifact(role, row))
	}
	uc.LogAccess(ctx, services.EndpointArtifacts, observerID, role, map[string]string{
		"agent_id": agentID, "limit": strconv.Itoa(limit),
	}, len(out))
	return out, role, nil
}

// PerceivedBy serves GET /ox/agents/:id/perceived-by.
func (uc QueryUseCase) PerceivedBy(ctx context.Context, observerID, roleHeader, subjectAgentID string, limit int) ([]entities.ArtifactView, entities.ObserverRole, error) {
	role, err := uc.Gate(ctx, services.EndpointArtifacts, observerID, roleHeader)
	if err != nil {
		return nil, role, err
	}
	rows, err := uc.Repo.ListPerceivedBy(ctx, subjectAgentID, boundedLimit(limit))
	if err != nil {
		return nil, role, err
	}
	out := make([]entities.ArtifactView, 0, len(rows))
	for _, row := range rows {
		out = append(out, services.FilterArtifact(role, row))
	}
	uc.LogAccess(ctx, services.EndpointArtifacts, observerID, role, map[string]string{
		"subject_agent_id": subjectAgentID, "limit": strconv.Itoa(limit),
	}, len(out))
	return out, role, nil
}

// Observe serves the auditor-only GET /ox/observe, combining the error
// inbox and dead-letter sink into one diagnostic view.
func (uc QueryUseCase) Observe(ctx context.Context, observerID, roleHeader string) (entities.ObserveView, entities.ObserverRole, error) {
	role, err := uc.Gate(ctx, services.EndpointObserve, observerID, roleHeader)
	if err != nil {
		return entities.ObserveView{}, role, err
	}
	errs, err := uc.Repo.ListErrorInbox(ctx)
	if err != nil {
		return entities.ObserveView{}, role, err
	}
	deadLetters, err := uc.Repo.ListDeadLetters(ctx)
	if err != nil {
		return entities.ObserveView{}, role, err
	}
	view := entities.ObserveView{Errors: errs, DeadLetters: deadLetters}
	uc.LogAccess(ctx, services.EndpointObserve, observerID, role, nil, len(errs)+len(deadLetters))
	return view, role, nil
}

func (uc QueryUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func boundedLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 100
	}
	return limit
}

func encodeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "&")
}
