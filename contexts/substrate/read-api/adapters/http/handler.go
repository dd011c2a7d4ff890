// Package httpadapter maps transport DTOs into the Read API's query use
// case and back, the inbound-adapter facade the HTTP transport layer calls
// into (spec §4.6).
package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"oxsubstrate/contexts/substrate/read-api/application"
	"oxsubstrate/contexts/substrate/read-api/domain/entities"
	httptransport "oxsubstrate/contexts/substrate/read-api/transport/http"
)

// Handler is the inbound adapter facade used by the HTTP transport layer.
type Handler struct {
	Query  application.QueryUseCase
	Admin  application.AdminUseCase
	Logger *slog.Logger
}

// RedriveDeadLetterHandler maps the ops-gated POST /ox/admin/dead-letters/:id/redrive.
func (h Handler) RedriveDeadLetterHandler(ctx context.Context, opsRoleHeader, sourceEventID string) error {
	if err := h.Admin.RedriveDeadLetter(ctx, opsRoleHeader, sourceEventID); err != nil {
		h.logFailure("admin:redrive", sourceEventID, err)
		return err
	}
	return nil
}

func (h Handler) logger() *slog.Logger { return application.ResolveLogger(h.Logger) }

// LiveHandler maps GET /ox/live.
func (h Handler) LiveHandler(ctx context.Context, observerID, observerRole, deploymentTarget string, limit int) ([]httptransport.LiveEventResponse, error) {
	rows, _, err := h.Query.ListLive(ctx, observerID, observerRole, deploymentTarget, limit)
	if err != nil {
		h.logFailure("live", observerID, err)
		return nil, err
	}
	out := make([]httptransport.LiveEventResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapLiveEvent(row))
	}
	return out, nil
}

// SessionsHandler maps GET /ox/sessions.
func (h Handler) SessionsHandler(ctx context.Context, observerID, observerRole, deploymentTarget string, activeOnly bool) ([]httptransport.SessionResponse, error) {
	rows, _, err := h.Query.ListSessions(ctx, observerID, observerRole, deploymentTarget, activeOnly)
	if err != nil {
		h.logFailure("sessions", observerID, err)
		return nil, err
	}
	out := make([]httptransport.SessionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapSession(row))
	}
	return out, nil
}

// ArtifactsHandler maps GET /ox/artifacts.
func (h Handler) ArtifactsHandler(ctx context.Context, observerID, observerRole, agentID string, limit int) ([]httptransport.ArtifactResponse, error) {
	rows, _, err := h.Query.ListArtifacts(ctx, observerID, observerRole, agentID, limit)
	if err != nil {
		h.logFailure("artifacts", observerID, err)
		return nil, err
	}
	return mapArtifacts(rows), nil
}

// PerceivedByHandler maps GET /ox/agents/:id/perceived-by.
func (h Handler) PerceivedByHandler(ctx context.Context, observerID, observerRole, subjectAgentID string, limit int) ([]httptransport.ArtifactResponse, error) {
	rows, _, err := h.Query.PerceivedBy(ctx, observerID, observerRole, subjectAgentID, limit)
	if err != nil {
		h.logFailure("perceived-by", observerID, err)
		return nil, err
	}
	return mapArtifacts(rows), nil
}

// ObserveHandler maps GET /ox/observe.
func (h Handler) ObserveHandler(ctx context.Context, observerID, observerRole string) (httptransport.ObserveResponse, error) {
	view, _, err := h.Query.Observe(ctx, observerID, observerRole)
	if err != nil {
		h.logFailure("observe", observerID, err)
		return httptransport.ObserveResponse{}, err
	}
	errs := make([]httptransport.ErrorInboxResponse, 0, len(view.Errors))
	for _, e := range view.Errors {
		errs = append(errs, httptransport.ErrorInboxResponse{
			Fingerprint: e.Fingerprint, Source: e.Source, Count: e.Count,
			SampleDetail: e.SampleDetail,
			FirstSeenAt:  e.FirstSeenAt.Format(time.RFC3339),
			LastSeenAt:   e.LastSeenAt.Format(time.RFC3339),
		})
	}
	deadLetters := make([]httptransport.DeadLetterResponse, 0, len(view.DeadLetters))
	for _, d := range view.DeadLetters {
		deadLetters = append(deadLetters, httptransport.DeadLetterResponse{
			SourceEventID: d.SourceEventID, Topic: d.Topic, EventType: d.EventType,
			Reason: d.Reason, Attempts: d.Attempts,
			RoutedAt: d.RoutedAt.Format(time.RFC3339), Redriven: d.Redriven,
		})
	}
	return httptransport.ObserveResponse{Errors: errs, DeadLetters: deadLetters}, nil
}

func (h Handler) logFailure(endpoint, observerID string, err error) {
	h.logger().Warn("read api request denied or failed",
		"event", "read_api_request_failed",
		"module", "substrate/read-api",
		"layer", "adapter",
		"endpoint", endpoint,
		"observer_id", observerID,
		"error", err.Error(),
	)
}

func mapLiveEvent(row entities.LiveEventView) httptransport.LiveEventResponse {
	return httptransport.LiveEventResponse{
		SourceEventID:    row.SourceEventID,
		EventType:        row.EventType,
		DeploymentTarget: row.DeploymentTarget,
		ActorID:          row.ActorID,
		Summary:          row.Summary,
		OccurredAt:       row.OccurredAt.Format(time.RFC3339),
	}
}

func mapSession(row entities.SessionView) httptransport.SessionResponse {
	return httptransport.SessionResponse{
		SessionID:             row.SessionID,
		DeploymentTarget:      row.DeploymentTarget,
		ParticipatingAgentIDs: row.ParticipatingAgentIDs,
		StartTS:               row.StartTS.Format(time.RFC3339),
		EndTS:                 row.EndTS.Format(time.RFC3339),
		IsActive:              row.IsActive,
		DerivedTopic:          row.DerivedTopic,
		EventCount:            row.EventCount,
		ActionTypeCounts:      row.ActionTypeCounts,
	}
}

func mapArtifacts(rows []entities.ArtifactView) []httptransport.ArtifactResponse {
	out := make([]httptransport.ArtifactResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, httptransport.ArtifactResponse{
			ArtifactID:      row.ArtifactID,
			Type:            row.Type,
			SourceEventID:   row.SourceEventID,
			AgentID:         row.AgentID,
			SubjectAgentID:  row.SubjectAgentID,
			Title:           row.Title,
			ContentSummary:  row.ContentSummary,
			Metadata:        row.Metadata,
			CreatedAt:       row.CreatedAt.Format(time.RFC3339),
			IssuingAgentIDs: row.IssuingAgentIDs,
		})
	}
	return out
}
