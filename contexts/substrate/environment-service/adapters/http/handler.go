// Package httpadapter maps transport DTOs into application commands and
// back, the inbound-adapter facade the HTTP transport layer calls into.
package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/environment-service/application"
	"oxsubstrate/contexts/substrate/environment-service/application/commands"
	"oxsubstrate/contexts/substrate/environment-service/domain/entities"
	httptransport "oxsubstrate/contexts/substrate/environment-service/transport/http"
)

// Handler is the inbound adapter facade used by the HTTP transport layer.
type Handler struct {
	State     commands.StateUseCase
	Localities commands.LocalityUseCase
	Logger    *slog.Logger
}

// SetStateHandler maps PUT /admin/environment/:target.
func (h Handler) SetStateHandler(ctx context.Context, target, actorID, correlationID string, req httptransport.SetStateRequest) (httptransport.StateResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("environment state set request received",
		"event", "environment_http_set_state_received",
		"module", "environment-service",
		"layer", "adapter",
		"deployment_target", strings.TrimSpace(target),
		"actor_id", strings.TrimSpace(actorID),
	)
	state, err := h.State.SetState(ctx, commands.SetStateCommand{
		DeploymentTarget:       target,
		CognitionAvailability:  entities.CognitionAvailability(req.CognitionAvailability),
		MaxThroughputPerMinute: req.MaxThroughputPerMinute,
		ThrottleFactor:         req.ThrottleFactor,
		WindowStart:            req.WindowStart,
		WindowEnd:              req.WindowEnd,
		Reason:                 req.Reason,
		CorrelationID:          correlationID,
		ActorID:                actorID,
	})
	if err != nil {
		logger.Error("environment state set request failed",
			"event", "environment_http_set_state_failed",
			"module", "environment-service",
			"layer", "adapter",
			"deployment_target", strings.TrimSpace(target),
			"error", err.Error(),
		)
		return httptransport.StateResponse{}, err
	}
	response := mapState(state)
	logger.Info("environment state set request completed",
		"event", "environment_http_set_state_completed",
		"module", "environment-service",
		"layer", "adapter",
		"deployment_target", response.DeploymentTarget,
	)
	return response, nil
}

// RemoveStateHandler maps DELETE /admin/environment/:target.
func (h Handler) RemoveStateHandler(ctx context.Context, target, actorID, correlationID string) error {
	logger := application.ResolveLogger(h.Logger)
	if err := h.State.RemoveState(ctx, commands.RemoveStateCommand{
		DeploymentTarget: target,
		ActorID:          actorID,
		CorrelationID:    correlationID,
	}); err != nil {
		logger.Error("environment state remove request failed",
			"event", "environment_http_remove_state_failed",
			"module", "environment-service",
			"layer", "adapter",
			"deployment_target", strings.TrimSpace(target),
			"error", err.Error(),
		)
		return err
	}
	return nil
}

// CreateLocalityHandler maps POST /admin/environment/:target/localities.
func (h Handler) CreateLocalityHandler(ctx context.Context, target string, req httptransport.CreateLocalityRequest) (httptransport.LocalityResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	locality, err := h.Localities.CreateLocality(ctx, commands.CreateLocalityCommand{
		DeploymentTarget:    target,
		Name:                req.Name,
		Density:             req.Density,
		InterferenceDensity: req.InterferenceDensity,
		VisibilityRadius:    req.VisibilityRadius,
		EvidenceHalfLife:    secondsToDuration(req.EvidenceHalfLifeSec),
	})
	if err != nil {
		logger.Error("locality create request failed",
			"event", "environment_http_locality_create_failed",
			"module", "environment-service",
			"layer", "adapter",
			"deployment_target", strings.TrimSpace(target),
			"error", err.Error(),
		)
		return httptransport.LocalityResponse{}, err
	}
	return mapLocality(locality), nil
}

// SetMembershipHandler maps PUT /admin/localities/:id/members/:agentId.
func (h Handler) SetMembershipHandler(ctx context.Context, localityID, agentID string, req httptransport.SetMembershipRequest) error {
	return h.Localities.SetMembership(ctx, commands.SetMembershipCommand{
		LocalityID: localityID,
		AgentID:    agentID,
		Weight:     req.Weight,
	})
}

func secondsToDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

func mapState(s entities.State) httptransport.StateResponse {
	return httptransport.StateResponse{
		DeploymentTarget:       s.DeploymentTarget,
		CognitionAvailability:  string(s.CognitionAvailability),
		MaxThroughputPerMinute: s.MaxThroughputPerMinute,
		ThrottleFactor:         s.ThrottleFactor,
		WindowStart:            s.WindowStart,
		WindowEnd:              s.WindowEnd,
		Reason:                 s.Reason,
		ImposedAt:              s.ImposedAt,
	}
}

func mapLocality(l entities.Locality) httptransport.LocalityResponse {
	return httptransport.LocalityResponse{
		ID:                  l.ID,
		DeploymentTarget:    l.DeploymentTarget,
		Name:                l.Name,
		Density:             l.Density,
		InterferenceDensity: l.InterferenceDensity,
		VisibilityRadius:    l.VisibilityRadius,
		EvidenceHalfLifeSec: int64(l.EvidenceHalfLife.Seconds()),
		Active:              l.Active,
	}
}
