// Package httpadapter is the Agent Action Engine's inbound HTTP facade:
// transport-shape requests in, application commands out, DTO responses back.
package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/agent-engine/application"
	"oxsubstrate/contexts/substrate/agent-engine/application/commands"
	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
	httptransport "oxsubstrate/contexts/substrate/agent-engine/transport/http"
)

// Handler is the inbound adapter used by the HTTP transport layer.
type Handler struct {
	Attempt   commands.AttemptUseCase
	Lifecycle commands.LifecycleUseCase
	Logger    *slog.Logger
}

func (h Handler) CreateAgentHandler(ctx context.Context, req httptransport.CreateAgentRequest) (httptransport.AgentResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	agent, err := h.Lifecycle.CreateAgent(ctx, commands.CreateAgentCommand{
		DeploymentTarget:  req.DeploymentTarget,
		SponsorID:         req.SponsorID,
		CognitionProvider: req.CognitionProvider,
		ThrottleProfile:   entities.ThrottleProfile(req.ThrottleProfile),
		MaxBalance:        req.MaxBalance,
		RegenPerHour:      req.RegenPerHour,
		StartingBalance:   req.StartingBalance,
		BiasMap:           req.BiasMap,
		ThrottleConfig:    req.ThrottleConfig,
		CognitionConfig:   req.CognitionConfig,
	})
	if err != nil {
		logger.Error("agent create request failed",
			"event", "agent_http_create_failed",
			"module", "substrate/agent-engine",
			"layer", "adapter",
			"error", err.Error(),
		)
		return httptransport.AgentResponse{}, err
	}
	return mapAgent(agent), nil
}

func (h Handler) ArchiveAgentHandler(ctx context.Context, agentID string) error {
	return h.Lifecycle.ArchiveAgent(ctx, commands.ArchiveAgentCommand{AgentID: agentID})
}

func (h Handler) RedeployAgentHandler(ctx context.Context, agentID string, req httptransport.RedeployAgentRequest) (httptransport.AgentResponse, error) {
	agent, err := h.Lifecycle.RedeployAgent(ctx, commands.RedeployAgentCommand{
		AgentID:          agentID,
		DeploymentTarget: req.DeploymentTarget,
	})
	if err != nil {
		return httptransport.AgentResponse{}, err
	}
	return mapAgent(agent), nil
}

func (h Handler) ReassignSponsorHandler(ctx context.Context, agentID string, req httptransport.ReassignSponsorRequest) (httptransport.AgentResponse, error) {
	agent, err := h.Lifecycle.ReassignSponsor(ctx, commands.ReassignSponsorCommand{
		AgentID:   agentID,
		SponsorID: req.SponsorID,
	})
	if err != nil {
		return httptransport.AgentResponse{}, err
	}
	return mapAgent(agent), nil
}

func (h Handler) UpdateConfigHandler(ctx context.Context, agentID string, req httptransport.UpdateConfigRequest) (httptransport.ConfigResponse, error) {
	config, err := h.Lifecycle.UpdateConfig(ctx, commands.UpdateConfigCommand{
		AgentID:         agentID,
		BiasMap:         req.BiasMap,
		ThrottleConfig:  req.ThrottleConfig,
		CognitionConfig: req.CognitionConfig,
	})
	if err != nil {
		return httptransport.ConfigResponse{}, err
	}
	return httptransport.ConfigResponse{
		AgentID:         config.AgentID,
		BiasMap:         config.BiasMap,
		ThrottleConfig:  config.ThrottleConfig,
		CognitionConfig: config.CognitionConfig,
		Version:         config.Version,
	}, nil
}

func (h Handler) AllocateCapacityHandler(ctx context.Context, agentID string, req httptransport.AllocateCapacityRequest) (httptransport.CapacityResponse, error) {
	capacity, err := h.Lifecycle.AllocateCapacity(ctx, commands.AllocateCapacityCommand{
		AgentID: agentID,
		Amount:  req.Amount,
	})
	if err != nil {
		return httptransport.CapacityResponse{}, err
	}
	return mapCapacity(capacity), nil
}

// AttemptHandler maps an HTTP attempt request into the admission pipeline
// and back into the response DTO (spec §4.3 / §6).
func (h Handler) AttemptHandler(
	ctx context.Context,
	agentID string,
	idempotencyKey string,
	req httptransport.AttemptRequest,
) (httptransport.AttemptResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("attempt request received",
		"event", "agent_http_attempt_received",
		"module", "substrate/agent-engine",
		"layer", "adapter",
		"agent_id", strings.TrimSpace(agentID),
		"action_type", req.ActionType,
	)
	result, err := h.Attempt.Attempt(ctx, commands.AttemptCommand{
		AgentID:        agentID,
		ActionType:     entities.ActionType(req.ActionType),
		SubjectAgentID: req.SubjectAgentID,
		RequestedCost:  req.RequestedCost,
		Payload:        req.Payload,
		AgentContext:   req.AgentContext,
		IdempotencyKey: idempotencyKey,
		CorrelationID:  req.CorrelationID,
	})
	if err != nil {
		logger.Error("attempt request failed",
			"event", "agent_http_attempt_failed",
			"module", "substrate/agent-engine",
			"layer", "adapter",
			"agent_id", strings.TrimSpace(agentID),
			"error", err.Error(),
		)
		return httptransport.AttemptResponse{}, err
	}
	return httptransport.AttemptResponse{
		Accepted:         result.Accepted,
		Reason:           result.Reason,
		LogID:            result.ActionLog.LogID,
		EventID:          result.EventID,
		RequestedCost:    result.ActionLog.Cost.RequestedCost,
		EstimatedCost:    result.ActionLog.Cost.EstimatedCost,
		ActualCost:       result.ActionLog.Cost.ActualCost,
		TotalCost:        result.ActionLog.Cost.Total(),
		RemainingBalance: result.Capacity.Balance,
		Replayed:         result.Replayed,
	}, nil
}

func mapAgent(agent entities.Agent) httptransport.AgentResponse {
	return httptransport.AgentResponse{
		AgentID:           agent.AgentID,
		Status:            string(agent.Status),
		DeploymentTarget:  agent.DeploymentTarget,
		SponsorID:         agent.SponsorID,
		CognitionProvider: agent.CognitionProvider,
		ThrottleProfile:   string(agent.ThrottleProfile),
	}
}

func mapCapacity(capacity entities.Capacity) httptransport.CapacityResponse {
	return httptransport.CapacityResponse{
		AgentID:          capacity.AgentID,
		Balance:          capacity.Balance,
		MaxBalance:       capacity.MaxBalance,
		RegenPerHour:     capacity.RegenPerHour,
		LastReconciledAt: capacity.LastReconciledAt.UTC().Format(time.RFC3339),
	}
}
