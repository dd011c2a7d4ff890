package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/agent-engine/application"
	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/agent-engine/domain/errors"
	"oxsubstrate/contexts/substrate/agent-engine/domain/services"
	"oxsubstrate/contexts/substrate/agent-engine/ports"
	"oxsubstrate/internal/shared/events"
)

// AttemptCommand is the write-model input for one admission attempt (spec
// §4.3). Payload and AgentContext are opaque to the engine except for the
// few keys the domain services inspect (payload "type" for artifact typing).
type AttemptCommand struct {
	AgentID        string
	ActionType     entities.ActionType
	SubjectAgentID string
	RequestedCost  int
	Payload        map[string]any
	AgentContext   map[string]any
	IdempotencyKey string
	CorrelationID  string
}

// AttemptResult is what the transport layer maps to the HTTP response.
type AttemptResult struct {
	Accepted    bool
	Reason      string
	ActionLog   entities.ActionLog
	Capacity    entities.Capacity
	EventID     string
	Replayed    bool
}

// AttemptUseCase orchestrates the ordered admission pipeline: idempotency
// replay, environment gate, throttle gate, capacity check, cognition
// execution, and the atomic persist of action log + event + outbox entry.
type AttemptUseCase struct {
	Repo       ports.Repository
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Cognition  ports.CognitionRegistry
	Logger     *slog.Logger
}

// Attempt runs one admission decision to completion. The entire decision —
// environment read, capacity lock and reconcile, cognition invocation, and
// the resulting writes — happens inside a single serializable transaction
// so a concurrent attempt against the same agent never double-spends
// capacity (spec §5).
func (uc AttemptUseCase) Attempt(ctx context.Context, cmd AttemptCommand) (AttemptResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	agentID := strings.TrimSpace(cmd.AgentID)
	logger.Info("attempt processing started",
		"event", "agent_attempt_started",
		"module", "substrate/agent-engine",
		"layer", "application",
		"agent_id", agentID,
		"action_type", string(cmd.ActionType),
	)

	if !cmd.ActionType.IsValid() {
		logger.Warn("attempt validation failed",
			"event", "agent_attempt_validation_failed",
			"module", "substrate/agent-engine",
			"layer", "application",
			"agent_id", agentID,
			"action_type", string(cmd.ActionType),
		)
		return AttemptResult{}, domainerrors.ErrInvalidActionType
	}
	if cmd.ActionType.IsImplicating() && strings.TrimSpace(cmd.SubjectAgentID) == "" {
		return AttemptResult{}, domainerrors.ErrMissingSubjectAgent
	}
	if cmd.RequestedCost < 0 {
		return AttemptResult{}, domainerrors.ErrInvalidCost
	}

	now := uc.now()
	var result AttemptResult

	err := uc.Repo.Transact(ctx, func(ctx context.Context, tx ports.Repository) error {
		// An absent idempotency key runs unconditionally with no replay
		// short-circuit (spec §4.1 "If key is absent: run fn and return its
		// result"); only a present key is checked for replay.
		if cmd.IdempotencyKey != "" {
			if existing, found, err := tx.FindActionLogByIdempotencyKey(ctx, agentID, cmd.IdempotencyKey); err != nil {
				return err
			} else if found {
				logger.Info("attempt replayed",
					"event", "agent_attempt_replayed",
					"module", "substrate/agent-engine",
					"layer", "application",
					"agent_id", agentID,
					"log_id", existing.LogID,
				)
				result = AttemptResult{
					Accepted:  existing.Accepted,
					Reason:    existing.Reason,
					ActionLog: existing,
					EventID:   existing.EventID,
					Replayed:  true,
				}
				return nil
			}
		}

		agent, found, err := tx.GetAgent(ctx, agentID)
		if err != nil {
			return err
		}
		if !found {
			return domainerrors.ErrAgentNotFound
		}
		if !agent.IsActive() {
			return domainerrors.ErrAgentUnavailable
		}

		snapshot, err := tx.GetEnvironmentSnapshot(ctx, agent.DeploymentTarget)
		if err != nil {
			return err
		}
		minute := now.Truncate(time.Minute)
		throughput, err := tx.GetCurrentMinuteThroughput(ctx, agent.DeploymentTarget, minute)
		if err != nil {
			return err
		}
		if reason, rejected := services.EnvironmentRejection(snapshot, now, throughput); rejected {
			return uc.reject(ctx, tx, agent, cmd, now, reason, entities.CostBreakdown{RequestedCost: cmd.RequestedCost}, nil, &result)
		}

		if agent.ThrottleProfile == entities.ThrottlePaused {
			return uc.reject(ctx, tx, agent, cmd, now, entities.ReasonThrottlePaused, entities.CostBreakdown{RequestedCost: cmd.RequestedCost}, nil, &result)
		}

		capacity, err := tx.LockCapacity(ctx, agentID)
		if err != nil {
			return err
		}
		capacity = capacity.Reconcile(now)
		balanceBefore := capacity.Balance

		provider := uc.Cognition.Resolve(agent.CognitionProvider)
		estimatedCost := 0
		cognitionAvailable := agent.CognitionProvider != "none"
		if cognitionAvailable {
			estimatedCost, err = provider.EstimateCost(ctx, cmd.Payload, cmd.AgentContext)
			if err != nil {
				// Cognition-provider failures never roll back (spec §4.3
				// step 9 / §7): log and proceed as if no cognition, charging
				// only the base cost.
				logger.Warn("cognition estimate failed, proceeding with base cost only",
					"event", "agent_cognition_estimate_failed",
					"module", "substrate/agent-engine",
					"layer", "application",
					"agent_id", agentID,
					"error", err.Error(),
				)
				estimatedCost = 0
				cognitionAvailable = false
			}
		}
		cost := services.ComposeCost(cmd.RequestedCost, estimatedCost)

		if capacity.Balance < cost.Required() {
			if err := tx.SaveCapacity(ctx, capacity); err != nil {
				return err
			}
			return uc.reject(ctx, tx, agent, cmd, now, entities.ReasonInsufficientCapacity, cost, &balanceBefore, &result)
		}

		if cognitionAvailable {
			cognitionResult, err := provider.Execute(ctx, cmd.Payload, cmd.AgentContext)
			if err != nil {
				if err == ports.ErrCognitionPaused {
					if err := tx.SaveCapacity(ctx, capacity); err != nil {
						return err
					}
					return uc.reject(ctx, tx, agent, cmd, now, entities.ReasonCognitionPaused, cost, &balanceBefore, &result)
				}
				// Any other cognition failure is swallowed and logged; the
				// action proceeds accepted, using only the base cost
				// already composed above (spec §4.3 step 9 / §7).
				logger.Warn("cognition execute failed, proceeding with base cost only",
					"event", "agent_cognition_execute_failed",
					"module", "substrate/agent-engine",
					"layer", "application",
					"agent_id", agentID,
					"error", err.Error(),
				)
			} else {
				cost.CognitionUsed = true
				cost.ActualCost = cognitionResult.ActualCost
			}
		}

		capacity.Balance -= cost.Total()
		capacity.LastReconciledAt = now
		if err := tx.SaveCapacity(ctx, capacity); err != nil {
			return err
		}
		if err := tx.IncrementThroughput(ctx, agent.DeploymentTarget, minute); err != nil {
			return err
		}

		return uc.accept(ctx, tx, agent, cmd, now, cost, balanceBefore, capacity, &result)
	})
	if err != nil {
		logger.Error("attempt failed",
			"event", "agent_attempt_failed",
			"module", "substrate/agent-engine",
			"layer", "application",
			"agent_id", agentID,
			"error", err.Error(),
		)
		return AttemptResult{}, err
	}

	logger.Info("attempt completed",
		"event", "agent_attempt_completed",
		"module", "substrate/agent-engine",
		"layer", "application",
		"agent_id", agentID,
		"accepted", result.Accepted,
		"reason", result.Reason,
	)
	return result, nil
}

// reject persists a rejected ActionLog and its rejection event, and fills
// out. Capacity is never charged on rejection.
func (uc AttemptUseCase) reject(
	ctx context.Context,
	tx ports.Repository,
	agent entities.Agent,
	cmd AttemptCommand,
	now time.Time,
	reason entities.RejectionReason,
	cost entities.CostBreakdown,
	balanceBefore *int,
	out *AttemptResult,
) error {
	logID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}

	log := entities.ActionLog{
		LogID:          logID,
		AgentID:        agent.AgentID,
		ActionType:     cmd.ActionType,
		SubjectAgentID: strings.TrimSpace(cmd.SubjectAgentID),
		Cost:           cost,
		Accepted:       false,
		Reason:         string(reason),
		IdempotencyKey: cmd.IdempotencyKey,
		EventID:        eventID,
		CreatedAt:      now,
	}
	if err := tx.AppendActionLog(ctx, log); err != nil {
		return err
	}

	payload := map[string]any{
		"action_type":       string(cmd.ActionType),
		"subject_agent_id":  strings.TrimSpace(cmd.SubjectAgentID),
		"reason":            string(reason),
		"deployment_target": agent.DeploymentTarget,
		"requested_cost":    cost.RequestedCost,
		"estimated_cost":    cost.EstimatedCost,
		"actual_cost":       cost.ActualCost,
		"cognition_used":    cost.CognitionUsed,
	}
	if balanceBefore != nil {
		// No capacity is charged on rejection; balance_after equals
		// balance_before (post-regen, pre-deduction) so the projection's
		// CapacityTimeline always sees a zero-delta row here.
		payload["balance_before"] = *balanceBefore
		payload["balance_after"] = *balanceBefore
	}
	// Environment-gate rejections get their own event type (spec §4.3 step
	// 4: "outcome encoded in event type, not just payload") rather than
	// being told apart downstream by reason string.
	eventType := "agent.action.rejected"
	if reason.IsEnvironmentReason() {
		eventType = "agent.action_rejected.environment"
	}
	env, err := events.Build(eventID, eventType, now, agent.AgentID, cmd.CorrelationID, cmd.IdempotencyKey,
		payload, cmd.AgentContext)
	if err != nil {
		return err
	}
	if err := tx.AppendEvent(ctx, env); err != nil {
		return err
	}
	if err := appendOutboxEnvelope(ctx, tx, env); err != nil {
		return err
	}

	*out = AttemptResult{Accepted: false, Reason: string(reason), ActionLog: log, EventID: eventID}
	return nil
}

// accept persists an accepted ActionLog, its acceptance event, and — for
// implicating action types — the artifact implication event naming the
// subject agent (spec §6).
func (uc AttemptUseCase) accept(
	ctx context.Context,
	tx ports.Repository,
	agent entities.Agent,
	cmd AttemptCommand,
	now time.Time,
	cost entities.CostBreakdown,
	balanceBefore int,
	capacityAfter entities.Capacity,
	out *AttemptResult,
) error {
	logID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}

	subjectAgentID := strings.TrimSpace(cmd.SubjectAgentID)
	log := entities.ActionLog{
		LogID:          logID,
		AgentID:        agent.AgentID,
		ActionType:     cmd.ActionType,
		SubjectAgentID: subjectAgentID,
		Cost:           cost,
		Accepted:       true,
		Reason:         "",
		IdempotencyKey: cmd.IdempotencyKey,
		EventID:        eventID,
		CreatedAt:      now,
	}
	if err := tx.AppendActionLog(ctx, log); err != nil {
		return err
	}

	payloadType, _ := cmd.Payload["type"].(string)
	artifactType := services.ArtifactType(cmd.ActionType, payloadType)

	env, err := events.Build(eventID, "agent.action.accepted", now, agent.AgentID, cmd.CorrelationID, cmd.IdempotencyKey,
		map[string]any{
			"action_type":       string(cmd.ActionType),
			"subject_agent_id":  subjectAgentID,
			"artifact_type":     artifactType,
			"requested_cost":    cost.RequestedCost,
			"estimated_cost":    cost.EstimatedCost,
			"actual_cost":       cost.ActualCost,
			"total_cost":        cost.Total(),
			"cognition_used":    cost.CognitionUsed,
			"payload":           cmd.Payload,
			"balance_before":    balanceBefore,
			"balance_after":     capacityAfter.Balance,
			"deployment_target": agent.DeploymentTarget,
		}, cmd.AgentContext)
	if err != nil {
		return err
	}
	if err := tx.AppendEvent(ctx, env); err != nil {
		return err
	}
	if err := appendOutboxEnvelope(ctx, tx, env); err != nil {
		return err
	}

	if cmd.ActionType.IsImplicating() {
		implicationID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		implicationEvent, err := events.Build(implicationID, "agent.artifact.implication", now, agent.AgentID, cmd.CorrelationID, "",
			map[string]any{
				"source_event_id":  eventID,
				"action_type":      string(cmd.ActionType),
				"issuer_agent_id":  agent.AgentID,
				"subject_agent_id": subjectAgentID,
				"artifact_type":    artifactType,
			}, nil)
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, implicationEvent); err != nil {
			return err
		}
		if err := appendOutboxEnvelope(ctx, tx, implicationEvent); err != nil {
			return err
		}
	}

	*out = AttemptResult{Accepted: true, Reason: "", ActionLog: log, Capacity: capacityAfter, EventID: eventID}
	return nil
}

func (uc AttemptUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

// appendOutboxEnvelope marshals env as the outbox payload so the dispatcher
// can publish it verbatim to the bus (spec §4.2).
func appendOutboxEnvelope(ctx context.Context, tx ports.Repository, env events.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, env.EventID, events.TopicAgents, payload)
}
