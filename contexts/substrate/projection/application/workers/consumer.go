// Package workers holds the Projection Materializer's consumer loop: a
// consumer-group subscriber over the agent and physics topics that folds
// every envelope into the read-model tables described in spec §4.5.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"oxsubstrate/contexts/substrate/projection/application"
	"oxsubstrate/contexts/substrate/projection/domain/entities"
	"oxsubstrate/contexts/substrate/projection/domain/services"
	"oxsubstrate/contexts/substrate/projection/ports"
	"oxsubstrate/internal/shared/events"
)

// Delivery is the channel element type the consumer reads — shaped exactly
// like internal/platform/messaging.Message, but a distinct type, so a bus
// subscription channel is forwarded onto a Delivery channel (bootstrap's
// bridgeDelivery) rather than passed in directly.
type Delivery struct {
	Topic   string
	Payload []byte
}

// Consumer drains the agents and physics topics and materializes every
// envelope into Repository. Every write is independently idempotent on
// source_event_id (or, for sessions, on session_id), so at-least-once
// delivery from the outbox dispatcher never duplicates a projection row
// (spec §4.5).
type Consumer struct {
	Agents <-chan Delivery
	Physics <-chan Delivery
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (c Consumer) logger() *slog.Logger { return application.ResolveLogger(c.Logger) }

func (c Consumer) now() time.Time {
	if c.Clock != nil {
		return c.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

// Run drains both channels until ctx is cancelled. It is meant to be
// launched as its own goroutine by cmd/worker.
func (c Consumer) Run(ctx context.Context) error {
	logger := c.logger()
	logger.Info("projection consumer starting",
		"event", "projection_consumer_starting",
		"module", "substrate/projection",
		"layer", "worker",
	)
	agents, physics := c.Agents, c.Physics
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-agents:
			if !ok {
				agents = nil
				continue
			}
			c.handle(ctx, msg)
		case msg, ok := <-physics:
			if !ok {
				physics = nil
				continue
			}
			c.handle(ctx, msg)
		}
	}
}

// maxProjectAttempts bounds in-process retry of a single delivery before it
// is routed to the dead-letter sink; the bus delivers at-most-once per
// process so this is a same-call retry, not a redelivery count.
const maxProjectAttempts = 3

func (c Consumer) handle(ctx context.Context, msg Delivery) {
	logger := c.logger()
	var env events.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		logger.Error("projection envelope decode failed",
			"event", "projection_decode_failed",
			"module", "substrate/projection",
			"layer", "worker",
			"topic", msg.Topic,
			"error", err.Error(),
		)
		c.recordInfraError(ctx, "decode:"+msg.Topic, "consumer", err.Error())
		return
	}

	var payload map[string]any
	_ = json.Unmarshal(env.Payload, &payload)

	var err error
	for attempt := 1; attempt <= maxProjectAttempts; attempt++ {
		if err = c.project(ctx, env, payload); err == nil {
			break
		}
	}
	if err != nil {
		logger.Error("projection write failed",
			"event", "projection_write_failed",
			"module", "substrate/projection",
			"layer", "worker",
			"event_id", env.EventID,
			"event_type", env.EventType,
			"error", err.Error(),
		)
		c.recordInfraError(ctx, "project:"+env.EventType, "consumer", err.Error())
		if dlErr := c.Repo.SaveDeadLetter(ctx, entities.DeadLetterEntry{
			SourceEventID: env.EventID,
			Topic:         msg.Topic,
			EventType:     env.EventType,
			Payload:       msg.Payload,
			Reason:        err.Error(),
			Attempts:      maxProjectAttempts,
			RoutedAt:      c.now(),
		}); dlErr != nil {
			logger.Error("dead-letter routing failed",
				"event", "projection_dead_letter_failed",
				"module", "substrate/projection",
				"layer", "worker",
				"event_id", env.EventID,
				"error", dlErr.Error(),
			)
		}
		return
	}
	logger.Debug("projection event consumed",
		"event", "projection_event_consumed",
		"module", "substrate/projection",
		"layer", "worker",
		"event_id", env.EventID,
		"event_type", env.EventType,
	)
}

// recordInfraError best-effort upserts the error-inbox counter; a failure
// here is logged but never blocks message handling.
func (c Consumer) recordInfraError(ctx context.Context, fingerprint, source, detail string) {
	if err := c.Repo.RecordError(ctx, fingerprint, source, detail, c.now()); err != nil {
		c.logger().Error("error inbox record failed",
			"event", "projection_error_inbox_failed",
			"module", "substrate/projection",
			"layer", "worker",
			"fingerprint", fingerprint,
			"error", err.Error(),
		)
	}
}

// project dispatches one envelope to its projection handlers. Unknown event
// types are pass-through: log and ignore (spec §6).
func (c Consumer) project(ctx context.Context, env events.Envelope, payload map[string]any) error {
	inserted, err := c.Repo.UpsertLiveEvent(ctx, entities.LiveEvent{
		SourceEventID:    env.EventID,
		EventType:        env.EventType,
		DeploymentTarget: stringField(payload, "deployment_target"),
		ActorID:          env.ActorID,
		Summary:          summarize(env, payload),
		OccurredAt:       env.OccurredAt,
	})
	if err != nil {
		return err
	}
	if !inserted {
		// source_event_id was already materialized: every fold below is
		// skipped so at-least-once redelivery can't double-count session
		// event_count or pattern totals (spec §4.5/§8,
		// materialize(E); materialize(E) == materialize(E)).
		return nil
	}

	switch env.EventType {
	case "agent.action.accepted":
		return c.projectAcceptedAction(ctx, env, payload)
	case "agent.action.rejected":
		return c.projectRejectedAction(ctx, env, payload)
	case "agent.action_rejected.environment":
		return c.projectEnvironmentRejection(ctx, env, payload)
	case "agent.artifact.implication":
		return c.projectArtifactImplication(ctx, env, payload)
	case "environment.state_changed", "environment.state_removed":
		return c.projectEnvironmentHistory(ctx, env, payload)
	case "ox.physics.braid_composed", "ox.physics.interference":
		return c.projectNarrativeFrame(ctx, env, payload)
	default:
		return nil
	}
}

func (c Consumer) projectAcceptedAction(ctx context.Context, env events.Envelope, payload map[string]any) error {
	actionType := stringField(payload, "action_type")
	if err := c.foldIntoSession(ctx, env, payload, actionType); err != nil {
		return err
	}
	if err := c.updatePattern(ctx, env, payload, actionType, true); err != nil {
		return err
	}
	if err := c.recordCapacityTimeline(ctx, env, payload); err != nil {
		return err
	}
	return c.recordArtifact(ctx, env, payload)
}

// projectEnvironmentRejection handles the distinct agent.action_rejected.environment
// event type (spec §4.3 step 4). Environment-gate rejections return before
// the capacity lock and before any session membership is touched, so they
// contribute only to EnvironmentRejections.
func (c Consumer) projectEnvironmentRejection(ctx context.Context, env events.Envelope, payload map[string]any) error {
	return c.Repo.SaveEnvironmentRejection(ctx, entities.EnvironmentRejection{
		SourceEventID:    env.EventID,
		AgentID:          env.ActorID,
		DeploymentTarget: stringField(payload, "deployment_target"),
		Reason:           stringField(payload, "reason"),
		OccurredAt:       env.OccurredAt,
	})
}

func (c Consumer) projectRejectedAction(ctx context.Context, env events.Envelope, payload map[string]any) error {
	actionType := stringField(payload, "action_type")
	if err := c.foldIntoSession(ctx, env, payload, actionType); err != nil {
		return err
	}
	if err := c.updatePattern(ctx, env, payload, actionType, false); err != nil {
		return err
	}
	return c.recordCapacityTimeline(ctx, env, payload)
}

// foldIntoSession implements the spec §4.5 session-derivation heuristic for
// one action event, then always refreshes the agent's recency marker.
func (c Consumer) foldIntoSession(ctx context.Context, env events.Envelope, payload map[string]any, actionType string) error {
	deploymentTarget := stringField(payload, "deployment_target")
	agentID := env.ActorID
	now := env.OccurredAt

	candidates, err := c.Repo.ListActiveSessions(ctx, deploymentTarget)
	if err != nil {
		return err
	}
	recentOthers, err := c.Repo.ListRecentActors(ctx, deploymentTarget, now.Add(-services.RecentActivityWindow), agentID)
	if err != nil {
		return err
	}

	session, found, isNew, staleToClose := services.DecideSession(candidates, deploymentTarget, agentID, actionType, now, recentOthers)
	for _, stale := range staleToClose {
		if _, err := c.Repo.SaveSession(ctx, stale); err != nil {
			return err
		}
	}

	if err := c.Repo.RecordAgentActivity(ctx, entities.AgentActivity{
		DeploymentTarget: deploymentTarget,
		AgentID:          agentID,
		LastActionType:   actionType,
		LastActedAt:      now,
	}); err != nil {
		return err
	}

	if !found {
		return nil
	}
	if isNew {
		sessionID, err := c.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		session.SessionID = sessionID
	}
	session = services.ApplyEvent(session, agentID, actionType, now)
	persisted, err := c.Repo.SaveSession(ctx, session)
	if err != nil {
		return err
	}
	return c.Repo.RecordSessionEvent(ctx, entities.SessionEvent{
		SessionID:     persisted.SessionID,
		SourceEventID: env.EventID,
		AgentID:       agentID,
		ActionType:    actionType,
		TS:            now,
	})
}

// updatePattern maintains the rolling observation window per (agent,
// window_start), upserted on every action event (spec §4.5). window_start
// is the event's containing UTC day — the bucket key the spec's "upserted
// per (agent, window_start)" phrasing names.
func (c Consumer) updatePattern(ctx context.Context, env events.Envelope, payload map[string]any, actionType string, accepted bool) error {
	agentID := env.ActorID
	now := env.OccurredAt
	windowStart := now.Truncate(24 * time.Hour)

	pattern, found, err := c.Repo.GetPattern(ctx, agentID, windowStart)
	if err != nil {
		return err
	}
	if !found {
		pattern = entities.AgentPattern{
			AgentID:      agentID,
			WindowStart:  windowStart,
			WindowEnd:    windowStart.Add(24 * time.Hour),
			ActionCounts: map[string]entities.ActionTypeCount{},
		}
	}
	if pattern.ActionCounts == nil {
		pattern.ActionCounts = map[string]entities.ActionTypeCount{}
	}
	counts := pattern.ActionCounts[actionType]
	counts.Total++
	if accepted {
		counts.Accepted++
	} else {
		counts.Rejected++
	}
	pattern.ActionCounts[actionType] = counts

	deploymentTarget := stringField(payload, "deployment_target")
	recentOthers, err := c.Repo.ListRecentActors(ctx, deploymentTarget, now.Add(-services.RecentActivityWindow), agentID)
	if err != nil {
		return err
	}
	for _, other := range recentOthers {
		pattern = pattern.WithCoActor(other)
	}

	return c.Repo.SavePattern(ctx, pattern)
}

// recordArtifact derives an Artifact from an accepted action per the §6
// table. The artifact's identity is the accepting event's own id, so an
// artifact_implication event (which names the originating event as
// source_event_id) can reference it without a lookup.
func (c Consumer) recordArtifact(ctx context.Context, env events.Envelope, payload map[string]any) error {
	actionType := stringField(payload, "action_type")
	artifactType := stringField(payload, "artifact_type")
	nestedPayload, _ := payload["payload"].(map[string]any)
	fields := services.DeriveArtifactFields(actionType, artifactType, nestedPayload)

	return c.Repo.SaveArtifact(ctx, entities.Artifact{
		ArtifactID:     env.EventID,
		Type:           artifactType,
		SourceEventID:  env.EventID,
		AgentID:        env.ActorID,
		SubjectAgentID: stringField(payload, "subject_agent_id"),
		Title:          fields.Title,
		ContentSummary: fields.Summary,
		Metadata:       nestedPayload,
		CreatedAt:      env.OccurredAt,
	})
}

func (c Consumer) projectArtifactImplication(ctx context.Context, env events.Envelope, payload map[string]any) error {
	implicationID, err := c.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return c.Repo.SaveArtifactImplication(ctx, entities.ArtifactImplication{
		ArtifactImplicationID: implicationID,
		ArtifactID:            stringField(payload, "source_event_id"),
		SourceEventID:         env.EventID,
		IssuingAgentID:        stringField(payload, "issuer_agent_id"),
		SubjectAgentID:        stringField(payload, "subject_agent_id"),
		ImplicationType:       stringField(payload, "action_type"),
		CreatedAt:             env.OccurredAt,
	})
}

func (c Consumer) recordCapacityTimeline(ctx context.Context, env events.Envelope, payload map[string]any) error {
	if _, ok := payload["balance_before"]; !ok {
		// Environment/throttle rejections that never reached the capacity
		// lock carry no balance delta to report (spec §4.3 step 4/7).
		return nil
	}
	return c.Repo.SaveCapacityTimelineEntry(ctx, entities.CapacityTimelineEntry{
		SourceEventID: env.EventID,
		AgentID:       env.ActorID,
		TS:            env.OccurredAt,
		BalanceBefore: intField(payload, "balance_before"),
		BalanceAfter:  intField(payload, "balance_after"),
		RequestedCost: intField(payload, "requested_cost"),
		EstimatedCost: intField(payload, "estimated_cost"),
		ActualCost:    intField(payload, "actual_cost"),
		CognitionUsed: boolField(payload, "cognition_used"),
	})
}

func (c Consumer) projectEnvironmentHistory(ctx context.Context, env events.Envelope, payload map[string]any) error {
	return c.Repo.SaveEnvironmentHistoryEntry(ctx, entities.EnvironmentHistoryEntry{
		SourceEventID:          env.EventID,
		DeploymentTarget:       stringField(payload, "deployment_target"),
		CognitionAvailability:  stringField(payload, "cognition_availability"),
		MaxThroughputPerMinute: intPtrField(payload, "max_throughput_per_minute"),
		ThrottleFactor:         floatField(payload, "throttle_factor"),
		Reason:                 stringField(payload, "reason"),
		Removed:                env.EventType == "environment.state_removed",
		OccurredAt:             env.OccurredAt,
	})
}

func (c Consumer) projectNarrativeFrame(ctx context.Context, env events.Envelope, payload map[string]any) error {
	return c.Repo.SaveNarrativeFrame(ctx, entities.NarrativeFrame{
		SourceEventID:    env.EventID,
		DeploymentTarget: stringField(payload, "deployment_target"),
		TickID:           stringField(payload, "tick_id"),
		Summary:          narrativeSummary(env.EventType, payload),
		OccurredAt:       env.OccurredAt,
	})
}

func narrativeSummary(eventType string, payload map[string]any) string {
	if eventType == "ox.physics.interference" {
		return fmt.Sprintf("interference between %s and %s (%s), probability %.4f",
			stringField(payload, "pressure_a_id"), stringField(payload, "pressure_b_id"),
			stringField(payload, "type"), floatField(payload, "interference_probability"))
	}
	return fmt.Sprintf("braid composed: capacity=%.2f throttle=%.2f cognition=%.2f redeploy_bias=%.2f",
		floatField(payload, "capacity"), floatField(payload, "throttle"),
		floatField(payload, "cognition"), floatField(payload, "redeploy_bias"))
}

func summarize(env events.Envelope, payload map[string]any) string {
	if env.EventType == "agent.action.accepted" || env.EventType == "agent.action.rejected" {
		return env.EventType + ": " + stringField(payload, "action_type") + " by " + env.ActorID
	}
	return env.EventType + " from " + env.ActorID
}

func stringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	v, _ := payload[key].(string)
	return v
}

func floatField(payload map[string]any, key string) float64 {
	if payload == nil {
		return 0
	}
	v, _ := payload[key].(float64)
	return v
}

func boolField(payload map[string]any, key string) bool {
	if payload == nil {
		return false
	}
	v, _ := payload[key].(bool)
	return v
}

func intField(payload map[string]any, key string) int {
	if payload == nil {
		return 0
	}
	v, _ := payload[key].(float64)
	return int(v)
}

func intPtrField(payload map[string]any, key string) *int {
	if payload == nil {
		return nil
	}
	v, ok := payload[key].(float64)
	if !ok {
		return nil
	}
	n := int(v)
	return &n
}
