package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/environment-service/application"
	"oxsubstrate/contexts/substrate/environment-service/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/environment-service/domain/errors"
	"oxsubstrate/contexts/substrate/environment-service/ports"
	"oxsubstrate/internal/shared/events"
)

// SetStateCommand is the admin PUT /admin/environment/:target body.
type SetStateCommand struct {
	DeploymentTarget       string
	CognitionAvailability  entities.CognitionAvailability
	MaxThroughputPerMinute *int
	ThrottleFactor         float64
	WindowStart            *time.Time
	WindowEnd              *time.Time
	Reason                 string
	CorrelationID          string
	ActorID                string
}

// RemoveStateCommand clears a deployment target's constraints.
type RemoveStateCommand struct {
	DeploymentTarget string
	CorrelationID    string
	ActorID          string
}

// StateUseCase implements the admin write path over EnvironmentState.
type StateUseCase struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc StateUseCase) logger() *slog.Logger { return application.ResolveLogger(uc.Logger) }

func (uc StateUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now()
	}
	return time.Now().UTC()
}

// SetState validates and persists a deployment target's physics
// constraints, then emits environment.state_changed so the materializer can
// build EnvironmentHistory and the Agent Action Engine's next admission
// attempt observes the new constraints.
func (uc StateUseCase) SetState(ctx context.Context, cmd SetStateCommand) (entities.State, error) {
	logger := uc.logger()
	target := strings.TrimSpace(cmd.DeploymentTarget)

	if cmd.ThrottleFactor < 0 || cmd.ThrottleFactor > 10 {
		return entities.State{}, domainerrors.ErrInvalidThrottleFactor
	}
	switch cmd.CognitionAvailability {
	case entities.CognitionFull, entities.CognitionDegraded, entities.CognitionUnavailable:
	default:
		return entities.State{}, domainerrors.ErrInvalidAvailability
	}
	if cmd.WindowStart != nil && cmd.WindowEnd != nil && !cmd.WindowEnd.After(*cmd.WindowStart) {
		return entities.State{}, domainerrors.ErrInvalidWindow
	}

	now := uc.now()
	state := entities.State{
		DeploymentTarget:       target,
		CognitionAvailability:  cmd.CognitionAvailability,
		MaxThroughputPerMinute: cmd.MaxThroughputPerMinute,
		ThrottleFactor:         cmd.ThrottleFactor,
		WindowStart:            cmd.WindowStart,
		WindowEnd:              cmd.WindowEnd,
		Reason:                 cmd.Reason,
		ImposedAt:              now,
	}

	if err := uc.Repo.SaveState(ctx, state); err != nil {
		logger.Error("environment state save failed",
			"event", "environment_state_save_failed",
			"module", "environment-service",
			"layer", "application",
			"deployment_target", target,
			"error", err.Error(),
		)
		return entities.State{}, err
	}

	if err := uc.emitStateEvent(ctx, "environment.state_changed", target, cmd.ActorID, cmd.CorrelationID, state, now); err != nil {
		return entities.State{}, err
	}

	logger.Info("environment state changed",
		"event", "environment_state_changed",
		"module", "environment-service",
		"layer", "application",
		"deployment_target", target,
		"cognition_availability", string(state.CognitionAvailability),
	)
	return state, nil
}

// RemoveState clears a deployment target's constraints (reverting it to
// "no constraints imposed") and emits environment.state_removed.
func (uc StateUseCase) RemoveState(ctx context.Context, cmd RemoveStateCommand) error {
	logger := uc.logger()
	target := strings.TrimSpace(cmd.DeploymentTarget)
	now := uc.now()

	if err := uc.Repo.DeleteState(ctx, target); err != nil {
		return err
	}

	if err := uc.emitStateEvent(ctx, "environment.state_removed", target, cmd.ActorID, cmd.CorrelationID, entities.State{DeploymentTarget: target, ImposedAt: now}, now); err != nil {
		return err
	}

	logger.Info("environment state removed",
		"event", "environment_state_removed",
		"module", "environment-service",
		"layer", "application",
		"deployment_target", target,
	)
	return nil
}

func (uc StateUseCase) emitStateEvent(ctx context.Context, eventType, target, actorID, correlationID string, state entities.State, now time.Time) error {
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"deployment_target":         state.DeploymentTarget,
		"cognition_availability":    state.CognitionAvailability,
		"max_throughput_per_minute": state.MaxThroughputPerMinute,
		"throttle_factor":           state.ThrottleFactor,
		"window_start":              state.WindowStart,
		"window_end":                state.WindowEnd,
		"reason":                    state.Reason,
	}
	env, err := events.Build(eventID, eventType, now, actorID, correlationID, "", payload, nil)
	if err != nil {
		return err
	}
	if err := uc.Repo.AppendEvent(ctx, env); err != nil {
		return err
	}
	envelopeBytes, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return uc.Repo.AppendOutbox(ctx, env.EventID, events.TopicPhysics, envelopeBytes)
}
