package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/application"
	"oxsubstrate/contexts/substrate/sponsor-engine/domain/services"
	"oxsubstrate/contexts/substrate/sponsor-engine/ports"
	"oxsubstrate/internal/shared/events"
)

// PhysicsTick runs braid composition for every deployment target with
// active pressures, publishing interference events and the resulting
// braid vector to the physics topic for downstream consumers (spec §4.4).
type PhysicsTick struct {
	Repo    ports.Repository
	Targets []string // deployment targets to sweep each tick
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

func (p PhysicsTick) logger() *slog.Logger { return application.ResolveLogger(p.Logger) }

func (p PhysicsTick) now() time.Time {
	if p.Clock != nil {
		return p.Clock.Now()
	}
	return time.Now().UTC()
}

// RunOnce composes the braid vector for each configured deployment target
// and emits ox.physics.braid_composed plus one ox.physics.interference
// event per pairwise cancellation.
func (p PhysicsTick) RunOnce(ctx context.Context) error {
	logger := p.logger()
	now := p.now()
	tickID, err := p.IDGen.NewID(ctx)
	if err != nil {
		return err
	}

	for _, target := range p.Targets {
		pressures, err := p.Repo.ListActivePressures(ctx, target, now)
		if err != nil {
			logger.Error("physics tick list pressures failed",
				"event", "physics_tick_list_failed",
				"module", "sponsor-engine",
				"layer", "worker",
				"deployment_target", target,
				"error", err.Error(),
			)
			return err
		}
		if len(pressures) == 0 {
			continue
		}

		vector, interferences := services.ComposeBraid(pressures, now, tickID)
		for _, interference := range interferences {
			if err := p.Repo.AppendInterference(ctx, interference); err != nil {
				return err
			}
			if err := p.emitEvent(ctx, "ox.physics.interference", target, now, map[string]any{
				"tick_id":                  tickID,
				"deployment_target":        target,
				"pressure_a_id":            interference.PressureAID,
				"pressure_b_id":            interference.PressureBID,
				"type":                     interference.Type,
				"interference_probability": interference.InterferenceProbability,
				"reduction_factor":         interference.ReductionFactor,
			}); err != nil {
				return err
			}
		}

		if err := p.emitEvent(ctx, "ox.physics.braid_composed", target, now, map[string]any{
			"tick_id":           tickID,
			"deployment_target": target,
			"capacity":          vector.Capacity,
			"throttle":          vector.Throttle,
			"cognition":         vector.Cognition,
			"redeploy_bias":     vector.RedeployBias,
		}); err != nil {
			return err
		}
	}

	logger.Info("physics tick completed",
		"event", "physics_tick_completed",
		"module", "sponsor-engine",
		"layer", "worker",
		"tick_id", tickID,
		"target_count", len(p.Targets),
	)
	return nil
}

func (p PhysicsTick) emitEvent(ctx context.Context, eventType, target string, now time.Time, payload any) error {
	eventID, err := p.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	env, err := events.Build(eventID, eventType, now, target, "", "", payload, nil)
	if err != nil {
		return err
	}
	if err := p.Repo.AppendEvent(ctx, env); err != nil {
		return err
	}
	envelopeBytes, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.Repo.AppendOutbox(ctx, env.EventID, events.TopicPhysics, envelopeBytes)
}
