package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/agent-engine/application"
	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/agent-engine/domain/errors"
	"oxsubstrate/contexts/substrate/agent-engine/ports"
)

// CreateAgentCommand provisions a new agent with its starting capacity and
// config (spec §3).
type CreateAgentCommand struct {
	DeploymentTarget string
	SponsorID        string
	CognitionProvider string
	ThrottleProfile  entities.ThrottleProfile
	MaxBalance       int
	RegenPerHour     int
	StartingBalance  int
	BiasMap          map[string]float64
	ThrottleConfig   map[string]any
	CognitionConfig  map[string]any
}

// ArchiveAgentCommand one-way retires an agent within its current version.
type ArchiveAgentCommand struct {
	AgentID string
}

// RedeployAgentCommand moves a still-active agent to a new deployment
// target, e.g. after an environment migration.
type RedeployAgentCommand struct {
	AgentID          string
	DeploymentTarget string
}

// ReassignSponsorCommand changes which sponsor wallet funds an agent.
// Empty SponsorID unsponsors the agent.
type ReassignSponsorCommand struct {
	AgentID   string
	SponsorID string
}

// UpdateConfigCommand replaces an agent's bias map and opaque config,
// bumping its version counter.
type UpdateConfigCommand struct {
	AgentID         string
	BiasMap         map[string]float64
	ThrottleConfig  map[string]any
	CognitionConfig map[string]any
}

// AllocateCapacityCommand is an operator-issued capacity grant, independent
// of lazy regeneration (spec §4.3 "manual allocation").
type AllocateCapacityCommand struct {
	AgentID string
	Amount  int
}

// LifecycleUseCase groups agent provisioning and administrative commands
// that do not participate in the attempt admission pipeline.
type LifecycleUseCase struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// CreateAgent provisions a new active agent.
func (uc LifecycleUseCase) CreateAgent(ctx context.Context, cmd CreateAgentCommand) (entities.Agent, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.DeploymentTarget) == "" {
		return entities.Agent{}, domainerrors.ErrInvalidAmount
	}
	cognitionProvider := strings.TrimSpace(cmd.CognitionProvider)
	if cognitionProvider == "" {
		cognitionProvider = "none"
	}
	throttle := cmd.ThrottleProfile
	if throttle == "" {
		throttle = entities.ThrottleNormal
	}

	agentID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Agent{}, err
	}
	now := uc.now()
	agent := entities.Agent{
		AgentID:           agentID,
		Status:            entities.StatusActive,
		DeploymentTarget:  strings.TrimSpace(cmd.DeploymentTarget),
		SponsorID:         strings.TrimSpace(cmd.SponsorID),
		CognitionProvider: cognitionProvider,
		ThrottleProfile:   throttle,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	capacity := entities.Capacity{
		AgentID:          agentID,
		Balance:          cmd.StartingBalance,
		MaxBalance:       cmd.MaxBalance,
		RegenPerHour:     cmd.RegenPerHour,
		LastReconciledAt: now,
	}
	config := entities.Config{
		AgentID:         agentID,
		BiasMap:         cmd.BiasMap,
		ThrottleConfig:  cmd.ThrottleConfig,
		CognitionConfig: cmd.CognitionConfig,
		Version:         1,
	}

	if err := uc.Repo.CreateAgent(ctx, agent, capacity, config); err != nil {
		return entities.Agent{}, err
	}
	logger.Info("agent created",
		"event", "agent_created",
		"module", "substrate/agent-engine",
		"layer", "application",
		"agent_id", agentID,
		"deployment_target", agent.DeploymentTarget,
	)
	return agent, nil
}

// ArchiveAgent retires an agent. Archival is idempotent: archiving an
// already-archived agent is a no-op.
func (uc LifecycleUseCase) ArchiveAgent(ctx context.Context, cmd ArchiveAgentCommand) error {
	agent, found, err := uc.Repo.GetAgent(ctx, strings.TrimSpace(cmd.AgentID))
	if err != nil {
		return err
	}
	if !found {
		return domainerrors.ErrAgentNotFound
	}
	if agent.Status == entities.StatusArchived {
		return nil
	}
	agent.Status = entities.StatusArchived
	agent.UpdatedAt = uc.now()
	return uc.Repo.UpdateAgent(ctx, agent)
}

// RedeployAgent reassigns an active agent's deployment target.
func (uc LifecycleUseCase) RedeployAgent(ctx context.Context, cmd RedeployAgentCommand) (entities.Agent, error) {
	agent, found, err := uc.Repo.GetAgent(ctx, strings.TrimSpace(cmd.AgentID))
	if err != nil {
		return entities.Agent{}, err
	}
	if !found {
		return entities.Agent{}, domainerrors.ErrAgentNotFound
	}
	if !agent.IsActive() {
		return entities.Agent{}, domainerrors.ErrAgentUnavailable
	}
	if strings.TrimSpace(cmd.DeploymentTarget) == "" {
		return entities.Agent{}, domainerrors.ErrInvalidAmount
	}
	agent.DeploymentTarget = strings.TrimSpace(cmd.DeploymentTarget)
	agent.UpdatedAt = uc.now()
	if err := uc.Repo.UpdateAgent(ctx, agent); err != nil {
		return entities.Agent{}, err
	}
	return agent, nil
}

// ReassignSponsor changes the sponsor funding an agent's credit-backed
// pressure issuance. The sponsor engine, not this command, validates wallet
// existence; this command only records the assignment on the agent record.
func (uc LifecycleUseCase) ReassignSponsor(ctx context.Context, cmd ReassignSponsorCommand) (entities.Agent, error) {
	agent, found, err := uc.Repo.GetAgent(ctx, strings.TrimSpace(cmd.AgentID))
	if err != nil {
		return entities.Agent{}, err
	}
	if !found {
		return entities.Agent{}, domainerrors.ErrAgentNotFound
	}
	agent.SponsorID = strings.TrimSpace(cmd.SponsorID)
	agent.UpdatedAt = uc.now()
	if err := uc.Repo.UpdateAgent(ctx, agent); err != nil {
		return entities.Agent{}, err
	}
	return agent, nil
}

// AllocateCapacity applies an operator-issued capacity grant, reconciling
// lazy regeneration first so the grant lands on an up-to-date balance.
func (uc LifecycleUseCase) AllocateCapacity(ctx context.Context, cmd AllocateCapacityCommand) (entities.Capacity, error) {
	if cmd.Amount <= 0 {
		return entities.Capacity{}, domainerrors.ErrInvalidAmount
	}
	var capacity entities.Capacity
	err := uc.Repo.Transact(ctx, func(ctx context.Context, tx ports.Repository) error {
		locked, err := tx.LockCapacity(ctx, strings.TrimSpace(cmd.AgentID))
		if err != nil {
			return err
		}
		reconciled := locked.Reconcile(uc.now())
		reconciled.Balance += cmd.Amount
		if reconciled.Balance > reconciled.MaxBalance {
			reconciled.Balance = reconciled.MaxBalance
		}
		if err := tx.SaveCapacity(ctx, reconciled); err != nil {
			return err
		}
		capacity = reconciled
		return nil
	})
	return capacity, err
}

// UpdateConfig replaces an agent's bias map and opaque config, bumping the
// config version so downstream projections can detect the change.
func (uc LifecycleUseCase) UpdateConfig(ctx context.Context, cmd UpdateConfigCommand) (entities.Config, error) {
	agentID := strings.TrimSpace(cmd.AgentID)
	existing, found, err := uc.Repo.GetConfig(ctx, agentID)
	if err != nil {
		return entities.Config{}, err
	}
	if !found {
		return entities.Config{}, domainerrors.ErrAgentNotFound
	}
	updated := entities.Config{
		AgentID:         agentID,
		BiasMap:         cmd.BiasMap,
		ThrottleConfig:  cmd.ThrottleConfig,
		CognitionConfig: cmd.CognitionConfig,
		Version:         existing.Version + 1,
	}
	if err := uc.Repo.SaveConfig(ctx, updated); err != nil {
		return entities.Config{}, err
	}
	return updated, nil
}

func (uc LifecycleUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
