package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/environment-service/application"
	"oxsubstrate/contexts/substrate/environment-service/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/environment-service/domain/errors"
	"oxsubstrate/contexts/substrate/environment-service/ports"
)

// CreateLocalityCommand registers a new locality grouping within a
// deployment target.
type CreateLocalityCommand struct {
	DeploymentTarget    string
	Name                string
	Density             float64
	InterferenceDensity float64
	VisibilityRadius    float64
	EvidenceHalfLife    time.Duration
}

// SetMembershipCommand links an agent to a locality with a normalized
// weight.
type SetMembershipCommand struct {
	LocalityID string
	AgentID    string
	Weight     float64
}

// LocalityUseCase manages locality topology for a deployment target.
type LocalityUseCase struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc LocalityUseCase) logger() *slog.Logger { return application.ResolveLogger(uc.Logger) }

// CreateLocality persists a new, active locality.
func (uc LocalityUseCase) CreateLocality(ctx context.Context, cmd CreateLocalityCommand) (entities.Locality, error) {
	id, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Locality{}, err
	}
	locality := entities.Locality{
		ID:                  id,
		DeploymentTarget:    strings.TrimSpace(cmd.DeploymentTarget),
		Name:                strings.TrimSpace(cmd.Name),
		Density:             cmd.Density,
		InterferenceDensity: cmd.InterferenceDensity,
		VisibilityRadius:    cmd.VisibilityRadius,
		EvidenceHalfLife:    cmd.EvidenceHalfLife,
		Active:              true,
	}
	if err := uc.Repo.CreateLocality(ctx, locality); err != nil {
		return entities.Locality{}, err
	}
	uc.logger().Info("locality created",
		"event", "locality_created",
		"module", "environment-service",
		"layer", "application",
		"locality_id", locality.ID,
		"deployment_target", locality.DeploymentTarget,
	)
	return locality, nil
}

// SetMembership upserts an agent's normalized weight within a locality.
func (uc LocalityUseCase) SetMembership(ctx context.Context, cmd SetMembershipCommand) error {
	localityID := strings.TrimSpace(cmd.LocalityID)
	if _, found, err := uc.Repo.GetLocality(ctx, localityID); err != nil {
		return err
	} else if !found {
		return domainerrors.ErrLocalityNotFound
	}
	membership := entities.LocalityMembership{
		LocalityID: localityID,
		AgentID:    strings.TrimSpace(cmd.AgentID),
		Weight:     cmd.Weight,
	}
	return uc.Repo.UpsertMembership(ctx, membership)
}

// ListLocalities returns every locality registered for a deployment target.
func (uc LocalityUseCase) ListLocalities(ctx context.Context, target string) ([]entities.Locality, error) {
	return uc.Repo.ListLocalities(ctx, strings.TrimSpace(target))
}
