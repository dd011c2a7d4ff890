package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/application"
	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/sponsor-engine/domain/errors"
	"oxsubstrate/contexts/substrate/sponsor-engine/ports"
)

// IssuePressureCommand issues a decaying influence over a deployment (and
// optionally a single agent within it).
type IssuePressureCommand struct {
	SponsorID        string
	TargetDeployment string
	TargetAgentID    string
	Type             entities.PressureType
	Magnitude        float64
	HalfLife         time.Duration
}

// CancelPressureCommand marks a pressure user-terminated for braid
// composition purposes (decay is not interrupted; no refund is issued).
type CancelPressureCommand struct {
	PressureID string
	SponsorID  string
}

// PressureUseCase implements pressure issuance and cancellation.
type PressureUseCase struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc PressureUseCase) logger() *slog.Logger { return application.ResolveLogger(uc.Logger) }

func (uc PressureUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now()
	}
	return time.Now().UTC()
}

// IssuePressure validates magnitude/half-life, computes and deducts the
// credit cost, stores the pressure, and emits sponsor.pressure_issued.
func (uc PressureUseCase) IssuePressure(ctx context.Context, cmd IssuePressureCommand) (entities.Pressure, error) {
	if cmd.Magnitude < -100 || cmd.Magnitude > 100 {
		return entities.Pressure{}, domainerrors.ErrInvalidMagnitude
	}
	if cmd.HalfLife < 60*time.Second {
		return entities.Pressure{}, domainerrors.ErrInvalidHalfLife
	}

	cost := entities.CreditCostForMagnitude(cmd.Magnitude)
	sponsorID := strings.TrimSpace(cmd.SponsorID)

	var pressure entities.Pressure
	err := uc.Repo.Transact(ctx, func(ctx context.Context, tx ports.Repository) error {
		wallet, found, err := tx.GetWallet(ctx, sponsorID)
		if err != nil {
			return err
		}
		if !found || wallet.Balance < cost {
			return domainerrors.ErrSponsorCreditInsufficient
		}
		wallet.Balance -= cost
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}

		id, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		now := uc.now()
		pressure = entities.Pressure{
			ID:               id,
			SponsorID:        sponsorID,
			TargetDeployment: strings.TrimSpace(cmd.TargetDeployment),
			TargetAgentID:    strings.TrimSpace(cmd.TargetAgentID),
			Type:             cmd.Type,
			Magnitude:        cmd.Magnitude,
			HalfLife:         cmd.HalfLife,
			CreatedAt:        now,
			ExpiresAt:        entities.ExpiresAtFor(now, cmd.HalfLife),
			CreditCost:       cost,
		}
		if err := tx.CreatePressure(ctx, pressure); err != nil {
			return err
		}
		return emitCreditEvent(ctx, tx, uc.IDGen, now, "sponsor.pressure_issued", sponsorID, map[string]any{
			"pressure_id":       pressure.ID,
			"sponsor_id":        sponsorID,
			"target_deployment": pressure.TargetDeployment,
			"target_agent_id":   pressure.TargetAgentID,
			"type":              pressure.Type,
			"magnitude":         pressure.Magnitude,
			"half_life_seconds": cmd.HalfLife.Seconds(),
			"credit_cost":       cost,
		})
	})
	if err != nil {
		uc.logger().Error("pressure issue failed",
			"event", "sponsor_pressure_issue_failed",
			"module", "sponsor-engine",
			"layer", "application",
			"sponsor_id", sponsorID,
			"error", err.Error(),
		)
		return entities.Pressure{}, err
	}
	uc.logger().Info("pressure issued",
		"event", "sponsor_pressure_issued",
		"module", "sponsor-engine",
		"layer", "application",
		"pressure_id", pressure.ID,
		"sponsor_id", sponsorID,
		"target_deployment", pressure.TargetDeployment,
	)
	return pressure, nil
}

// CancelPressure marks a pressure cancelled. It must belong to the
// requesting sponsor.
func (uc PressureUseCase) CancelPressure(ctx context.Context, cmd CancelPressureCommand) error {
	pressureID := strings.TrimSpace(cmd.PressureID)
	pressure, found, err := uc.Repo.GetPressure(ctx, pressureID)
	if err != nil {
		return err
	}
	if !found {
		return domainerrors.ErrPressureNotFound
	}
	if pressure.SponsorID != strings.TrimSpace(cmd.SponsorID) {
		return domainerrors.ErrForbidden
	}
	if pressure.IsCancelled() {
		return nil
	}
	return uc.Repo.CancelPressure(ctx, pressureID, uc.now())
}
