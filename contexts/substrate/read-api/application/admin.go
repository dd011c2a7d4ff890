package application

import (
	"context"
	"log/slog"

	domainerrors "oxsubstrate/contexts/substrate/read-api/domain/errors"
	"oxsubstrate/contexts/substrate/read-api/ports"
)

// opsRole is the only accepted x-ops-role value until production wires in
// proper RBAC (spec §6: "placeholder; production integrates proper RBAC").
const opsRole = "ops"

// AdminUseCase implements the ops-gated dead-letter re-drive endpoint. It is
// kept separate from QueryUseCase because it writes rather than reads, and
// is gated on x-ops-role rather than x-observer-role.
type AdminUseCase struct {
	Repo      ports.Repository
	Publisher ports.Publisher
	Logger    *slog.Logger
}

func (uc AdminUseCase) logger() *slog.Logger { return ResolveLogger(uc.Logger) }

// RedriveDeadLetter re-publishes a parked envelope's original payload back
// onto the bus for the projection consumer to retry, then marks it
// redriven so it drops out of future GET /ox/observe listings.
func (uc AdminUseCase) RedriveDeadLetter(ctx context.Context, opsRoleHeader, sourceEventID string) error {
	if opsRoleHeader != opsRole {
		return domainerrors.ErrOpsForbidden
	}
	topic, payload, err := uc.Repo.RedriveDeadLetter(ctx, sourceEventID)
	if err != nil {
		return err
	}
	if err := uc.Publisher.Publish(ctx, topic, payload); err != nil {
		uc.logger().Error("dead letter republish failed",
			"event", "read_api_redrive_failed",
			"module", "substrate/read-api",
			"layer", "application",
			"source_event_id", sourceEventID,
			"error", err.Error(),
		)
		return err
	}
	uc.logger().Info("dead letter redriven",
		"event", "read_api_redrive_succeeded",
		"module", "substrate/read-api",
		"layer", "application",
		"source_event_id", sourceEventID,
		"topic", topic,
	)
	return nil
}
