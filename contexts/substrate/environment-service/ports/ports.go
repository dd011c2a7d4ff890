// Package ports declares the Environment Service's dependency boundary.
package ports

import (
	"context"
	"time"

	"oxsubstrate/contexts/substrate/environment-service/domain/entities"
	"oxsubstrate/internal/shared/events"
)

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints identifiers for localities and events.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Repository is the Environment Service's persistence port. Unlike the
// Agent Action Engine, a single PUT/DELETE here is a single-row write with
// no cross-entity invariant to protect inside one transaction, so no
// closure-based unit-of-work is needed.
type Repository interface {
	GetState(ctx context.Context, target string) (entities.State, bool, error)
	SaveState(ctx context.Context, state entities.State) error
	DeleteState(ctx context.Context, target string) error
	ListStates(ctx context.Context) ([]entities.State, error)

	RecordThroughput(ctx context.Context, target string, minute time.Time, delta int) error
	GetThroughput(ctx context.Context, target string, minute time.Time) (int, error)

	CreateLocality(ctx context.Context, locality entities.Locality) error
	GetLocality(ctx context.Context, localityID string) (entities.Locality, bool, error)
	ListLocalities(ctx context.Context, target string) ([]entities.Locality, error)
	UpsertMembership(ctx context.Context, membership entities.LocalityMembership) error
	ListMemberships(ctx context.Context, localityID string) ([]entities.LocalityMembership, error)

	AppendEvent(ctx context.Context, env events.Envelope) error
	AppendOutbox(ctx context.Context, eventID, topic string, payload []byte) error
}
