// Package ports declares the Agent Action Engine's dependency boundary:
// everything the application layer needs from infrastructure, expressed as
// interfaces the adapters satisfy.
package ports

import (
	"context"
	"time"

	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
	"oxsubstrate/internal/shared/events"
)

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints identifiers for agents, action logs, and events.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// CognitionProvider is the abstract capability described in spec §9: a
// per-process registry maps provider name to implementation, with "none" as
// a sentinel that short-circuits both operations.
type CognitionProvider interface {
	EstimateCost(ctx context.Context, payload map[string]any, agentContext map[string]any) (int, error)
	Execute(ctx context.Context, payload map[string]any, agentContext map[string]any) (entities.CognitionResult, error)
}

// ErrCognitionPaused is returned by CognitionProvider.Execute when the
// provider signals it is paused. This outcome rejects the action with
// cognition_paused and does not deduct capacity (spec §4.3 step 9).
var ErrCognitionPaused = cognitionPausedError{}

type cognitionPausedError struct{}

func (cognitionPausedError) Error() string { return "cognition provider paused" }

// CognitionRegistry resolves a provider name to an implementation. "none"
// must resolve to NoneProvider.
type CognitionRegistry interface {
	Resolve(provider string) CognitionProvider
}

// Repository is the Agent Action Engine's single persistence port. Its
// Transact method opens one serializable transaction and hands back a
// tx-scoped Repository for every step of spec §4.3 to run against, so the
// whole admission pipeline commits or rolls back atomically.
type Repository interface {
	// Transact runs fn inside a serializable transaction bounded by ctx's
	// deadline. Any error returned by fn rolls back the transaction.
	Transact(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	GetAgent(ctx context.Context, agentID string) (entities.Agent, bool, error)
	CreateAgent(ctx context.Context, agent entities.Agent, capacity entities.Capacity, config entities.Config) error
	UpdateAgent(ctx context.Context, agent entities.Agent) error

	GetConfig(ctx context.Context, agentID string) (entities.Config, bool, error)
	SaveConfig(ctx context.Context, config entities.Config) error

	// FindActionLogByIdempotencyKey supports the idempotency short-circuit
	// in spec §4.3 step 3.
	FindActionLogByIdempotencyKey(ctx context.Context, agentID, idempotencyKey string) (entities.ActionLog, bool, error)
	FindEventByID(ctx context.Context, eventID string) (events.Envelope, bool, error)

	// LockCapacity performs SELECT ... FOR UPDATE.
	LockCapacity(ctx context.Context, agentID string) (entities.Capacity, error)
	SaveCapacity(ctx context.Context, capacity entities.Capacity) error
	AllocateCapacity(ctx context.Context, agentID string, amount int) (entities.Capacity, error)

	GetEnvironmentSnapshot(ctx context.Context, target string) (entities.EnvironmentSnapshot, error)
	GetCurrentMinuteThroughput(ctx context.Context, target string, minute time.Time) (int, error)
	IncrementThroughput(ctx context.Context, target string, minute time.Time) error

	AppendActionLog(ctx context.Context, log entities.ActionLog) error
	AppendEvent(ctx context.Context, env events.Envelope) error
	AppendOutbox(ctx context.Context, eventID, topic string, payload []byte) error
}
