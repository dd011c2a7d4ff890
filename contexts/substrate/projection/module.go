package projection

import (
	"log/slog"

	"oxsubstrate/contexts/substrate/projection/adapters/memory"
	"oxsubstrate/contexts/substrate/projection/application/workers"
	"oxsubstrate/contexts/substrate/projection/ports"
)

// Module exposes the Projection Materializer's entrypoint needed by
// bootstrap: the consumer loop, plus an optional in-memory store handle for
// tests/dev-only wiring.
type Module struct {
	Consumer workers.Consumer
	Store    *memory.Store
}

// Dependencies groups the channels and infrastructure ports the consumer
// needs. Agents and Physics are expected to be the same bus subscriptions
// cmd/worker hands to every other consumer on those topics.
type Dependencies struct {
	Agents <-chan workers.Delivery
	Physics <-chan workers.Delivery
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// NewModule wires the consumer against the supplied dependencies.
func NewModule(deps Dependencies) Module {
	return Module{
		Consumer: workers.Consumer{
			Agents:  deps.Agents,
			Physics: deps.Physics,
			Repo:    deps.Repo,
			Clock:   deps.Clock,
			IDGen:   deps.IDGen,
			Logger:  deps.Logger,
		},
	}
}

// NewInMemoryModule provides a self-contained in-memory wiring used by
// tests; callers supply the Agents/Physics channels (a
// internal/platform/messaging.Bus.Subscribe channel has to be forwarded
// onto a Delivery channel first, as bootstrap's bridgeDelivery does).
func NewInMemoryModule(agents, physics <-chan workers.Delivery, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Agents:  agents,
		Physics: physics,
		Repo:    store,
		Clock:   store,
		IDGen:   store,
		Logger:  logger,
	})
	module.Store = store
	return module
}
