package agentengine

import (
	"log/slog"

	"oxsubstrate/contexts/substrate/agent-engine/adapters/cognition"
	httpadapter "oxsubstrate/contexts/substrate/agent-engine/adapters/http"
	"oxsubstrate/contexts/substrate/agent-engine/adapters/memory"
	"oxsubstrate/contexts/substrate/agent-engine/application/commands"
	"oxsubstrate/contexts/substrate/agent-engine/ports"
)

// Module exposes the Agent Action Engine's entrypoints needed by bootstrap.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

// Dependencies groups infrastructure-facing ports required by the
// application layer. The module is storage-agnostic as long as the
// supplied adapters satisfy these contracts.
type Dependencies struct {
	Repo      ports.Repository
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Cognition ports.CognitionRegistry
	Logger    *slog.Logger
}

// NewModule wires the application use cases and the HTTP adapter.
func NewModule(deps Dependencies) Module {
	attempt := commands.AttemptUseCase{
		Repo:      deps.Repo,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Cognition: deps.Cognition,
		Logger:    deps.Logger,
	}
	lifecycle := commands.LifecycleUseCase{
		Repo:   deps.Repo,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Attempt:   attempt,
			Lifecycle: lifecycle,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule provides a self-contained in-memory wiring used by
// tests and local bootstrap paths.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	registry := cognition.NewRegistry(nil)
	module := NewModule(Dependencies{
		Repo:      store,
		Clock:     store,
		IDGen:     store,
		Cognition: registry,
		Logger:    logger,
	})
	module.Store = store
	return module
}
