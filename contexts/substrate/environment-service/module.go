package environmentservice

import (
	"log/slog"

	httpadapter "oxsubstrate/contexts/substrate/environment-service/adapters/http"
	"oxsubstrate/contexts/substrate/environment-service/adapters/memory"
	"oxsubstrate/contexts/substrate/environment-service/application/commands"
	"oxsubstrate/contexts/substrate/environment-service/ports"
)

// Module exposes the Environment Service's entrypoints needed by bootstrap:
// the HTTP handler facade plus an optional in-memory store handle for
// tests/dev-only wiring.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

// Dependencies groups infrastructure-facing ports the application layer
// needs. The module is storage-agnostic as long as the supplied adapter
// satisfies ports.Repository.
type Dependencies struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// NewModule wires the application use cases and the HTTP adapter facade.
func NewModule(deps Dependencies) Module {
	stateUseCase := commands.StateUseCase{
		Repo:   deps.Repo,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	localityUseCase := commands.LocalityUseCase{
		Repo:   deps.Repo,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			State:      stateUseCase,
			Localities: localityUseCase,
			Logger:     deps.Logger,
		},
	}
}

// NewInMemoryModule provides a self-contained in-memory wiring used by
// tests and local bootstrap paths.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repo:   store,
		Clock:  store,
		IDGen:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}
