package readapi

import (
	"log/slog"

	httpadapter "oxsubstrate/contexts/substrate/read-api/adapters/http"
	"oxsubstrate/contexts/substrate/read-api/adapters/memory"
	"oxsubstrate/contexts/substrate/read-api/adapters/ratelimit"
	"oxsubstrate/contexts/substrate/read-api/application"
	"oxsubstrate/contexts/substrate/read-api/ports"
)

// Module exposes the Read API's entrypoint needed by bootstrap: the HTTP
// handler facade plus an optional in-memory store handle for tests/dev-only
// wiring.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

// Dependencies groups the infrastructure ports the application layer needs.
// Repo is read-only over the projection materializer's tables except for
// RecordAccessLog and RedriveDeadLetter; Publisher republishes a redriven
// dead letter back onto the bus for the projection consumer to retry.
type Dependencies struct {
	Repo      ports.Repository
	Limiter   ports.RateLimiter
	Publisher ports.Publisher
	Clock     ports.Clock
	Logger    *slog.Logger
}

// NewModule wires the query and admin use cases and the HTTP adapter
// facade.
func NewModule(deps Dependencies) Module {
	query := application.QueryUseCase{
		Repo:    deps.Repo,
		Limiter: deps.Limiter,
		Clock:   deps.Clock,
		Logger:  deps.Logger,
	}
	admin := application.AdminUseCase{
		Repo:      deps.Repo,
		Publisher: deps.Publisher,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Query:  query,
			Admin:  admin,
			Logger: deps.Logger,
		},
	}
}

// NewInMemoryModule provides a self-contained in-memory wiring used by
// tests; callers seed the store's fixture rows via its Seed* methods and
// supply a publisher (e.g. internal/platform/messaging.Bus) for redrive.
func NewInMemoryModule(publisher ports.Publisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repo:      store,
		Limiter:   ratelimit.New(),
		Publisher: publisher,
		Clock:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
