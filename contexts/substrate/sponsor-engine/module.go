package sponsorengine

import (
	"log/slog"

	httpadapter "oxsubstrate/contexts/substrate/sponsor-engine/adapters/http"
	"oxsubstrate/contexts/substrate/sponsor-engine/adapters/memory"
	"oxsubstrate/contexts/substrate/sponsor-engine/application/commands"
	"oxsubstrate/contexts/substrate/sponsor-engine/application/workers"
	"oxsubstrate/contexts/substrate/sponsor-engine/ports"
)

// Module exposes the Sponsor Influence Engine's entrypoints needed by
// bootstrap: the HTTP handler facade, the policy sweep and physics tick
// workers, and an optional in-memory store handle for tests/dev wiring.
type Module struct {
	Handler      httpadapter.Handler
	PolicySweep  workers.PolicySweeper
	PhysicsTick  workers.PhysicsTick
	Store        *memory.Store
}

// Dependencies groups infrastructure-facing ports the application layer
// needs. The module is storage-agnostic as long as the supplied adapter
// satisfies ports.Repository.
type Dependencies struct {
	Repo        ports.Repository
	Agents      ports.AgentDirectory
	Environment ports.EnvironmentDirectory
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger

	// PhysicsTargets lists the deployment targets the physics tick worker
	// sweeps for braid composition each cycle.
	PhysicsTargets []string
}

// NewModule wires the application use cases, workers, and the HTTP
// adapter facade.
func NewModule(deps Dependencies) Module {
	walletUseCase := commands.WalletUseCase{
		Repo:   deps.Repo,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	pressureUseCase := commands.PressureUseCase{
		Repo:   deps.Repo,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Wallet:    walletUseCase,
			Pressures: pressureUseCase,
			Logger:    deps.Logger,
		},
		PolicySweep: workers.PolicySweeper{
			Repo:        deps.Repo,
			Agents:      deps.Agents,
			Environment: deps.Environment,
			Clock:       deps.Clock,
			IDGen:       deps.IDGen,
			Logger:      deps.Logger,
		},
		PhysicsTick: workers.PhysicsTick{
			Repo:    deps.Repo,
			Targets: deps.PhysicsTargets,
			Clock:   deps.Clock,
			IDGen:   deps.IDGen,
			Logger:  deps.Logger,
		},
	}
}

// NewInMemoryModule provides a self-contained in-memory wiring used by
// tests and local bootstrap paths. Agents/Environment directories are not
// part of the in-memory store; callers that need the policy sweep worker
// exercised end-to-end must supply their own test doubles for those ports.
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
