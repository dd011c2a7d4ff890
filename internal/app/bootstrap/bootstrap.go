// Package bootstrap is the composition root: it loads configuration, opens
// the database, migrates every bounded context's schema, wires each
// context's postgres adapters into its module, and assembles the API and
// worker processes cmd/api and cmd/worker run. Keep construction here so
// the module packages stay framework-agnostic.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	agentengine "oxsubstrate/contexts/substrate/agent-engine"
	agentcognition "oxsubstrate/contexts/substrate/agent-engine/adapters/cognition"
	agentpostgres "oxsubstrate/contexts/substrate/agent-engine/adapters/postgres"

	environmentservice "oxsubstrate/contexts/substrate/environment-service"
	environmentpostgres "oxsubstrate/contexts/substrate/environment-service/adapters/postgres"

	sponsorengine "oxsubstrate/contexts/substrate/sponsor-engine"
	sponsorpostgres "oxsubstrate/contexts/substrate/sponsor-engine/adapters/postgres"
	sponsorworkers "oxsubstrate/contexts/substrate/sponsor-engine/application/workers"

	"oxsubstrate/contexts/substrate/projection"
	projectionpostgres "oxsubstrate/contexts/substrate/projection/adapters/postgres"
	projectionworkers "oxsubstrate/contexts/substrate/projection/application/workers"

	readapi "oxsubstrate/contexts/substrate/read-api"
	readapipostgres "oxsubstrate/contexts/substrate/read-api/adapters/postgres"
	"oxsubstrate/contexts/substrate/read-api/adapters/ratelimit"

	"oxsubstrate/internal/platform/config"
	"oxsubstrate/internal/platform/db"
	"oxsubstrate/internal/platform/httpserver"
	"oxsubstrate/internal/platform/messaging"
	"oxsubstrate/internal/shared/clock"
	"oxsubstrate/internal/shared/events"
	"oxsubstrate/internal/shared/idgen"
	"oxsubstrate/internal/shared/outbox"
)

// busBuffer sizes each subscriber's channel on the in-process bus.
const busBuffer = 256

// outboxBatchSize bounds how many due rows a single dispatcher cycle drains
// per context per tick.
const outboxBatchSize = 100

func newLogger(serviceName string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler).With("service", serviceName)
}

// shared bundles everything both the API and worker process need: the
// loaded config, the open database, the in-process bus, and every
// context's postgres repository. clock.Real and idgen.UUID are passed
// directly to each module's Dependencies since every context declares the
// identical Clock/IDGenerator port shape.
type shared struct {
	cfg    config.Config
	pg     *db.Postgres
	bus    *messaging.Bus
	logger *slog.Logger

	agentRepo       *agentpostgres.Repository
	environmentRepo *environmentpostgres.Repository
	sponsorRepo     *sponsorpostgres.Repository
	projectionRepo  *projectionpostgres.Repository
	readAPIRepo     *readapipostgres.Repository
}

func buildShared() (*shared, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.ServiceName)

	pgConn, err := db.Connect(cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	models := make([]any, 0, 64)
	models = append(models, agentpostgres.Models()...)
	models = append(models, environmentpostgres.Models()...)
	models = append(models, sponsorpostgres.Models()...)
	models = append(models, projectionpostgres.Models()...)
	models = append(models, readapipostgres.Models()...)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pgConn.Migrate(ctx, models, nil); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	bus := messaging.New(busBuffer)

	return &shared{
		cfg:             cfg,
		pg:              pgConn,
		bus:             bus,
		logger:          logger,
		agentRepo:       agentpostgres.NewRepository(pgConn.DB, logger.With("module", "substrate/agent-engine")),
		environmentRepo: environmentpostgres.NewRepository(pgConn.DB, logger.With("module", "substrate/environment-service")),
		sponsorRepo:     sponsorpostgres.NewRepository(pgConn.DB, logger.With("module", "substrate/sponsor-engine")),
		projectionRepo:  projectionpostgres.NewRepository(pgConn.DB, logger.With("module", "substrate/projection")),
		readAPIRepo:     readapipostgres.NewRepository(pgConn.DB),
	}, nil
}

func (s *shared) buildAgentModule() agentengine.Module {
	registry := agentcognition.NewRegistry(nil)
	return agentengine.NewModule(agentengine.Dependencies{
		Repo:      s.agentRepo,
		Clock:     clock.Real{},
		IDGen:     idgen.UUID{},
		Cognition: registry,
		Logger:    s.logger.With("module", "substrate/agent-engine"),
	})
}

func (s *shared) buildEnvironmentModule() environmentservice.Module {
	return environmentservice.NewModule(environmentservice.Dependencies{
		Repo:   s.environmentRepo,
		Clock:  clock.Real{},
		IDGen:  idgen.UUID{},
		Logger: s.logger.With("module", "substrate/environment-service"),
	})
}

// physicsTargets lists the deployment targets the sponsor engine's physics
// tick worker sweeps each cycle. Hardcoded for now — spec §4.4 assumes a
// small, fixed set of deployment targets per simulation run rather than a
// dynamic registry.
var physicsTargets = []string{"default"}

func (s *shared) buildSponsorModule() sponsorengine.Module {
	return sponsorengine.NewModule(sponsorengine.Dependencies{
		Repo:           s.sponsorRepo,
		Agents:         sponsorpostgres.NewAgentDirectory(s.pg.DB),
		Environment:    sponsorpostgres.NewEnvironmentDirectory(s.pg.DB),
		Clock:          clock.Real{},
		IDGen:          idgen.UUID{},
		Logger:         s.logger.With("module", "substrate/sponsor-engine"),
		PhysicsTargets: physicsTargets,
	})
}

func (s *shared) buildReadAPIModule() readapi.Module {
	return readapi.NewModule(readapi.Dependencies{
		Repo:      s.readAPIRepo,
		Limiter:   ratelimit.New(),
		Publisher: s.bus,
		Clock:     clock.Real{},
		Logger:    s.logger.With("module", "substrate/read-api"),
	})
}

// bridgeDelivery forwards messaging.Message values off a bus subscription
// onto a projectionworkers.Delivery channel. The two types are
// field-identical but distinct named types, so Go does not permit
// converting one channel directly into the other; this goroutine is the
// adapter. It exits when the source channel closes or ctx is cancelled.
func bridgeDelivery(ctx context.Context, src <-chan messaging.Message) <-chan projectionworkers.Delivery {
	dst := make(chan projectionworkers.Delivery, busBuffer)
	go func() {
		defer close(dst)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				select {
				case dst <- projectionworkers.Delivery{Topic: msg.Topic, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return dst
}

func (s *shared) buildProjectionModule(ctx context.Context) projection.Module {
	agentsCh := bridgeDelivery(ctx, s.bus.Subscribe(events.TopicAgents, "projection"))
	physicsCh := bridgeDelivery(ctx, s.bus.Subscribe(events.TopicPhysics, "projection"))
	return projection.NewModule(projection.Dependencies{
		Agents:  agentsCh,
		Physics: physicsCh,
		Repo:    s.projectionRepo,
		Clock:   clock.Real{},
		IDGen:   idgen.UUID{},
		Logger:  s.logger.With("module", "substrate/projection"),
	})
}

// APIApp is the assembled HTTP-facing process.
type APIApp struct {
	shared *shared
	server *httpserver.Server
}

// Run starts the HTTP server and blocks until it stops or ctx is cancelled.
func (a *APIApp) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()
	select {
	case <-ctx.Done():
		return a.server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Close releases the database connection pool.
func (a *APIApp) Close() error {
	return a.shared.pg.Close()
}

// BuildAPI assembles the API process: every context's module wired against
// its postgres repository, mounted on one HTTP mux. The outbox dispatch
// loop, policy sweep, physics tick, and projection consumer all run in the
// worker process instead (see BuildWorker) so the API process stays
// request/response only.
func BuildAPI() (*APIApp, error) {
	s, err := buildShared()
	if err != nil {
		return nil, err
	}

	agents := s.buildAgentModule()
	environment := s.buildEnvironmentModule()
	sponsors := s.buildSponsorModule()
	readAPI := s.buildReadAPIModule()

	server := httpserver.New(agents, environment, sponsors, readAPI, s.logger.With("module", "platform/httpserver"), s.cfg.HTTPAddr)

	return &APIApp{shared: s, server: server}, nil
}

// outboxDispatchers bundles the per-context outbox dispatchers a worker
// tick runs. Each context owns its own event/outbox tables, so draining
// them is one dispatcher per repository rather than one shared loop.
type outboxDispatchers struct {
	agent       outbox.Dispatcher
	environment outbox.Dispatcher
	sponsor     outbox.Dispatcher
}

func (s *shared) buildOutboxDispatchers() outboxDispatchers {
	return outboxDispatchers{
		agent: outbox.Dispatcher{
			Store:     s.agentRepo,
			Publisher: s.bus,
			BatchSize: outboxBatchSize,
			Logger:    s.logger.With("module", "substrate/agent-engine"),
		},
		environment: outbox.Dispatcher{
			Store:     s.environmentRepo,
			Publisher: s.bus,
			BatchSize: outboxBatchSize,
			Logger:    s.logger.With("module", "substrate/environment-service"),
		},
		sponsor: outbox.Dispatcher{
			Store:     s.sponsorRepo,
			Publisher: s.bus,
			BatchSize: outboxBatchSize,
			Logger:    s.logger.With("module", "substrate/sponsor-engine"),
		},
	}
}

// WorkerApp is the assembled background process: outbox dispatch, sponsor
// policy sweep and physics tick, and the projection consumer.
type WorkerApp struct {
	shared *shared

	outbox outboxDispatchers

	policySweep sponsorworkers.PolicySweeper
	physicsTick sponsorworkers.PhysicsTick

	projectionConsumer projectionworkers.Consumer
}

// Run launches every scheduled loop and the projection consumer, blocking
// until ctx is cancelled or the consumer exits with an error.
func (w *WorkerApp) Run(ctx context.Context) error {
	logger := w.shared.logger
	logger.Info("worker loops starting",
		"event", "worker_loops_starting",
		"module", "app/bootstrap",
		"layer", "worker",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.projectionConsumer.Run(ctx)
	}()

	outboxTicker := time.NewTicker(w.shared.cfg.OutboxDispatchInterval)
	defer outboxTicker.Stop()
	policyTicker := time.NewTicker(w.shared.cfg.PolicySweepInterval)
	defer policyTicker.Stop()
	physicsTicker := time.NewTicker(w.shared.cfg.PhysicsTickInterval)
	defer physicsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case now := <-outboxTicker.C:
			w.runOutboxCycle(ctx, now)
		case <-policyTicker.C:
			if err := w.policySweep.RunOnce(ctx); err != nil {
				logger.Error("policy sweep cycle failed",
					"event", "policy_sweep_cycle_failed",
					"module", "substrate/sponsor-engine",
					"layer", "worker",
					"error", err.Error(),
				)
			}
		case <-physicsTicker.C:
			if err := w.physicsTick.RunOnce(ctx); err != nil {
				logger.Error("physics tick cycle failed",
					"event", "physics_tick_cycle_failed",
					"module", "substrate/sponsor-engine",
					"layer", "worker",
					"error", err.Error(),
				)
			}
		}
	}
}

func (w *WorkerApp) runOutboxCycle(ctx context.Context, now time.Time) {
	logger := w.shared.logger
	if err := w.outbox.agent.RunOnce(ctx, now); err != nil {
		logger.Error("agent outbox cycle failed",
			"event", "outbox_cycle_failed",
			"module", "substrate/agent-engine",
			"layer", "worker",
			"error", err.Error(),
		)
	}
	if err := w.outbox.environment.RunOnce(ctx, now); err != nil {
		logger.Error("environment outbox cycle failed",
			"event", "outbox_cycle_failed",
			"module", "substrate/environment-service",
			"layer", "worker",
			"error", err.Error(),
		)
	}
	if err := w.outbox.sponsor.RunOnce(ctx, now); err != nil {
		logger.Error("sponsor outbox cycle failed",
			"event", "outbox_cycle_failed",
			"module", "substrate/sponsor-engine",
			"layer", "worker",
			"error", err.Error(),
		)
	}
}

// Close releases the database connection pool.
func (w *WorkerApp) Close() error {
	return w.shared.pg.Close()
}

// BuildWorker assembles the background process. The projection consumer's
// bus subscriptions are created here (not in BuildAPI) because only the
// worker process runs the materializer.
func BuildWorker() (*WorkerApp, error) {
	s, err := buildShared()
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	sponsorModule := s.buildSponsorModule()
	projectionModule := s.buildProjectionModule(ctx)

	return &WorkerApp{
		shared:             s,
		outbox:             s.buildOutboxDispatchers(),
		policySweep:        sponsorModule.PolicySweep,
		physicsTick:        sponsorModule.PhysicsTick,
		projectionConsumer: projectionModule.Consumer,
	}, nil
}
