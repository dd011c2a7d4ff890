// Package memory implements the Agent Action Engine's ports.Repository
// in-process, for unit tests that exercise the admission pipeline without a
// database.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/agent-engine/domain/errors"
	"oxsubstrate/contexts/substrate/agent-engine/ports"
	"oxsubstrate/internal/shared/events"
)

// Store is a mutex-guarded in-memory Repository. Transact takes the single
// mutex for the duration of fn, which is sufficient to serialize attempts
// against the same process the way Postgres's row lock serializes attempts
// against the same agent in production.
type Store struct {
	mu sync.Mutex

	agents      map[string]entities.Agent
	capacities  map[string]entities.Capacity
	configs     map[string]entities.Config
	actionLogs  map[string]entities.ActionLog
	logsByIdemp map[string]string // agentID|idempotencyKey -> logID
	eventsByID  map[string]events.Envelope
	outbox      []outboxRow
	environment map[string]entities.EnvironmentSnapshot
	throughput  map[string]int // target|minute -> count
	idCounter   int
}

const idPrefix = "mem-"

type outboxRow struct {
	EventID string
	Topic   string
	Payload []byte
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		agents:      make(map[string]entities.Agent),
		capacities:  make(map[string]entities.Capacity),
		configs:     make(map[string]entities.Config),
		actionLogs:  make(map[string]entities.ActionLog),
		logsByIdemp: make(map[string]string),
		eventsByID:  make(map[string]events.Envelope),
		environment: make(map[string]entities.EnvironmentSnapshot),
		throughput:  make(map[string]int),
	}
}

// SeedEnvironment lets tests install an environment snapshot without going
// through the environment-service context.
func (s *Store) SeedEnvironment(snapshot entities.EnvironmentSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.environment[snapshot.DeploymentTarget] = snapshot
}

// Transact holds the store's mutex for the duration of fn. The store itself
// is passed as tx since there is no separate transactional handle to open.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, s)
}

func (s *Store) GetAgent(_ context.Context, agentID string) (entities.Agent, bool, error) {
	a, ok := s.agents[strings.TrimSpace(agentID)]
	return a, ok, nil
}

func (s *Store) CreateAgent(_ context.Context, agent entities.Agent, capacity entities.Capacity, config entities.Config) error {
	if _, exists := s.agents[agent.AgentID]; exists {
		return domainerrors.ErrIdempotencyConflict
	}
	s.agents[agent.AgentID] = agent
	s.capacities[agent.AgentID] = capacity
	s.configs[agent.AgentID] = config
	return nil
}

func (s *Store) UpdateAgent(_ context.Context, agent entities.Agent) error {
	if _, exists := s.agents[agent.AgentID]; !exists {
		return domainerrors.ErrAgentNotFound
	}
	s.agents[agent.AgentID] = agent
	return nil
}

func (s *Store) GetConfig(_ context.Context, agentID string) (entities.Config, bool, error) {
	c, ok := s.configs[strings.TrimSpace(agentID)]
	return c, ok, nil
}

func (s *Store) SaveConfig(_ context.Context, config entities.Config) error {
	s.configs[config.AgentID] = config
	return nil
}

func (s *Store) FindActionLogByIdempotencyKey(_ context.Context, agentID, idempotencyKey string) (entities.ActionLog, bool, error) {
	logID, ok := s.logsByIdemp[idempotencyIndexKey(agentID, idempotencyKey)]
	if !ok {
		return entities.ActionLog{}, false, nil
	}
	log, ok := s.actionLogs[logID]
	return log, ok, nil
}

func (s *Store) FindEventByID(_ context.Context, eventID string) (events.Envelope, bool, error) {
	env, ok := s.eventsByID[strings.TrimSpace(eventID)]
	return env, ok, nil
}

func (s *Store) LockCapacity(_ context.Context, agentID string) (entities.Capacity, error) {
	c, ok := s.capacities[strings.TrimSpace(agentID)]
	if !ok {
		return entities.Capacity{}, domainerrors.ErrAgentNotFound
	}
	return c, nil
}

func (s *Store) SaveCapacity(_ context.Context, capacity entities.Capacity) error {
	s.capacities[capacity.AgentID] = capacity
	return nil
}

func (s *Store) AllocateCapacity(_ context.Context, agentID string, amount int) (entities.Capacity, error) {
	c, ok := s.capacities[strings.TrimSpace(agentID)]
	if !ok {
		return entities.Capacity{}, domainerrors.ErrAgentNotFound
	}
	c.Balance += amount
	if c.Balance > c.MaxBalance {
		c.Balance = c.MaxBalance
	}
	s.capacities[c.AgentID] = c
	return c, nil
}

func (s *Store) GetEnvironmentSnapshot(_ context.Context, target string) (entities.EnvironmentSnapshot, error) {
	snapshot, ok := s.environment[strings.TrimSpace(target)]
	if !ok {
		return entities.EnvironmentSnapshot{Present: false}, nil
	}
	return snapshot, nil
}

func (s *Store) GetCurrentMinuteThroughput(_ context.Context, target string, minute time.Time) (int, error) {
	return s.throughput[throughputKey(target, minute)], nil
}

func (s *Store) IncrementThroughput(_ context.Context, target string, minute time.Time) error {
	s.throughput[throughputKey(target, minute)]++
	return nil
}

func (s *Store) AppendActionLog(_ context.Context, log entities.ActionLog) error {
	s.actionLogs[log.LogID] = log
	s.logsByIdemp[idempotencyIndexKey(log.AgentID, log.IdempotencyKey)] = log.LogID
	return nil
}

func (s *Store) AppendEvent(_ context.Context, env events.Envelope) error {
	s.eventsByID[env.EventID] = env
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, eventID, topic string, payload []byte) error {
	s.outbox = append(s.outbox, outboxRow{EventID: eventID, Topic: topic, Payload: payload})
	return nil
}

// Now satisfies ports.Clock with the wall clock; tests that need a fixed
// time inject their own ports.Clock instead of relying on the store.
func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

// NewID satisfies ports.IDGenerator with a monotonic counter rather than a
// random UUID, so test assertions on generated IDs stay deterministic.
func (s *Store) NewID(_ context.Context) (string, error) {
	s.idCounter++
	return idPrefix + strconv.Itoa(s.idCounter), nil
}

func idempotencyIndexKey(agentID, idempotencyKey string) string {
	return strings.TrimSpace(agentID) + "|" + strings.TrimSpace(idempotencyKey)
}

func throughputKey(target string, minute time.Time) string {
	return strings.TrimSpace(target) + "|" + minute.UTC().Format(time.RFC3339)
}
