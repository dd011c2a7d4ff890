// Package memory is an in-memory ports.Repository used by tests and the
// in-process module wiring.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"oxsubstrate/contexts/substrate/environment-service/domain/entities"
	"oxsubstrate/internal/shared/events"
)

const idPrefix = "mem-"

type outboxRow struct {
	EventID string
	Topic   string
	Payload []byte
}

// Store is a mutex-guarded ports.Repository plus ports.Clock/IDGenerator.
type Store struct {
	mu sync.Mutex

	states      map[string]entities.State
	throughput  map[string]int
	localities  map[string]entities.Locality
	memberships map[string][]entities.LocalityMembership

	eventsByID map[string]events.Envelope
	outbox     []outboxRow

	idCounter int
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{
		states:      make(map[string]entities.State),
		throughput:  make(map[string]int),
		localities:  make(map[string]entities.Locality),
		memberships: make(map[string][]entities.LocalityMembership),
		eventsByID:  make(map[string]events.Envelope),
	}
}

// Now returns wall-clock time, satisfying ports.Clock.
func (s *Store) Now() time.Time { return time.Now().UTC() }

// NewID mints a monotonic, deterministic identifier for tests.
func (s *Store) NewID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idCounter++
	return idPrefix + strconv.Itoa(s.idCounter), nil
}

func (s *Store) GetState(ctx context.Context, target string) (entities.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, found := s.states[target]
	return state, found, nil
}

func (s *Store) SaveState(ctx context.Context, state entities.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.DeploymentTarget] = state
	return nil
}

func (s *Store) DeleteState(ctx context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, target)
	return nil
}

func (s *Store) ListStates(ctx context.Context) ([]entities.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.State, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, state)
	}
	return out, nil
}

func (s *Store) RecordThroughput(ctx context.Context, target string, minute time.Time, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := throughputKey(target, minute)
	s.throughput[key] += delta
	return nil
}

func (s *Store) GetThroughput(ctx context.Context, target string, minute time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.throughput[throughputKey(target, minute)], nil
}

func (s *Store) CreateLocality(ctx context.Context, locality entities.Locality) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localities[locality.ID] = locality
	return nil
}

func (s *Store) GetLocality(ctx context.Context, localityID string) (entities.Locality, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	locality, found := s.localities[localityID]
	return locality, found, nil
}

func (s *Store) ListLocalities(ctx context.Context, target string) ([]entities.Locality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Locality, 0)
	for _, locality := range s.localities {
		if locality.DeploymentTarget == target {
			out = append(out, locality)
		}
	}
	return out, nil
}

func (s *Store) UpsertMembership(ctx context.Context, membership entities.LocalityMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.memberships[membership.LocalityID]
	for i, existing := range list {
		if existing.AgentID == membership.AgentID {
			list[i] = membership
			s.memberships[membership.LocalityID] = list
			return nil
		}
	}
	s.memberships[membership.LocalityID] = append(list, membership)
	return nil
}

func (s *Store) ListMemberships(ctx context.Context, localityID string) ([]entities.LocalityMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.LocalityMembership, len(s.memberships[localityID]))
	copy(out, s.memberships[localityID])
	return out, nil
}

func (s *Store) AppendEvent(ctx context.Context, env events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.eventsByID[env.EventID]; exists {
		return nil
	}
	s.eventsByID[env.EventID] = env
	return nil
}

func (s *Store) AppendOutbox(ctx context.Context, eventID, topic string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.outbox {
		if row.EventID == eventID {
			return nil
		}
	}
	s.outbox = append(s.outbox, outboxRow{EventID: eventID, Topic: topic, Payload: payload})
	return nil
}

func throughputKey(target string, minute time.Time) string {
	return target + "|" + minute.UTC().Truncate(time.Minute).Format(time.RFC3339)
}
