// Package memory is an in-memory ports.Repository used by tests and the
// in-process module wiring. Unlike the other contexts' memory stores it is
// pre-seeded via the Seed* helpers rather than written to through its own
// interface, since the Read API's Repository is read-only over tables it
// does not own.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"oxsubstrate/contexts/substrate/read-api/domain/entities"
	"oxsubstrate/contexts/substrate/read-api/domain/errors"
)

// Store is a mutex-guarded ports.Repository plus ports.Clock.
type Store struct {
	mu sync.Mutex

	liveEvents  []entities.LiveEventView
	sessions    []entities.SessionView
	artifacts   []entities.ArtifactView
	errors      []entities.ErrorInboxView
	deadLetters []entities.DeadLetterView
	accessLogs  []entities.AccessLog
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Now returns wall-clock time, satisfying ports.Clock.
func (s *Store) Now() time.Time { return time.Now().UTC() }

// SeedLiveEvents replaces the live-event fixture data.
func (s *Store) SeedLiveEvents(rows []entities.LiveEventView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveEvents = rows
}

// SeedSessions replaces the session fixture data.
func (s *Store) SeedSessions(rows []entities.SessionView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = rows
}

// SeedArtifacts replaces the artifact fixture data.
func (s *Store) SeedArtifacts(rows []entities.ArtifactView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = rows
}

// SeedErrorInbox replaces the error-inbox fixture data.
func (s *Store) SeedErrorInbox(rows []entities.ErrorInboxView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = rows
}

// SeedDeadLetters replaces the dead-letter fixture data.
func (s *Store) SeedDeadLetters(rows []entities.DeadLetterView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLetters = rows
}

func (s *Store) ListLiveEvents(ctx context.Context, deploymentTarget string, limit int) ([]entities.LiveEventView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.LiveEventView, 0, len(s.liveEvents))
	for _, row := range s.liveEvents {
		if deploymentTarget != "" && row.DeploymentTarget != deploymentTarget {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return capRows(out, limit), nil
}

func (s *Store) ListSessions(ctx context.Context, deploymentTarget string, activeOnly bool) ([]entities.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.SessionView, 0, len(s.sessions))
	for _, row := range s.sessions {
		if deploymentTarget != "" && row.DeploymentTarget != deploymentTarget {
			continue
		}
		if activeOnly && !row.IsActive {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) ListArtifacts(ctx context.Context, agentID string, limit int) ([]entities.ArtifactView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.ArtifactView, 0, len(s.artifacts))
	for _, row := range s.artifacts {
		if agentID != "" && row.AgentID != agentID {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return capRows(out, limit), nil
}

func (s *Store) ListPerceivedBy(ctx context.Context, subjectAgentID string, limit int) ([]entities.ArtifactView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.ArtifactView, 0)
	for _, row := range s.artifacts {
		if row.SubjectAgentID != subjectAgentID {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return capRows(out, limit), nil
}

func (s *Store) ListErrorInbox(ctx context.Context) ([]entities.ErrorInboxView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.ErrorInboxView, len(s.errors))
	copy(out, s.errors)
	return out, nil
}

func (s *Store) ListDeadLetters(ctx context.Context) ([]entities.DeadLetterView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.DeadLetterView, 0, len(s.deadLetters))
	for _, row := range s.deadLetters {
		if row.Redriven {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) RedriveDeadLetter(ctx context.Context, sourceEventID string) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.deadLetters {
		if row.SourceEventID != sourceEventID {
			continue
		}
		if row.Redriven {
			return "", nil, errors.ErrAlreadyRedriven
		}
		s.deadLetters[i].Redriven = true
		return row.Topic, row.Payload, nil
	}
	return "", nil, errors.ErrNotFound
}

func (s *Store) RecordAccessLog(ctx context.Context, log entities.AccessLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessLogs = append(s.accessLogs, log)
	return nil
}

// AccessLogs exposes a snapshot for assertions in tests.
func (s *Store) AccessLogs() []entities.AccessLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.AccessLog, len(s.accessLogs))
	copy(out, s.accessLogs)
	return out
}

func capRows[T any](rows []T, limit int) []T {
	if limit <= 0 || limit >= len(rows) {
		return rows
	}
	return rows[:limit]
}
