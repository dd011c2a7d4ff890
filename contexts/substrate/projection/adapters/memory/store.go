// Package memory is an in-memory ports.Repository used by tests and the
// in-process module wiring.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"oxsubstrate/contexts/substrate/projection/domain/entities"
)

const idPrefix = "mem-"

// Store is a mutex-guarded ports.Repository plus ports.Clock/IDGenerator.
type Store struct {
	mu sync.Mutex

	liveEvents map[string]entities.LiveEvent
	sessions   map[string]entities.Session
	sessionEvents map[string]entities.SessionEvent // keyed by source_event_id
	activity   map[string]entities.AgentActivity   // keyed by deployment_target|agent_id
	patterns   map[string]entities.AgentPattern    // keyed by agent_id|window_start

	artifacts     map[string]entities.Artifact             // keyed by source_event_id
	implications  map[string]entities.ArtifactImplication  // keyed by source_event_id
	capacityTimeline map[string]entities.CapacityTimelineEntry
	environmentHistory map[string]entities.EnvironmentHistoryEntry
	environmentRejections map[string]entities.EnvironmentRejection
	narrativeFrames map[string]entities.NarrativeFrame

	errors      map[string]entities.ErrorInboxEntry
	deadLetters map[string]entities.DeadLetterEntry

	idCounter int
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{
		liveEvents:            make(map[string]entities.LiveEvent),
		sessions:              make(map[string]entities.Session),
		sessionEvents:         make(map[string]entities.SessionEvent),
		activity:              make(map[string]entities.AgentActivity),
		patterns:              make(map[string]entities.AgentPattern),
		artifacts:             make(map[string]entities.Artifact),
		implications:          make(map[string]entities.ArtifactImplication),
		capacityTimeline:      make(map[string]entities.CapacityTimelineEntry),
		environmentHistory:    make(map[string]entities.EnvironmentHistoryEntry),
		environmentRejections: make(map[string]entities.EnvironmentRejection),
		narrativeFrames:       make(map[string]entities.NarrativeFrame),
		errors:                make(map[string]entities.ErrorInboxEntry),
		deadLetters:           make(map[string]entities.DeadLetterEntry),
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

func (s *Store) UpsertLiveEvent(ctx context.Context, event entities.LiveEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.liveEvents[event.SourceEventID]; exists {
		return false, nil
	}
	s.liveEvents[event.SourceEventID] = event
	return true, nil
}

func (s *Store) ListActiveSessions(ctx context.Context, deploymentTarget string) ([]entities.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Session, 0)
	for _, session := range s.sessions {
		if session.DeploymentTarget == deploymentTarget && session.IsActive {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *Store) SaveSession(ctx context.Context, session entities.Session) (entities.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.SessionID] = session
	return session, nil
}

func (s *Store) RecordSessionEvent(ctx context.Context, sessionEvent entities.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessionEvents[sessionEvent.SourceEventID]; exists {
		return nil
	}
	s.sessionEvents[sessionEvent.SourceEventID] = sessionEvent
	return nil
}

func (s *Store) RecordAgentActivity(ctx context.Context, activity entities.AgentActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := activityKey(activity.DeploymentTarget, activity.AgentID)
	if existing, ok := s.activity[key]; ok && existing.LastActedAt.After(activity.LastActedAt) {
		return nil
	}
	s.activity[key] = activity
	return nil
}

func (s *Store) ListRecentActors(ctx context.Context, deploymentTarget string, since time.Time, excludeAgentID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0)
	for _, a := range s.activity {
		if a.DeploymentTarget != deploymentTarget || a.AgentID == excludeAgentID {
			continue
		}
		if !a.LastActedAt.Before(since) {
			out = append(out, a.AgentID)
		}
	}
	return out, nil
}

func (s *Store) GetPattern(ctx context.Context, agentID string, windowStart time.Time) (entities.AgentPattern, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pattern, found := s.patterns[patternKey(agentID, windowStart)]
	return pattern, found, nil
}

func (s *Store) SavePattern(ctx context.Context, pattern entities.AgentPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[patternKey(pattern.AgentID, pattern.WindowStart)] = pattern
	return nil
}

func (s *Store) SaveArtifact(ctx context.Context, artifact entities.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.artifacts[artifact.SourceEventID]; exists {
		return nil
	}
	s.artifacts[artifact.SourceEventID] = artifact
	return nil
}

func (s *Store) SaveArtifactImplication(ctx context.Context, implication entities.ArtifactImplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.implications[implication.SourceEventID]; exists {
		return nil
	}
	s.implications[implication.SourceEventID] = implication
	return nil
}

func (s *Store) SaveCapacityTimelineEntry(ctx context.Context, entry entities.CapacityTimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.capacityTimeline[entry.SourceEventID]; exists {
		return nil
	}
	s.capacityTimeline[entry.SourceEventID] = entry
	return nil
}

func (s *Store) SaveEnvironmentHistoryEntry(ctx context.Context, entry entities.EnvironmentHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.environmentHistory[entry.SourceEventID]; exists {
		return nil
	}
	s.environmentHistory[entry.SourceEventID] = entry
	return nil
}

func (s *Store) SaveEnvironmentRejection(ctx context.Context, rejection entities.EnvironmentRejection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.environmentRejections[rejection.SourceEventID]; exists {
		return nil
	}
	s.environmentRejections[rejection.SourceEventID] = rejection
	return nil
}

func (s *Store) SaveNarrativeFrame(ctx context.Context, frame entities.NarrativeFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.narrativeFrames[frame.SourceEventID]; exists {
		return nil
	}
	s.narrativeFrames[frame.SourceEventID] = frame
	return nil
}

func (s *Store) RecordError(ctx context.Context, fingerprint, source, sampleDetail string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, found := s.errors[fingerprint]
	if !found {
		entry = entities.ErrorInboxEntry{Fingerprint: fingerprint, Source: source, FirstSeenAt: at}
	}
	entry.Count++
	entry.SampleDetail = sampleDetail
	entry.LastSeenAt = at
	s.errors[fingerprint] = entry
	return nil
}

func (s *Store) ListErrors(ctx context.Context) ([]entities.ErrorInboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.ErrorInboxEntry, 0, len(s.errors))
	for _, entry := range s.errors {
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) SaveDeadLetter(ctx context.Context, entry entities.DeadLetterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.deadLetters[entry.SourceEventID]; exists {
		return nil
	}
	s.deadLetters[entry.SourceEventID] = entry
	return nil
}

func (s *Store) ListDeadLetters(ctx context.Context) ([]entities.DeadLetterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.DeadLetterEntry, 0, len(s.deadLetters))
	for _, entry := range s.deadLetters {
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) MarkDeadLetterRedriven(ctx context.Context, sourceEventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, found := s.deadLetters[sourceEventID]
	if !found {
		return nil
	}
	entry.Redriven = true
	s.deadLetters[sourceEventID] = entry
	return nil
}

// Sessions exposes a snapshot for assertions in tests.
func (s *Store) Sessions() []entities.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

// Artifacts exposes a snapshot for assertions in tests.
func (s *Store) Artifacts() []entities.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Artifact, 0, len(s.artifacts))
	for _, artifact := range s.artifacts {
		out = append(out, artifact)
	}
	return out
}

func activityKey(deploymentTarget, agentID string) string {
	return deploymentTarget + "|" + agentID
}

func patternKey(agentID string, windowStart time.Time) string {
	return agentID + "|" + windowStart.UTC().Format(time.RFC3339)
}
