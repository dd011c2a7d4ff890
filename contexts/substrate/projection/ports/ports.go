// Package ports declares the Projection Materializer's dependency boundary.
package ports

import (
	"context"
	"time"

	"oxsubstrate/contexts/substrate/projection/domain/entities"
)

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints identifiers for new projection rows.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Repository is the materializer's read-model write surface. Every method
// is expected to be idempotent on the row's natural key (source_event_id,
// or session_id for session upserts) so at-least-once delivery from the
// outbox dispatcher never duplicates a projection.
type Repository interface {
	// UpsertLiveEvent inserts the live-feed row for this source_event_id,
	// reporting whether the row was newly created. A false return means the
	// event was already materialized (at-least-once redelivery) and the
	// caller must skip every other fold for it to keep materialize(E) idempotent.
	UpsertLiveEvent(ctx context.Context, event entities.LiveEvent) (bool, error)

	// ListActiveSessions returns is_active sessions for a deployment target,
	// for the session-derivation heuristic to filter by recency.
	ListActiveSessions(ctx context.Context, deploymentTarget string) ([]entities.Session, error)
	SaveSession(ctx context.Context, session entities.Session) (entities.Session, error)
	RecordSessionEvent(ctx context.Context, sessionEvent entities.SessionEvent) error

	// RecordAgentActivity upserts the latest-seen marker used to decide
	// whether another agent acted recently on a deployment target.
	RecordAgentActivity(ctx context.Context, activity entities.AgentActivity) error
	ListRecentActors(ctx context.Context, deploymentTarget string, since time.Time, excludeAgentID string) ([]string, error)

	GetPattern(ctx context.Context, agentID string, windowStart time.Time) (entities.AgentPattern, bool, error)
	SavePattern(ctx context.Context, pattern entities.AgentPattern) error

	SaveArtifact(ctx context.Context, artifact entities.Artifact) error
	SaveArtifactImplication(ctx context.Context, implication entities.ArtifactImplication) error

	SaveCapacityTimelineEntry(ctx context.Context, entry entities.CapacityTimelineEntry) error
	SaveEnvironmentHistoryEntry(ctx context.Context, entry entities.EnvironmentHistoryEntry) error
	SaveEnvironmentRejection(ctx context.Context, rejection entities.EnvironmentRejection) error
	SaveNarrativeFrame(ctx context.Context, frame entities.NarrativeFrame) error

	// RecordError upserts a bounded fingerprint counter for an
	// infrastructure-class error, incrementing count and refreshing the
	// most-recent sample rather than appending a row per occurrence.
	RecordError(ctx context.Context, fingerprint, source, sampleDetail string, at time.Time) error
	ListErrors(ctx context.Context) ([]entities.ErrorInboxEntry, error)

	// SaveDeadLetter parks an envelope the consumer could not project after
	// exhausting its retry budget.
	SaveDeadLetter(ctx context.Context, entry entities.DeadLetterEntry) error
	ListDeadLetters(ctx context.Context) ([]entities.DeadLetterEntry, error)
	MarkDeadLetterRedriven(ctx context.Context, sourceEventID string) error
}
