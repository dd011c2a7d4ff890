// Package ports declares the Read API's dependency boundary.
package ports

import (
	"context"
	"time"

	"oxsubstrate/contexts/substrate/read-api/domain/entities"
)

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Repository is a read-only cross-context query surface over the
// materializer's projection tables, plus the write path for the
// always-written ObserverAccessLog.
type Repository interface {
	ListLiveEvents(ctx context.Context, deploymentTarget string, limit int) ([]entities.LiveEventView, error)
	ListSessions(ctx context.Context, deploymentTarget string, activeOnly bool) ([]entities.SessionView, error)
	ListArtifacts(ctx context.Context, agentID string, limit int) ([]entities.ArtifactView, error)

	// ListPerceivedBy returns artifacts implicating subjectAgentID, each
	// carrying the issuing agent id(s) that named them — the backing query
	// for GET /ox/agents/:id/perceived-by.
	ListPerceivedBy(ctx context.Context, subjectAgentID string, limit int) ([]entities.ArtifactView, error)

	ListErrorInbox(ctx context.Context) ([]entities.ErrorInboxView, error)
	ListDeadLetters(ctx context.Context) ([]entities.DeadLetterView, error)

	// RedriveDeadLetter marks a parked envelope as redriven and returns the
	// topic and raw payload it was originally routed with, so the caller can
	// republish it onto the bus. A sourceEventID that is unknown or already
	// redriven returns an error.
	RedriveDeadLetter(ctx context.Context, sourceEventID string) (topic string, payload []byte, err error)

	RecordAccessLog(ctx context.Context, log entities.AccessLog) error
}

// RateLimiter enforces the per-(endpoint, observer) token bucket (spec
// §4.6).
type RateLimiter interface {
	Allow(endpoint, observerID string, requestsPerMinute int) bool
}

// Publisher republishes a redriven dead letter back onto the event bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}
