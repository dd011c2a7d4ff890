// Package outbox implements the transactional-outbox dispatch loop shared by
// every context that publishes events: rows are inserted in the same
// database commit as the domain write, then drained asynchronously by
// Dispatcher so broker unavailability at commit time never loses an event.
package outbox

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Message is a pending publish, persisted in the same transaction as the
// domain event it carries.
type Message struct {
	EventID       string
	Topic         string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
}

// Store is the persistence port the dispatcher drains.
type Store interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]Message, error)
	Delete(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, attempts int, nextAttemptAt time.Time, lastError string) error
}

// Publisher delivers a message to its topic. Swappable for a real broker;
// see internal/platform/messaging for the in-process implementation used by
// default.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// MaxBackoff bounds the exponential retry delay.
const MaxBackoff = 10 * time.Minute

// Backoff returns an exponential delay with jitter for the given attempt
// count, capped at MaxBackoff.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	base := time.Second * time.Duration(1<<uint(min(attempts, 10)))
	if base > MaxBackoff {
		base = MaxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base/2 + jitter
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Dispatcher drains due outbox rows on a fixed cadence.
type Dispatcher struct {
	Store     Store
	Publisher Publisher
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce processes one batch of due messages. Reentrant-safe: running it
// concurrently across replicas only risks a duplicate publish, which the
// downstream materializer already tolerates via source_event_id dedup.
func (d Dispatcher) RunOnce(ctx context.Context, now time.Time) error {
	logger := resolveLogger(d.Logger)
	limit := d.BatchSize
	if limit <= 0 {
		limit = 100
	}

	due, err := d.Store.ListDue(ctx, now, limit)
	if err != nil {
		logger.Error("outbox list due failed",
			"event", "outbox_list_due_failed",
			"module", "shared/outbox",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, msg := range due {
		if err := d.Publisher.Publish(ctx, msg.Topic, msg.Payload); err != nil {
			attempts := msg.Attempts + 1
			next := now.Add(Backoff(attempts))
			logger.Error("outbox publish failed, scheduling retry",
				"event", "outbox_publish_failed",
				"module", "shared/outbox",
				"layer", "worker",
				"event_id", msg.EventID,
				"topic", msg.Topic,
				"attempts", attempts,
				"next_attempt_at", next,
				"error", err.Error(),
			)
			if markErr := d.Store.MarkFailed(ctx, msg.EventID, attempts, next, err.Error()); markErr != nil {
				logger.Error("outbox mark failed failed",
					"event", "outbox_mark_failed_failed",
					"module", "shared/outbox",
					"layer", "worker",
					"event_id", msg.EventID,
					"error", markErr.Error(),
				)
				return markErr
			}
			continue
		}
		if err := d.Store.Delete(ctx, msg.EventID); err != nil {
			logger.Error("outbox delete after publish failed",
				"event", "outbox_delete_failed",
				"module", "shared/outbox",
				"layer", "worker",
				"event_id", msg.EventID,
				"error", err.Error(),
			)
			return err
		}
	}
	if len(due) > 0 {
		logger.Info("outbox dispatch cycle completed",
			"event", "outbox_dispatch_completed",
			"module", "shared/outbox",
			"layer", "worker",
			"dispatched_count", len(due),
		)
	}
	return nil
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
