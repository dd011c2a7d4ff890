// Package postgresadapter is the Environment Service's gorm-backed
// ports.Repository.
package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/environment-service/domain/entities"
	"oxsubstrate/internal/shared/events"
	"oxsubstrate/internal/shared/outbox"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository implements ports.Repository over a *gorm.DB.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRepository builds a Repository.
func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) GetState(ctx context.Context, target string) (entities.State, bool, error) {
	var row stateModel
	err := r.db.WithContext(ctx).Where("deployment_target = ?", strings.TrimSpace(target)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.State{}, false, nil
		}
		return entities.State{}, false, err
	}
	return row.toEntity(), true, nil
}

// SaveState upserts the constraint row for a deployment target.
func (r *Repository) SaveState(ctx context.Context, state entities.State) error {
	row := stateModelFromEntity(state)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "deployment_target"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"cognition_availability", "max_throughput_per_minute", "throttle_factor",
				"window_start", "window_end", "reason", "imposed_at",
			}),
		}).
		Create(row).Error
}

func (r *Repository) DeleteState(ctx context.Context, target string) error {
	return r.db.WithContext(ctx).
		Where("deployment_target = ?", strings.TrimSpace(target)).
		Delete(&stateModel{}).Error
}

func (r *Repository) ListStates(ctx context.Context) ([]entities.State, error) {
	var rows []stateModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.State, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// RecordThroughput is a no-op: the Agent Action Engine writes the
// minute-bucket counter table and this repository only reads it
// (GetThroughput), so delta is accepted for interface symmetry with the
// in-memory test double but ignored here (spec's EnvironmentHistory view is
// read-only over the engine's write path).
func (r *Repository) RecordThroughput(ctx context.Context, target string, minute time.Time, delta int) error {
	return nil
}

func (r *Repository) GetThroughput(ctx context.Context, target string, minute time.Time) (int, error) {
	var row throughputModel
	err := r.db.WithContext(ctx).
		Where("deployment_target = ? AND minute_bucket = ?", strings.TrimSpace(target), minute.UTC().Truncate(time.Minute)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Count, nil
}

func (r *Repository) CreateLocality(ctx context.Context, locality entities.Locality) error {
	return r.db.WithContext(ctx).Create(localityModelFromEntity(locality)).Error
}

func (r *Repository) GetLocality(ctx context.Context, localityID string) (entities.Locality, bool, error) {
	var row localityModel
	err := r.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(localityID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Locality{}, false, nil
		}
		return entities.Locality{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListLocalities(ctx context.Context, target string) ([]entities.Locality, error) {
	var rows []localityModel
	if err := r.db.WithContext(ctx).Where("deployment_target = ?", strings.TrimSpace(target)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.Locality, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) UpsertMembership(ctx context.Context, membership entities.LocalityMembership) error {
	row := membershipModelFromEntity(membership)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "locality_id"}, {Name: "agent_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"weight"}),
		}).
		Create(row).Error
}

func (r *Repository) ListMemberships(ctx context.Context, localityID string) ([]entities.LocalityMembership, error) {
	var rows []localityMembershipModel
	if err := r.db.WithContext(ctx).Where("locality_id = ?", strings.TrimSpace(localityID)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.LocalityMembership, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) AppendEvent(ctx context.Context, env events.Envelope) error {
	row := eventModelFromEnvelope(env)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *Repository) AppendOutbox(ctx context.Context, eventID, topic string, payload []byte) error {
	now := time.Now().UTC()
	row := outboxModel{
		OutboxID:      strings.TrimSpace(eventID),
		Topic:         strings.TrimSpace(topic),
		Payload:       payload,
		Status:        outboxStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "outbox_id"}}, DoNothing: true}).
		Create(&row).Error
}

// ListDue, Delete, and MarkFailed implement internal/shared/outbox.Store,
// letting cmd/worker drain this context's outbox through the shared
// dispatcher rather than a bespoke per-context relay loop.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.Message, error) {
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", outboxStatusPending, now.UTC()).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]outbox.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, outbox.Message{
			EventID:       row.OutboxID,
			Topic:         row.Topic,
			Payload:       row.Payload,
			Attempts:      row.Attempts,
			NextAttemptAt: row.NextAttemptAt,
			LastError:     row.LastError,
		})
	}
	return out, nil
}

func (r *Repository) Delete(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).Where("outbox_id = ?", strings.TrimSpace(eventID)).Delete(&outboxModel{}).Error
}

func (r *Repository) MarkFailed(ctx context.Context, eventID string, attempts int, nextAttemptAt time.Time, lastError string) error {
	return r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(eventID)).
		Updates(map[string]any{
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt.UTC(),
			"last_error":      lastError,
		}).Error
}
