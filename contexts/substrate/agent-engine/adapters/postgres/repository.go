// Package postgresadapter is the Agent Action Engine's gorm-backed
// ports.Repository, including the transactional unit-of-work used by the
// admission pipeline.
package postgresadapter

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/agent-engine/domain/errors"
	"oxsubstrate/contexts/substrate/agent-engine/ports"
	"oxsubstrate/internal/shared/events"
	"oxsubstrate/internal/shared/outbox"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository implements ports.Repository over a *gorm.DB. A Repository
// obtained via Transact wraps the transaction's *gorm.DB so every method
// called on the tx-scoped instance participates in the same transaction.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRepository builds the top-level, non-transactional Repository.
func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// Transact opens a serializable transaction and hands the caller a
// tx-scoped Repository. Every write the admission pipeline performs during
// one attempt goes through this single transaction (spec §5).
func (r *Repository) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(ctx, &Repository{db: gtx, logger: r.logger})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (r *Repository) GetAgent(ctx context.Context, agentID string) (entities.Agent, bool, error) {
	var row agentModel
	err := r.db.WithContext(ctx).Where("agent_id = ?", strings.TrimSpace(agentID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Agent{}, false, nil
		}
		return entities.Agent{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) CreateAgent(ctx context.Context, agent entities.Agent, capacity entities.Capacity, config entities.Config) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(agentModelFromEntity(agent)).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrIdempotencyConflict
			}
			return err
		}
		if err := tx.Create(capacityModelFromEntity(capacity)).Error; err != nil {
			return err
		}
		if err := tx.Create(configModelFromEntity(config)).Error; err != nil {
			return err
		}
		return nil
	})
}

func (r *Repository) UpdateAgent(ctx context.Context, agent entities.Agent) error {
	result := r.db.WithContext(ctx).Model(&agentModel{}).
		Where("agent_id = ?", agent.AgentID).
		Updates(agentUpdatesFromEntity(agent))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAgentNotFound
	}
	return nil
}

func (r *Repository) GetConfig(ctx context.Context, agentID string) (entities.Config, bool, error) {
	var row configModel
	err := r.db.WithContext(ctx).Where("agent_id = ?", strings.TrimSpace(agentID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Config{}, false, nil
		}
		return entities.Config{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveConfig(ctx context.Context, config entities.Config) error {
	row := configModelFromEntity(config)
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *Repository) FindActionLogByIdempotencyKey(ctx context.Context, agentID, idempotencyKey string) (entities.ActionLog, bool, error) {
	var row actionLogModel
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND idempotency_key = ?", strings.TrimSpace(agentID), strings.TrimSpace(idempotencyKey)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ActionLog{}, false, nil
		}
		return entities.ActionLog{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) FindEventByID(ctx context.Context, eventID string) (events.Envelope, bool, error) {
	var row eventModel
	err := r.db.WithContext(ctx).Where("event_id = ?", strings.TrimSpace(eventID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return events.Envelope{}, false, nil
		}
		return events.Envelope{}, false, err
	}
	return row.toEnvelope(), true, nil
}

// LockCapacity performs SELECT ... FOR UPDATE so concurrent attempts
// against the same agent serialize on this row (spec §5).
func (r *Repository) LockCapacity(ctx context.Context, agentID string) (entities.Capacity, error) {
	var row capacityModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("agent_id = ?", strings.TrimSpace(agentID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Capacity{}, domainerrors.ErrAgentNotFound
		}
		return entities.Capacity{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveCapacity(ctx context.Context, capacity entities.Capacity) error {
	row := capacityModelFromEntity(capacity)
	return r.db.WithContext(ctx).Model(&capacityModel{}).
		Where("agent_id = ?", row.AgentID).
		Updates(map[string]any{
			"balance":            row.Balance,
			"max_balance":        row.MaxBalance,
			"regen_per_hour":     row.RegenPerHour,
			"last_reconciled_at": row.LastReconciledAt,
		}).Error
}

func (r *Repository) AllocateCapacity(ctx context.Context, agentID string, amount int) (entities.Capacity, error) {
	var result entities.Capacity
	err := r.Transact(ctx, func(ctx context.Context, tx ports.Repository) error {
		capacity, err := tx.LockCapacity(ctx, agentID)
		if err != nil {
			return err
		}
		capacity.Balance += amount
		if capacity.Balance > capacity.MaxBalance {
			capacity.Balance = capacity.MaxBalance
		}
		if err := tx.SaveCapacity(ctx, capacity); err != nil {
			return err
		}
		result = capacity
		return nil
	})
	return result, err
}

// GetEnvironmentSnapshot reads the environment-service's physics-config
// table directly, as a read-only cross-context projection (spec §4.3 step
// 4). It never imports environment-service's domain package.
func (r *Repository) GetEnvironmentSnapshot(ctx context.Context, target string) (entities.EnvironmentSnapshot, error) {
	var row environmentStateModel
	err := r.db.WithContext(ctx).
		Table("environment_states").
		Where("deployment_target = ?", strings.TrimSpace(target)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.EnvironmentSnapshot{Present: false}, nil
		}
		return entities.EnvironmentSnapshot{}, err
	}
	return row.toSnapshot(), nil
}

func (r *Repository) GetCurrentMinuteThroughput(ctx context.Context, target string, minute time.Time) (int, error) {
	var row throughputModel
	err := r.db.WithContext(ctx).
		Where("deployment_target = ? AND minute_bucket = ?", strings.TrimSpace(target), minute.UTC()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Count, nil
}

func (r *Repository) IncrementThroughput(ctx context.Context, target string, minute time.Time) error {
	row := throughputModel{
		DeploymentTarget: strings.TrimSpace(target),
		MinuteBucket:     minute.UTC(),
		Count:            1,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "deployment_target"}, {Name: "minute_bucket"}},
			DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("agent_throughput_counters.count + 1")}),
		}).
		Create(&row).Error
}

func (r *Repository) AppendActionLog(ctx context.Context, log entities.ActionLog) error {
	return r.db.WithContext(ctx).Create(actionLogModelFromEntity(log)).Error
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
