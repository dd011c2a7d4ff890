// Package postgresadapter is the Sponsor Influence Engine's gorm-backed
// ports.Repository.
package postgresadapter

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	"oxsubstrate/contexts/substrate/sponsor-engine/ports"
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

// NewRepository builds the top-level, non-transactional Repository.
func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// Transact opens a serializable transaction so a credit allocation's
// wallet-decrement and agent-increment commit atomically (spec §4.4
// conservation invariant).
func (r *Repository) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(ctx, &Repository{db: gtx, logger: r.logger})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (r *Repository) GetWallet(ctx context.Context, sponsorID string) (entities.SponsorWallet, bool, error) {
	var row walletModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sponsor_id = ?", strings.TrimSpace(sponsorID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.SponsorWallet{}, false, nil
		}
		return entities.SponsorWallet{}, false, err
	}
	return entities.SponsorWallet{SponsorID: row.SponsorID, Balance: row.Balance}, true, nil
}

func (r *Repository) SaveWallet(ctx context.Context, wallet entities.SponsorWallet) error {
	row := walletModel{SponsorID: wallet.SponsorID, Balance: wallet.Balance}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sponsor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance"}),
		}).
		Create(&row).Error
}

func (r *Repository) GetAgentCreditBalance(ctx context.Context, agentID string) (entities.AgentCreditBalance, bool, error) {
	var row agentCreditBalanceModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("agent_id = ?", strings.TrimSpace(agentID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.AgentCreditBalance{}, false, nil
		}
		return entities.AgentCreditBalance{}, false, err
	}
	return entities.AgentCreditBalance{AgentID: row.AgentID, Balance: row.Balance}, true, nil
}

func (r *Repository) SaveAgentCreditBalance(ctx context.Context, balance entities.AgentCreditBalance) error {
	row := agentCreditBalanceModel{AgentID: balance.AgentID, Balance: balance.Balance}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance"}),
		}).
		Create(&row).Error
}

func (r *Repository) AppendTransaction(ctx context.Context, tx entities.CreditTransaction) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "transaction_id"}}, DoNothing: true}).
		Create(transactionModelFromEntity(tx)).Error
}

func (r *Repository) FindTransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (entities.CreditTransaction, bool, error) {
	var row creditTransactionModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", strings.TrimSpace(idempotencyKey)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.CreditTransaction{}, false, nil
		}
		return entities.CreditTransaction{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) CreatePressure(ctx context.Context, pressure entities.Pressure) error {
	return r.db.WithContext(ctx).Create(pressureModelFromEntity(pressure)).Error
}

func (r *Repository) GetPressure(ctx context.Context, pressureID string) (entities.Pressure, bool, error) {
	var row pressureModel
	err := r.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(pressureID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Pressure{}, false, nil
		}
		return entities.Pressure{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) CancelPressure(ctx context.Context, pressureID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&pressureModel{}).
		Where("id = ?", strings.TrimSpace(pressureID)).
		Update("cancelled_at", at.UTC()).Error
}

func (r *Repository) ListActivePressures(ctx context.Context, target string, asOf time.Time) ([]entities.Pressure, error) {
	var rows []pressureModel
	err := r.db.WithContext(ctx).
		Where("target_deployment = ? AND cancelled_at IS NULL AND expires_at > ?", strings.TrimSpace(target), asOf.UTC()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entities.Pressure, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) AppendInterference(ctx context.Context, event entities.InterferenceEvent) error {
	return r.db.WithContext(ctx).Create(interferenceModelFromEntity(event)).Error
}

func (r *Repository) ListDuePolicies(ctx context.Context, now time.Time) ([]entities.Policy, error) {
	var rows []policyModel
	err := r.db.WithContext(ctx).
		Where("active = true AND (last_run_at IS NULL OR last_run_at <= ?)", now.Add(0)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entities.Policy, 0, len(rows))
	for _, row := range rows {
		policy := row.toEntity()
		if policy.DueForRun(now) {
			out = append(out, policy)
		}
	}
	return out, nil
}

func (r *Repository) MarkPolicyRan(ctx context.Context, policyID string, ranAt time.Time) error {
	return r.db.WithContext(ctx).Model(&policyModel{}).
		Where("id = ?", strings.TrimSpace(policyID)).
		Update("last_run_at", ranAt.UTC()).Error
}

func (r *Repository) AppendPolicyRunLog(ctx context.Context, log entities.PolicyRunLog) (bool, error) {
	row := policyRunLogModelFromEntity(log)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "policy_id"}, {Name: "tick_id"}, {Name: "agent_id"}},
			DoNothing: true,
		}).
		Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
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
