// Package postgresadapter is the Projection Materializer's gorm-backed
// ports.Repository.
package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/projection/domain/entities"

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

// UpsertLiveEvent returns false when source_event_id already had a row,
// the dedup signal ports.Repository documents for redelivery guarding.
func (r *Repository) UpsertLiveEvent(ctx context.Context, event entities.LiveEvent) (bool, error) {
	row := liveEventModel{
		SourceEventID:    event.SourceEventID,
		EventType:        event.EventType,
		DeploymentTarget: event.DeploymentTarget,
		ActorID:          event.ActorID,
		Summary:          event.Summary,
		OccurredAt:       event.OccurredAt.UTC(),
	}
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_id"}}, DoNothing: true}).
		Create(&row)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *Repository) ListActiveSessions(ctx context.Context, deploymentTarget string) ([]entities.Session, error) {
	var rows []sessionModel
	if err := r.db.WithContext(ctx).
		Where("deployment_target = ? AND is_active = ?", strings.TrimSpace(deploymentTarget), true).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) SaveSession(ctx context.Context, session entities.Session) (entities.Session, error) {
	row := sessionModelFromEntity(session)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"deployment_target", "participating_agent_ids", "start_ts", "end_ts",
				"is_active", "derived_topic", "event_count", "action_type_counts",
				"last_event_at", "last_event_agent_id",
			}),
		}).
		Create(row).Error
	if err != nil {
		return entities.Session{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) RecordSessionEvent(ctx context.Context, sessionEvent entities.SessionEvent) error {
	row := sessionEventModel{
		SourceEventID: sessionEvent.SourceEventID,
		SessionID:     sessionEvent.SessionID,
		AgentID:       sessionEvent.AgentID,
		ActionType:    sessionEvent.ActionType,
		TS:            sessionEvent.TS.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *Repository) RecordAgentActivity(ctx context.Context, activity entities.AgentActivity) error {
	row := agentActivityModel{
		DeploymentTarget: activity.DeploymentTarget,
		AgentID:          activity.AgentID,
		LastActionType:   activity.LastActionType,
		LastActedAt:      activity.LastActedAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "deployment_target"}, {Name: "agent_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_action_type", "last_acted_at"}),
		}).
		Create(&row).Error
}

func (r *Repository) ListRecentActors(ctx context.Context, deploymentTarget string, since time.Time, excludeAgentID string) ([]string, error) {
	var rows []agentActivityModel
	if err := r.db.WithContext(ctx).
		Where("deployment_target = ? AND agent_id <> ? AND last_acted_at >= ?",
			strings.TrimSpace(deploymentTarget), strings.TrimSpace(excludeAgentID), since.UTC()).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.AgentID)
	}
	return out, nil
}

func (r *Repository) GetPattern(ctx context.Context, agentID string, windowStart time.Time) (entities.AgentPattern, bool, error) {
	var row agentPatternModel
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND window_start = ?", strings.TrimSpace(agentID), windowStart.UTC()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.AgentPattern{}, false, nil
		}
		return entities.AgentPattern{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SavePattern(ctx context.Context, pattern entities.AgentPattern) error {
	row := agentPatternModelFromEntity(pattern)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "agent_id"}, {Name: "window_start"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"window_end", "action_counts", "collaboration_breadth", "co_actor_ids",
			}),
		}).
		Create(row).Error
}

func (r *Repository) SaveArtifact(ctx context.Context, artifact entities.Artifact) error {
	row := artifactModelFromEntity(artifact)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_id"}}, DoNothing: true}).
		Create(row).Error
}

func (r *Repository) SaveArtifactImplication(ctx context.Context, implication entities.ArtifactImplication) error {
	row := artifactImplicationModel{
		ArtifactImplicationID: implication.ArtifactImplicationID,
		ArtifactID:            implication.ArtifactID,
		SourceEventID:         implication.SourceEventID,
		IssuingAgentID:        implication.IssuingAgentID,
		SubjectAgentID:        implication.SubjectAgentID,
		ImplicationType:       implication.ImplicationType,
		CreatedAt:             implication.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *Repository) SaveCapacityTimelineEntry(ctx context.Context, entry entities.CapacityTimelineEntry) error {
	row := capacityTimelineModel{
		SourceEventID: entry.SourceEventID,
		AgentID:       entry.AgentID,
		TS:            entry.TS.UTC(),
		BalanceBefore: entry.BalanceBefore,
		BalanceAfter:  entry.BalanceAfter,
		RequestedCost: entry.RequestedCost,
		EstimatedCost: entry.EstimatedCost,
		ActualCost:    entry.ActualCost,
		CognitionUsed: entry.CognitionUsed,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *Repository) SaveEnvironmentHistoryEntry(ctx context.Context, entry entities.EnvironmentHistoryEntry) error {
	row := environmentHistoryModel{
		SourceEventID:          entry.SourceEventID,
		DeploymentTarget:       entry.DeploymentTarget,
		CognitionAvailability:  entry.CognitionAvailability,
		MaxThroughputPerMinute: entry.MaxThroughputPerMinute,
		ThrottleFactor:         entry.ThrottleFactor,
		Reason:                 entry.Reason,
		Removed:                entry.Removed,
		OccurredAt:             entry.OccurredAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *Repository) SaveEnvironmentRejection(ctx context.Context, rejection entities.EnvironmentRejection) error {
	row := environmentRejectionModel{
		SourceEventID:    rejection.SourceEventID,
		AgentID:          rejection.AgentID,
		DeploymentTarget: rejection.DeploymentTarget,
		Reason:           rejection.Reason,
		OccurredAt:       rejection.OccurredAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *Repository) RecordError(ctx context.Context, fingerprint, source, sampleDetail string, at time.Time) error {
	row := errorInboxModel{
		Fingerprint:  strings.TrimSpace(fingerprint),
		Source:       source,
		Count:        1,
		SampleDetail: sampleDetail,
		FirstSeenAt:  at.UTC(),
		LastSeenAt:   at.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "fingerprint"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count":         gorm.Expr("error_inbox.count + 1"),
				"sample_detail": row.SampleDetail,
				"last_seen_at":  row.LastSeenAt,
			}),
		}).
		Create(&row).Error
}

func (r *Repository) ListErrors(ctx context.Context) ([]entities.ErrorInboxEntry, error) {
	var rows []errorInboxModel
	if err := r.db.WithContext(ctx).Order("last_seen_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.ErrorInboxEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) SaveDeadLetter(ctx context.Context, entry entities.DeadLetterEntry) error {
	row := deadLetterModel{
		SourceEventID: entry.SourceEventID,
		Topic:         entry.Topic,
		EventType:     entry.EventType,
		Payload:       entry.Payload,
		Reason:        entry.Reason,
		Attempts:      entry.Attempts,
		RoutedAt:      entry.RoutedAt.UTC(),
		Redriven:      entry.Redriven,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *Repository) ListDeadLetters(ctx context.Context) ([]entities.DeadLetterEntry, error) {
	var rows []deadLetterModel
	if err := r.db.WithContext(ctx).Where("redriven = ?", false).Order("routed_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.DeadLetterEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) MarkDeadLetterRedriven(ctx context.Context, sourceEventID string) error {
	return r.db.WithContext(ctx).Model(&deadLetterModel{}).
		Where("source_event_id = ?", strings.TrimSpace(sourceEventID)).
		Update("redriven", true).Error
}

func (r *Repository) SaveNarrativeFrame(ctx context.Context, frame entities.NarrativeFrame) error {
	row := narrativeFrameModel{
		SourceEventID:    frame.SourceEventID,
		DeploymentTarget: frame.DeploymentTarget,
		TickID:           frame.TickID,
		Summary:          frame.Summary,
		OccurredAt:       frame.OccurredAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_id"}}, DoNothing: true}).
		Create(&row).Error
}
