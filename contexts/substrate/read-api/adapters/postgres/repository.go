// Package postgresadapter is the Read API's gorm-backed ports.Repository.
// Every query but RecordAccessLog reads directly against the projection
// materializer's tables via Table(...), the same cross-context read
// pattern sponsor-engine's AgentDirectory/EnvironmentDirectory already use
// against agent-engine's and environment-service's tables — a narrowly
// scoped SQL statement, not a domain import.
package postgresadapter

import (
	"context"
	"encoding/json"
	"strings"

	"oxsubstrate/contexts/substrate/read-api/domain/entities"
	readapierrors "oxsubstrate/contexts/substrate/read-api/domain/errors"

	"gorm.io/gorm"
)

// Repository implements ports.Repository over a *gorm.DB.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListLiveEvents(ctx context.Context, deploymentTarget string, limit int) ([]entities.LiveEventView, error) {
	query := r.db.WithContext(ctx).Table("projection_live_events")
	if strings.TrimSpace(deploymentTarget) != "" {
		query = query.Where("deployment_target = ?", strings.TrimSpace(deploymentTarget))
	}
	var rows []liveEventRow
	if err := query.Order("occurred_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.LiveEventView, 0, len(rows))
	for _, row := range rows {
		out = append(out, entities.LiveEventView{
			SourceEventID:    row.SourceEventID,
			EventType:        row.EventType,
			DeploymentTarget: row.DeploymentTarget,
			ActorID:          row.ActorID,
			Summary:          row.Summary,
			OccurredAt:       row.OccurredAt.UTC(),
		})
	}
	return out, nil
}

func (r *Repository) ListSessions(ctx context.Context, deploymentTarget string, activeOnly bool) ([]entities.SessionView, error) {
	query := r.db.WithContext(ctx).Table("sessions")
	if strings.TrimSpace(deploymentTarget) != "" {
		query = query.Where("deployment_target = ?", strings.TrimSpace(deploymentTarget))
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []sessionRow
	if err := query.Order("start_ts DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.SessionView, 0, len(rows))
	for _, row := range rows {
		var participants []string
		var counts map[string]int
		_ = json.Unmarshal(row.ParticipatingAgentIDs, &participants)
		_ = json.Unmarshal(row.ActionTypeCounts, &counts)
		out = append(out, entities.SessionView{
			SessionID:             row.SessionID,
			DeploymentTarget:      row.DeploymentTarget,
			ParticipatingAgentIDs: participants,
			StartTS:               row.StartTS.UTC(),
			EndTS:                 row.EndTS.UTC(),
			IsActive:              row.IsActive,
			DerivedTopic:          row.DerivedTopic,
			EventCount:            row.EventCount,
			ActionTypeCounts:      counts,
		})
	}
	return out, nil
}

func (r *Repository) ListArtifacts(ctx context.Context, agentID string, limit int) ([]entities.ArtifactView, error) {
	query := r.db.WithContext(ctx).Table("artifacts")
	if strings.TrimSpace(agentID) != "" {
		query = query.Where("agent_id = ?", strings.TrimSpace(agentID))
	}
	var rows []artifactRow
	if err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withIssuers(ctx, rows)
}

func (r *Repository) ListPerceivedBy(ctx context.Context, subjectAgentID string, limit int) ([]entities.ArtifactView, error) {
	var rows []artifactRow
	if err := r.db.WithContext(ctx).Table("artifacts").
		Where("subject_agent_id = ?", strings.TrimSpace(subjectAgentID)).
		Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withIssuers(ctx, rows)
}

func (r *Repository) withIssuers(ctx context.Context, rows []artifactRow) ([]entities.ArtifactView, error) {
	out := make([]entities.ArtifactView, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]any
		_ = json.Unmarshal(row.Metadata, &metadata)

		var implications []artifactImplicationRow
		if err := r.db.WithContext(ctx).Table("artifact_implications").
			Where("artifact_id = ?", row.ArtifactID).Find(&implications).Error; err != nil {
			return nil, err
		}
		issuers := make([]string, 0, len(implications))
		for _, implication := range implications {
			issuers = append(issuers, implication.IssuingAgentID)
		}

		out = append(out, entities.ArtifactView{
			ArtifactID:      row.ArtifactID,
			Type:            row.Type,
			SourceEventID:   row.SourceEventID,
			AgentID:         row.AgentID,
			SubjectAgentID:  row.SubjectAgentID,
			Title:           row.Title,
			ContentSummary:  row.ContentSummary,
			Metadata:        metadata,
			CreatedAt:       row.CreatedAt.UTC(),
			IssuingAgentIDs: issuers,
		})
	}
	return out, nil
}

func (r *Repository) ListErrorInbox(ctx context.Context) ([]entities.ErrorInboxView, error) {
	var rows []errorInboxRow
	if err := r.db.WithContext(ctx).Table("error_inbox").Order("last_seen_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.ErrorInboxView, 0, len(rows))
	for _, row := range rows {
		out = append(out, entities.ErrorInboxView{
			Fingerprint:  row.Fingerprint,
			Source:       row.Source,
			Count:        row.Count,
			SampleDetail: row.SampleDetail,
			FirstSeenAt:  row.FirstSeenAt.UTC(),
			LastSeenAt:   row.LastSeenAt.UTC(),
		})
	}
	return out, nil
}

func (r *Repository) ListDeadLetters(ctx context.Context) ([]entities.DeadLetterView, error) {
	var rows []deadLetterRow
	if err := r.db.WithContext(ctx).Table("dead_letters").
		Where("redriven = ?", false).Order("routed_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.DeadLetterView, 0, len(rows))
	for _, row := range rows {
		out = append(out, entities.DeadLetterView{
			SourceEventID: row.SourceEventID,
			Topic:         row.Topic,
			EventType:     row.EventType,
			Reason:        row.Reason,
			Attempts:      row.Attempts,
			RoutedAt:      row.RoutedAt.UTC(),
			Redriven:      row.Redriven,
		})
	}
	return out, nil
}

func (r *Repository) RedriveDeadLetter(ctx context.Context, sourceEventID string) (string, []byte, error) {
	var row deadLetterRow
	if err := r.db.WithContext(ctx).Table("dead_letters").
		Where("source_event_id = ?", sourceEventID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil, readapierrors.ErrNotFound
		}
		return "", nil, err
	}
	if row.Redriven {
		return "", nil, readapierrors.ErrAlreadyRedriven
	}
	result := r.db.WithContext(ctx).Table("dead_letters").
		Where("source_event_id = ? AND redriven = ?", sourceEventID, false).
		Update("redriven", true)
	if result.Error != nil {
		return "", nil, result.Error
	}
	if result.RowsAffected == 0 {
		return "", nil, readapierrors.ErrAlreadyRedriven
	}
	return row.Topic, row.Payload, nil
}

func (r *Repository) RecordAccessLog(ctx context.Context, log entities.AccessLog) error {
	row := accessLogModel{
		ObserverID:    log.ObserverID,
		ObserverRole:  string(log.ObserverRole),
		Endpoint:      log.Endpoint,
		QueryParams:   log.QueryParams,
		ResponseCount: log.ResponseCount,
		AccessedAt:    log.AccessedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}
