package postgresadapter

import (
	"encoding/json"
	"time"

	"oxsubstrate/contexts/substrate/projection/domain/entities"
)

type liveEventModel struct {
	SourceEventID    string    `gorm:"column:source_event_id;primaryKey"`
	EventType        string    `gorm:"column:event_type"`
	DeploymentTarget string    `gorm:"column:deployment_target"`
	ActorID          string    `gorm:"column:actor_id"`
	Summary          string    `gorm:"column:summary"`
	OccurredAt       time.Time `gorm:"column:occurred_at"`
}

func (liveEventModel) TableName() string { return "projection_live_events" }

type sessionModel struct {
	SessionID             string    `gorm:"column:session_id;primaryKey"`
	DeploymentTarget      string    `gorm:"column:deployment_target"`
	ParticipatingAgentIDs []byte    `gorm:"column:participating_agent_ids"`
	StartTS               time.Time `gorm:"column:start_ts"`
	EndTS                  time.Time `gorm:"column:end_ts"`
	IsActive               bool      `gorm:"column:is_active"`
	DerivedTopic           string    `gorm:"column:derived_topic"`
	EventCount             int       `gorm:"column:event_count"`
	ActionTypeCounts       []byte    `gorm:"column:action_type_counts"`
	LastEventAt            time.Time `gorm:"column:last_event_at"`
	LastEventAgentID       string    `gorm:"column:last_event_agent_id"`
}

func (sessionModel) TableName() string { return "sessions" }

func sessionModelFromEntity(s entities.Session) *sessionModel {
	participants, _ := json.Marshal(s.ParticipatingAgentIDs)
	counts, _ := json.Marshal(s.ActionTypeCounts)
	return &sessionModel{
		SessionID:             s.SessionID,
		DeploymentTarget:      s.DeploymentTarget,
		ParticipatingAgentIDs: participants,
		StartTS:               s.StartTS.UTC(),
		EndTS:                 s.EndTS.UTC(),
		IsActive:              s.IsActive,
		DerivedTopic:          string(s.DerivedTopic),
		EventCount:            s.EventCount,
		ActionTypeCounts:      counts,
		LastEventAt:           s.LastEventAt.UTC(),
		LastEventAgentID:      s.LastEventAgentID,
	}
}

func (m sessionModel) toEntity() entities.Session {
	var participants []string
	var counts map[string]int
	_ = json.Unmarshal(m.ParticipatingAgentIDs, &participants)
	_ = json.Unmarshal(m.ActionTypeCounts, &counts)
	return entities.Session{
		SessionID:             m.SessionID,
		DeploymentTarget:      m.DeploymentTarget,
		ParticipatingAgentIDs: participants,
		StartTS:               m.StartTS.UTC(),
		EndTS:                 m.EndTS.UTC(),
		IsActive:              m.IsActive,
		DerivedTopic:          entities.DerivedTopic(m.DerivedTopic),
		EventCount:            m.EventCount,
		ActionTypeCounts:      counts,
		LastEventAt:           m.LastEventAt.UTC(),
		LastEventAgentID:      m.LastEventAgentID,
	}
}

type sessionEventModel struct {
	SourceEventID string    `gorm:"column:source_event_id;primaryKey"`
	SessionID     string    `gorm:"column:session_id"`
	AgentID       string    `gorm:"column:agent_id"`
	ActionType    string    `gorm:"column:action_type"`
	TS            time.Time `gorm:"column:ts"`
}

func (sessionEventModel) TableName() string { return "session_events" }

type agentActivityModel struct {
	DeploymentTarget string    `gorm:"column:deployment_target;primaryKey"`
	AgentID          string    `gorm:"column:agent_id;primaryKey"`
	LastActionType   string    `gorm:"column:last_action_type"`
	LastActedAt      time.Time `gorm:"column:last_acted_at"`
}

func (agentActivityModel) TableName() string { return "agent_activity" }

type agentPatternModel struct {
	AgentID              string    `gorm:"column:agent_id;primaryKey"`
	WindowStart          time.Time `gorm:"column:window_start;primaryKey"`
	WindowEnd            time.Time `gorm:"column:window_end"`
	ActionCounts         []byte    `gorm:"column:action_counts"`
	CollaborationBreadth int       `gorm:"column:collaboration_breadth"`
	CoActorIDs           []byte    `gorm:"column:co_actor_ids"`
}

func (agentPatternModel) TableName() string { return "agent_patterns" }

func agentPatternModelFromEntity(p entities.AgentPattern) *agentPatternModel {
	counts, _ := json.Marshal(p.ActionCounts)
	coActors, _ := json.Marshal(p.CoActorIDs)
	return &agentPatternModel{
		AgentID:              p.AgentID,
		WindowStart:          p.WindowStart.UTC(),
		WindowEnd:            p.WindowEnd.UTC(),
		ActionCounts:         counts,
		CollaborationBreadth: p.CollaborationBreadth,
		CoActorIDs:           coActors,
	}
}

func (m agentPatternModel) toEntity() entities.AgentPattern {
	var counts map[string]entities.ActionTypeCount
	var coActors []string
	_ = json.Unmarshal(m.ActionCounts, &counts)
	_ = json.Unmarshal(m.CoActorIDs, &coActors)
	return entities.AgentPattern{
		AgentID:              m.AgentID,
		WindowStart:          m.WindowStart.UTC(),
		WindowEnd:            m.WindowEnd.UTC(),
		ActionCounts:         counts,
		CollaborationBreadth: m.CollaborationBreadth,
		CoActorIDs:           coActors,
	}
}

type artifactModel struct {
	ArtifactID     string    `gorm:"column:artifact_id;primaryKey"`
	Type           string    `gorm:"column:type"`
	SourceEventID  string    `gorm:"column:source_event_id"`
	AgentID        string    `gorm:"column:agent_id"`
	SubjectAgentID string    `gorm:"column:subject_agent_id"`
	Title          string    `gorm:"column:title"`
	ContentSummary string    `gorm:"column:content_summary"`
	Metadata       []byte    `gorm:"column:metadata"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (artifactModel) TableName() string { return "artifacts" }

func artifactModelFromEntity(a entities.Artifact) *artifactModel {
	metadata, _ := json.Marshal(a.Metadata)
	return &artifactModel{
		ArtifactID:     a.ArtifactID,
		Type:           a.Type,
		SourceEventID:  a.SourceEventID,
		AgentID:        a.AgentID,
		SubjectAgentID: a.SubjectAgentID,
		Title:          a.Title,
		ContentSummary: a.ContentSummary,
		Metadata:       metadata,
		CreatedAt:      a.CreatedAt.UTC(),
	}
}

type artifactImplicationModel struct {
	ArtifactImplicationID string    `gorm:"column:artifact_implication_id;primaryKey"`
	ArtifactID            string    `gorm:"column:artifact_id"`
	SourceEventID         string    `gorm:"column:source_event_id"`
	IssuingAgentID        string    `gorm:"column:issuing_agent_id"`
	SubjectAgentID        string    `gorm:"column:subject_agent_id"`
	ImplicationType       string    `gorm:"column:implication_type"`
	CreatedAt             time.Time `gorm:"column:created_at"`
}

func (artifactImplicationModel) TableName() string { return "artifact_implications" }

type capacityTimelineModel struct {
	SourceEventID string    `gorm:"column:source_event_id;primaryKey"`
	AgentID       string    `gorm:"column:agent_id"`
	TS            time.Time `gorm:"column:ts"`
	BalanceBefore int       `gorm:"column:balance_before"`
	BalanceAfter  int       `gorm:"column:balance_after"`
	RequestedCost int       `gorm:"column:requested_cost"`
	EstimatedCost int       `gorm:"column:estimated_cost"`
	ActualCost    int       `gorm:"column:actual_cost"`
	CognitionUsed bool      `gorm:"column:cognition_used"`
}

func (capacityTimelineModel) TableName() string { return "capacity_timeline" }

type environmentHistoryModel struct {
	SourceEventID          string    `gorm:"column:source_event_id;primaryKey"`
	DeploymentTarget       string    `gorm:"column:deployment_target"`
	CognitionAvailability  string    `gorm:"column:cognition_availability"`
	MaxThroughputPerMinute *int      `gorm:"column:max_throughput_per_minute"`
	ThrottleFactor         float64   `gorm:"column:throttle_factor"`
	Reason                 string    `gorm:"column:reason"`
	Removed                bool      `gorm:"column:removed"`
	OccurredAt             time.Time `gorm:"column:occurred_at"`
}

func (environmentHistoryModel) TableName() string { return "environment_history" }

type environmentRejectionModel struct {
	SourceEventID    string    `gorm:"column:source_event_id;primaryKey"`
	AgentID          string    `gorm:"column:agent_id"`
	DeploymentTarget string    `gorm:"column:deployment_target"`
	Reason           string    `gorm:"column:reason"`
	OccurredAt       time.Time `gorm:"column:occurred_at"`
}

func (environmentRejectionModel) TableName() string { return "environment_rejections" }

type narrativeFrameModel struct {
	SourceEventID    string    `gorm:"column:source_event_id;primaryKey"`
	DeploymentTarget string    `gorm:"column:deployment_target"`
	TickID           string    `gorm:"column:tick_id"`
	Summary          string    `gorm:"column:summary"`
	OccurredAt       time.Time `gorm:"column:occurred_at"`
}

func (narrativeFrameModel) TableName() string { return "narrative_frames" }

type errorInboxModel struct {
	Fingerprint  string    `gorm:"column:fingerprint;primaryKey"`
	Source       string    `gorm:"column:source"`
	Count        int       `gorm:"column:count"`
	SampleDetail string    `gorm:"column:sample_detail"`
	FirstSeenAt  time.Time `gorm:"column:first_seen_at"`
	LastSeenAt   time.Time `gorm:"column:last_seen_at"`
}

func (errorInboxModel) TableName() string { return "error_inbox" }

func (m errorInboxModel) toEntity() entities.ErrorInboxEntry {
	return entities.ErrorInboxEntry{
		Fingerprint:  m.Fingerprint,
		Source:       m.Source,
		Count:        m.Count,
		SampleDetail: m.SampleDetail,
		FirstSeenAt:  m.FirstSeenAt.UTC(),
		LastSeenAt:   m.LastSeenAt.UTC(),
	}
}

type deadLetterModel struct {
	SourceEventID string    `gorm:"column:source_event_id;primaryKey"`
	Topic         string    `gorm:"column:topic"`
	EventType     string    `gorm:"column:event_type"`
	Payload       []byte    `gorm:"column:payload"`
	Reason        string    `gorm:"column:reason"`
	Attempts      int       `gorm:"column:attempts"`
	RoutedAt      time.Time `gorm:"column:routed_at"`
	Redriven      bool      `gorm:"column:redriven"`
}

func (deadLetterModel) TableName() string { return "dead_letters" }

func (m deadLetterModel) toEntity() entities.DeadLetterEntry {
	return entities.DeadLetterEntry{
		SourceEventID: m.SourceEventID,
		Topic:         m.Topic,
		EventType:     m.EventType,
		Payload:       m.Payload,
		Reason:        m.Reason,
		Attempts:      m.Attempts,
		RoutedAt:      m.RoutedAt.UTC(),
		Redriven:      m.Redriven,
	}
}

// Models lists every gorm model this context owns, for bootstrap's
// AutoMigrate call.
func Models() []any {
	return []any{
		liveEventModel{}, sessionModel{}, sessionEventModel{},
		agentActivityModel{}, agentPatternModel{}, artifactModel{},
		artifactImplicationModel{}, capacityTimelineModel{},
		environmentHistoryModel{}, environmentRejectionModel{},
		narrativeFrameModel{}, errorInboxModel{}, deadLetterModel{},
	}
}
