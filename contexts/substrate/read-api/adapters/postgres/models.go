package postgresadapter

import "time"

// accessLogModel is the Read API's own table; everything else below is a
// read-only row shape queried directly against the projection
// materializer's tables (cross-context read, same pattern agent-engine and
// environment-service already use for each other's data).
type accessLogModel struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ObserverID    string    `gorm:"column:observer_id"`
	ObserverRole  string    `gorm:"column:observer_role"`
	Endpoint      string    `gorm:"column:endpoint"`
	QueryParams   string    `gorm:"column:query_params"`
	ResponseCount int       `gorm:"column:response_count"`
	AccessedAt    time.Time `gorm:"column:accessed_at"`
}

func (accessLogModel) TableName() string { return "observer_access_log" }

type liveEventRow struct {
	SourceEventID    string    `gorm:"column:source_event_id"`
	EventType        string    `gorm:"column:event_type"`
	DeploymentTarget string    `gorm:"column:deployment_target"`
	ActorID          string    `gorm:"column:actor_id"`
	Summary          string    `gorm:"column:summary"`
	OccurredAt       time.Time `gorm:"column:occurred_at"`
}

type sessionRow struct {
	SessionID             string    `gorm:"column:session_id"`
	DeploymentTarget      string    `gorm:"column:deployment_target"`
	ParticipatingAgentIDs []byte    `gorm:"column:participating_agent_ids"`
	StartTS               time.Time `gorm:"column:start_ts"`
	EndTS                 time.Time `gorm:"column:end_ts"`
	IsActive              bool      `gorm:"column:is_active"`
	DerivedTopic          string    `gorm:"column:derived_topic"`
	EventCount            int       `gorm:"column:event_count"`
	ActionTypeCounts      []byte    `gorm:"column:action_type_counts"`
}

type artifactRow struct {
	ArtifactID     string    `gorm:"column:artifact_id"`
	Type           string    `gorm:"column:type"`
	SourceEventID  string    `gorm:"column:source_event_id"`
	AgentID        string    `gorm:"column:agent_id"`
	SubjectAgentID string    `gorm:"column:subject_agent_id"`
	Title          string    `gorm:"column:title"`
	ContentSummary string    `gorm:"column:content_summary"`
	Metadata       []byte    `gorm:"column:metadata"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

type artifactImplicationRow struct {
	ArtifactID     string `gorm:"column:artifact_id"`
	IssuingAgentID string `gorm:"column:issuing_agent_id"`
}

type errorInboxRow struct {
	Fingerprint  string    `gorm:"column:fingerprint"`
	Source       string    `gorm:"column:source"`
	Count        int       `gorm:"column:count"`
	SampleDetail string    `gorm:"column:sample_detail"`
	FirstSeenAt  time.Time `gorm:"column:first_seen_at"`
	LastSeenAt   time.Time `gorm:"column:last_seen_at"`
}

type deadLetterRow struct {
	SourceEventID string    `gorm:"column:source_event_id"`
	Topic         string    `gorm:"column:topic"`
	EventType     string    `gorm:"column:event_type"`
	Payload       []byte    `gorm:"column:payload"`
	Reason        string    `gorm:"column:reason"`
	Attempts      int       `gorm:"column:attempts"`
	RoutedAt      time.Time `gorm:"column:routed_at"`
	Redriven      bool      `gorm:"column:redriven"`
}

// Models lists every gorm model this context owns, for bootstrap's
// AutoMigrate call. The row types above are cross-context reads against
// projection's tables and must not be migrated from here.
func Models() []any {
	return []any{accessLogModel{}}
}
