package postgresadapter

import (
	"time"

	"oxsubstrate/contexts/substrate/environment-service/domain/entities"
	"oxsubstrate/internal/shared/events"
)

type stateModel struct {
	DeploymentTarget       string    `gorm:"column:deployment_target;primaryKey"`
	CognitionAvailability  string    `gorm:"column:cognition_availability"`
	MaxThroughputPerMinute *int      `gorm:"column:max_throughput_per_minute"`
	ThrottleFactor         float64   `gorm:"column:throttle_factor"`
	WindowStart            *time.Time `gorm:"column:window_start"`
	WindowEnd              *time.Time `gorm:"column:window_end"`
	Reason                 string    `gorm:"column:reason"`
	ImposedAt              time.Time `gorm:"column:imposed_at"`
}

func (stateModel) TableName() string { return "environment_states" }

func stateModelFromEntity(s entities.State) *stateModel {
	return &stateModel{
		DeploymentTarget:       s.DeploymentTarget,
		CognitionAvailability:  string(s.CognitionAvailability),
		MaxThroughputPerMinute: s.MaxThroughputPerMinute,
		ThrottleFactor:         s.ThrottleFactor,
		WindowStart:            s.WindowStart,
		WindowEnd:              s.WindowEnd,
		Reason:                 s.Reason,
		ImposedAt:              s.ImposedAt.UTC(),
	}
}

func (m stateModel) toEntity() entities.State {
	return entities.State{
		DeploymentTarget:       m.DeploymentTarget,
		CognitionAvailability:  entities.CognitionAvailability(m.CognitionAvailability),
		MaxThroughputPerMinute: m.MaxThroughputPerMinute,
		ThrottleFactor:         m.ThrottleFactor,
		WindowStart:            m.WindowStart,
		WindowEnd:              m.WindowEnd,
		Reason:                 m.Reason,
		ImposedAt:              m.ImposedAt.UTC(),
	}
}

// throughputModel mirrors the Agent Action Engine's own counter table. The
// environment service reads it to build EnvironmentHistory views but never
// writes to it — the engine owns admission-side increments.
type throughputModel struct {
	DeploymentTarget string    `gorm:"column:deployment_target;primaryKey"`
	MinuteBucket     time.Time `gorm:"column:minute_bucket;primaryKey"`
	Count            int       `gorm:"column:count"`
}

func (throughputModel) TableName() string { return "agent_throughput_counters" }

type localityModel struct {
	ID                  string        `gorm:"column:id;primaryKey"`
	DeploymentTarget    string        `gorm:"column:deployment_target"`
	Name                string        `gorm:"column:name"`
	Density             float64       `gorm:"column:density"`
	InterferenceDensity float64       `gorm:"column:interference_density"`
	VisibilityRadius    float64       `gorm:"column:visibility_radius"`
	EvidenceHalfLifeSec int64         `gorm:"column:evidence_half_life_seconds"`
	Active              bool          `gorm:"column:active"`
}

func (localityModel) TableName() string { return "localities" }

func localityModelFromEntity(l entities.Locality) *localityModel {
	return &localityModel{
		ID:                  l.ID,
		DeploymentTarget:    l.DeploymentTarget,
		Name:                l.Name,
		Density:             l.Density,
		InterferenceDensity: l.InterferenceDensity,
		VisibilityRadius:    l.VisibilityRadius,
		EvidenceHalfLifeSec: int64(l.EvidenceHalfLife.Seconds()),
		Active:              l.Active,
	}
}

func (m localityModel) toEntity() entities.Locality {
	return entities.Locality{
		ID:                  m.ID,
		DeploymentTarget:    m.DeploymentTarget,
		Name:                m.Name,
		Density:             m.Density,
		InterferenceDensity: m.InterferenceDensity,
		VisibilityRadius:    m.VisibilityRadius,
		EvidenceHalfLife:    time.Duration(m.EvidenceHalfLifeSec) * time.Second,
		Active:              m.Active,
	}
}

type localityMembershipModel struct {
	LocalityID string  `gorm:"column:locality_id;primaryKey"`
	AgentID    string  `gorm:"column:agent_id;primaryKey"`
	Weight     float64 `gorm:"column:weight"`
}

func (localityMembershipModel) TableName() string { return "locality_memberships" }

func membershipModelFromEntity(m entities.LocalityMembership) *localityMembershipModel {
	return &localityMembershipModel{LocalityID: m.LocalityID, AgentID: m.AgentID, Weight: m.Weight}
}

func (m localityMembershipModel) toEntity() entities.LocalityMembership {
	return entities.LocalityMembership{LocalityID: m.LocalityID, AgentID: m.AgentID, Weight: m.Weight}
}

type eventModel struct {
	EventID        string    `gorm:"column:event_id;primaryKey"`
	EventType      string    `gorm:"column:event_type"`
	OccurredAt     time.Time `gorm:"column:occurred_at"`
	ActorID        string    `gorm:"column:actor_id"`
	CorrelationID  string    `gorm:"column:correlation_id"`
	IdempotencyKey string    `gorm:"column:idempotency_key"`
	Payload        []byte    `gorm:"column:payload"`
	Context        []byte    `gorm:"column:context"`
	Truncated      bool      `gorm:"column:truncated"`
}

func (eventModel) TableName() string { return "environment_events" }

func eventModelFromEnvelope(env events.Envelope) eventModel {
	return eventModel{
		EventID:        env.EventID,
		EventType:      env.EventType,
		OccurredAt:     env.OccurredAt.UTC(),
		ActorID:        env.ActorID,
		CorrelationID:  env.CorrelationID,
		IdempotencyKey: env.IdempotencyKey,
		Payload:        env.Payload,
		Context:        env.Context,
		Truncated:      env.Truncated,
	}
}

type outboxModel struct {
	OutboxID      string    `gorm:"column:outbox_id;primaryKey"`
	Topic         string    `gorm:"column:topic"`
	Payload       []byte    `gorm:"column:payload"`
	Status        string    `gorm:"column:status"`
	Attempts      int       `gorm:"column:attempts"`
	NextAttemptAt time.Time `gorm:"column:next_attempt_at"`
	LastError     string    `gorm:"column:last_error"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (outboxModel) TableName() string { return "environment_outbox" }

const outboxStatusPending = "pending"

// Models lists every gorm model this context owns, for bootstrap's
// AutoMigrate call.
func Models() []any {
	return []any{
		stateModel{}, throughputModel{}, localityModel{},
		localityMembershipModel{}, eventModel{}, outboxModel{},
	}
}
