package postgresadapter

import (
	"encoding/json"
	"time"

	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
	"oxsubstrate/internal/shared/events"
)

const (
	outboxStatusPending = "pending"
)

type agentModel struct {
	AgentID           string    `gorm:"column:agent_id;primaryKey"`
	Status            string    `gorm:"column:status"`
	DeploymentTarget  string    `gorm:"column:deployment_target"`
	SponsorID         string    `gorm:"column:sponsor_id"`
	CognitionProvider string    `gorm:"column:cognition_provider"`
	ThrottleProfile   string    `gorm:"column:throttle_profile"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (agentModel) TableName() string { return "agents" }

func agentModelFromEntity(a entities.Agent) *agentModel {
	return &agentModel{
		AgentID:           a.AgentID,
		Status:            string(a.Status),
		DeploymentTarget:  a.DeploymentTarget,
		SponsorID:         a.SponsorID,
		CognitionProvider: a.CognitionProvider,
		ThrottleProfile:   string(a.ThrottleProfile),
		CreatedAt:         a.CreatedAt.UTC(),
		UpdatedAt:         a.UpdatedAt.UTC(),
	}
}

func agentUpdatesFromEntity(a entities.Agent) map[string]any {
	return map[string]any{
		"status":             string(a.Status),
		"deployment_target":  a.DeploymentTarget,
		"sponsor_id":         a.SponsorID,
		"cognition_provider": a.CognitionProvider,
		"throttle_profile":   string(a.ThrottleProfile),
		"updated_at":         a.UpdatedAt.UTC(),
	}
}

func (m agentModel) toEntity() entities.Agent {
	return entities.Agent{
		AgentID:           m.AgentID,
		Status:            entities.Status(m.Status),
		DeploymentTarget:  m.DeploymentTarget,
		SponsorID:         m.SponsorID,
		CognitionProvider: m.CognitionProvider,
		ThrottleProfile:   entities.ThrottleProfile(m.ThrottleProfile),
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

type capacityModel struct {
	AgentID          string    `gorm:"column:agent_id;primaryKey"`
	Balance          int       `gorm:"column:balance"`
	MaxBalance       int       `gorm:"column:max_balance"`
	RegenPerHour     int       `gorm:"column:regen_per_hour"`
	LastReconciledAt time.Time `gorm:"column:last_reconciled_at"`
}

func (capacityModel) TableName() string { return "agent_capacity" }

func capacityModelFromEntity(c entities.Capacity) *capacityModel {
	return &capacityModel{
		AgentID:          c.AgentID,
		Balance:          c.Balance,
		MaxBalance:       c.MaxBalance,
		RegenPerHour:     c.RegenPerHour,
		LastReconciledAt: c.LastReconciledAt.UTC(),
	}
}

func (m capacityModel) toEntity() entities.Capacity {
	return entities.Capacity{
		AgentID:          m.AgentID,
		Balance:          m.Balance,
		MaxBalance:       m.MaxBalance,
		RegenPerHour:     m.RegenPerHour,
		LastReconciledAt: m.LastReconciledAt.UTC(),
	}
}

type configModel struct {
	AgentID         string `gorm:"column:agent_id;primaryKey"`
	BiasMap         []byte `gorm:"column:bias_map"`
	ThrottleConfig  []byte `gorm:"column:throttle_config"`
	CognitionConfig []byte `gorm:"column:cognition_config"`
	Version         int    `gorm:"column:version"`
}

func (configModel) TableName() string { return "agent_config" }

func configModelFromEntity(c entities.Config) *configModel {
	biasMap, _ := json.Marshal(c.BiasMap)
	throttleConfig, _ := json.Marshal(c.ThrottleConfig)
	cognitionConfig, _ := json.Marshal(c.CognitionConfig)
	return &configModel{
		AgentID:         c.AgentID,
		BiasMap:         biasMap,
		ThrottleConfig:  throttleConfig,
		CognitionConfig: cognitionConfig,
		Version:         c.Version,
	}
}

func (m configModel) toEntity() entities.Config {
	var biasMap map[string]float64
	var throttleConfig map[string]any
	var cognitionConfig map[string]any
	_ = json.Unmarshal(m.BiasMap, &biasMap)
	_ = json.Unmarshal(m.ThrottleConfig, &throttleConfig)
	_ = json.Unmarshal(m.CognitionConfig, &cognitionConfig)
	return entities.Config{
		AgentID:         m.AgentID,
		BiasMap:         biasMap,
		ThrottleConfig:  throttleConfig,
		CognitionConfig: cognitionConfig,
		Version:         m.Version,
	}
}

type actionLogModel struct {
	LogID          string    `gorm:"column:log_id;primaryKey"`
	AgentID        string    `gorm:"column:agent_id"`
	ActionType     string    `gorm:"column:action_type"`
	SubjectAgentID string    `gorm:"column:subject_agent_id"`
	RequestedCost  int       `gorm:"column:requested_cost"`
	EstimatedCost  int       `gorm:"column:estimated_cost"`
	ActualCost     int       `gorm:"column:actual_cost"`
	CognitionUsed  bool      `gorm:"column:cognition_used"`
	Accepted       bool      `gorm:"column:accepted"`
	Reason         string    `gorm:"column:reason"`
	IdempotencyKey string    `gorm:"column:idempotency_key"`
	EventID        string    `gorm:"column:event_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (actionLogModel) TableName() string { return "agent_action_log" }

func actionLogModelFromEntity(l entities.ActionLog) *actionLogModel {
	return &actionLogModel{
		LogID:          l.LogID,
		AgentID:        l.AgentID,
		ActionType:     string(l.ActionType),
		SubjectAgentID: l.SubjectAgentID,
		RequestedCost:  l.Cost.RequestedCost,
		EstimatedCost:  l.Cost.EstimatedCost,
		ActualCost:     l.Cost.ActualCost,
		CognitionUsed:  l.Cost.CognitionUsed,
		Accepted:       l.Accepted,
		Reason:         l.Reason,
		IdempotencyKey: l.IdempotencyKey,
		EventID:        l.EventID,
		CreatedAt:      l.CreatedAt.UTC(),
	}
}

func (m actionLogModel) toEntity() entities.ActionLog {
	return entities.ActionLog{
		LogID:          m.LogID,
		AgentID:        m.AgentID,
		ActionType:     entities.ActionType(m.ActionType),
		SubjectAgentID: m.SubjectAgentID,
		Cost: entities.CostBreakdown{
			RequestedCost: m.RequestedCost,
			EstimatedCost: m.EstimatedCost,
			ActualCost:    m.ActualCost,
			CognitionUsed: m.CognitionUsed,
		},
		Accepted:       m.Accepted,
		Reason:         m.Reason,
		IdempotencyKey: m.IdempotencyKey,
		EventID:        m.EventID,
		CreatedAt:      m.CreatedAt.UTC(),
	}
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

func (eventModel) TableName() string { return "agent_events" }

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

func (m eventModel) toEnvelope() events.Envelope {
	return events.Envelope{
		EventID:        m.EventID,
		EventType:      m.EventType,
		OccurredAt:     m.OccurredAt.UTC(),
		ActorID:        m.ActorID,
		CorrelationID:  m.CorrelationID,
		IdempotencyKey: m.IdempotencyKey,
		Payload:        m.Payload,
		Context:        m.Context,
		Truncated:      m.Truncated,
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

func (outboxModel) TableName() string { return "agent_outbox" }

// environmentStateModel is a read-only projection of environment-service's
// physics-config table, queried directly rather than through a domain
// import (spec §4.3 step 4 / cross-context read boundary).
type environmentStateModel struct {
	DeploymentTarget       string     `gorm:"column:deployment_target;primaryKey"`
	CognitionAvailability  string     `gorm:"column:cognition_availability"`
	MaxThroughputPerMinute *int       `gorm:"column:max_throughput_per_minute"`
	ThrottleFactor         float64    `gorm:"column:throttle_factor"`
	WindowStart            *time.Time `gorm:"column:window_start"`
	WindowEnd              *time.Time `gorm:"column:window_end"`
}

func (environmentStateModel) TableName() string { return "environment_states" }

func (m environmentStateModel) toSnapshot() entities.EnvironmentSnapshot {
	return entities.EnvironmentSnapshot{
		DeploymentTarget:       m.DeploymentTarget,
		CognitionAvailability:  entities.CognitionAvailability(m.CognitionAvailability),
		MaxThroughputPerMinute: m.MaxThroughputPerMinute,
		ThrottleFactor:         m.ThrottleFactor,
		WindowStart:            m.WindowStart,
		WindowEnd:              m.WindowEnd,
		Present:                true,
	}
}

// throughputModel is agent-engine's own minute-bucketed admission counter,
// separate from environment-service's config table: the engine owns the
// write path for "how many actions admitted this minute", the environment
// service owns the read-only cap it is compared against.
type throughputModel struct {
	DeploymentTarget string    `gorm:"column:deployment_target;primaryKey"`
	MinuteBucket     time.Time `gorm:"column:minute_bucket;primaryKey"`
	Count            int       `gorm:"column:count"`
}

func (throughputModel) TableName() string { return "agent_throughput_counters" }

// Models lists every gorm model this context owns, for bootstrap's
// AutoMigrate call. environmentStateModel is a narrower read-only mirror of
// environment_states, and throughputModel maps agent_throughput_counters,
// which this context writes but environment-service migrates; both are
// excluded here so AutoMigrate never runs against the same table from two
// conflicting column sets.
func Models() []any {
	return []any{
		agentModel{}, capacityModel{}, configModel{}, actionLogModel{},
		eventModel{}, outboxModel{},
	}
}
