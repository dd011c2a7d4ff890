package postgresadapter

import (
	"encoding/json"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	"oxsubstrate/internal/shared/events"
)

const outboxStatusPending = "pending"

type walletModel struct {
	SponsorID string `gorm:"column:sponsor_id;primaryKey"`
	Balance   int64  `gorm:"column:balance"`
}

func (walletModel) TableName() string { return "sponsor_wallets" }

type agentCreditBalanceModel struct {
	AgentID string `gorm:"column:agent_id;primaryKey"`
	Balance int64  `gorm:"column:balance"`
}

func (agentCreditBalanceModel) TableName() string { return "agent_credit_balances" }

type creditTransactionModel struct {
	TransactionID  string    `gorm:"column:transaction_id;primaryKey"`
	SponsorID      string    `gorm:"column:sponsor_id"`
	AgentID        string    `gorm:"column:agent_id"`
	Type           string    `gorm:"column:type"`
	Amount         int64     `gorm:"column:amount"`
	IdempotencyKey string    `gorm:"column:idempotency_key"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (creditTransactionModel) TableName() string { return "credit_transactions" }

func transactionModelFromEntity(t entities.CreditTransaction) *creditTransactionModel {
	return &creditTransactionModel{
		TransactionID:  t.TransactionID,
		SponsorID:      t.SponsorID,
		AgentID:        t.AgentID,
		Type:           string(t.Type),
		Amount:         t.Amount,
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      t.CreatedAt.UTC(),
	}
}

func (m creditTransactionModel) toEntity() entities.CreditTransaction {
	return entities.CreditTransaction{
		TransactionID:  m.TransactionID,
		SponsorID:      m.SponsorID,
		AgentID:        m.AgentID,
		Type:           entities.TransactionType(m.Type),
		Amount:         m.Amount,
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

type pressureModel struct {
	ID               string     `gorm:"column:id;primaryKey"`
	SponsorID        string     `gorm:"column:sponsor_id"`
	TargetDeployment string     `gorm:"column:target_deployment"`
	TargetAgentID    string     `gorm:"column:target_agent_id"`
	Type             string     `gorm:"column:type"`
	Magnitude        float64    `gorm:"column:magnitude"`
	HalfLifeSeconds  float64    `gorm:"column:half_life_seconds"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	ExpiresAt        time.Time  `gorm:"column:expires_at"`
	CancelledAt      *time.Time `gorm:"column:cancelled_at"`
	CreditCost       int64      `gorm:"column:credit_cost"`
}

func (pressureModel) TableName() string { return "sponsor_pressures" }

func pressureModelFromEntity(p entities.Pressure) *pressureModel {
	return &pressureModel{
		ID:               p.ID,
		SponsorID:        p.SponsorID,
		TargetDeployment: p.TargetDeployment,
		TargetAgentID:    p.TargetAgentID,
		Type:             string(p.Type),
		Magnitude:        p.Magnitude,
		HalfLifeSeconds:  p.HalfLife.Seconds(),
		CreatedAt:        p.CreatedAt.UTC(),
		ExpiresAt:        p.ExpiresAt.UTC(),
		CancelledAt:      p.CancelledAt,
		CreditCost:       p.CreditCost,
	}
}

func (m pressureModel) toEntity() entities.Pressure {
	return entities.Pressure{
		ID:               m.ID,
		SponsorID:        m.SponsorID,
		TargetDeployment: m.TargetDeployment,
		TargetAgentID:    m.TargetAgentID,
		Type:             entities.PressureType(m.Type),
		Magnitude:        m.Magnitude,
		HalfLife:         time.Duration(m.HalfLifeSeconds * float64(time.Second)),
		CreatedAt:        m.CreatedAt.UTC(),
		ExpiresAt:        m.ExpiresAt.UTC(),
		CancelledAt:      m.CancelledAt,
		CreditCost:       m.CreditCost,
	}
}

type interferenceModel struct {
	ID                      uint      `gorm:"column:id;primaryKey;autoIncrement"`
	DeploymentTarget        string    `gorm:"column:deployment_target"`
	PressureAID             string    `gorm:"column:pressure_a_id"`
	PressureBID             string    `gorm:"column:pressure_b_id"`
	Type                    string    `gorm:"column:type"`
	InterferenceProbability float64   `gorm:"column:interference_probability"`
	ReductionFactor         float64   `gorm:"column:reduction_factor"`
	TickID                  string    `gorm:"column:tick_id"`
	OccurredAt              time.Time `gorm:"column:occurred_at"`
}

func (interferenceModel) TableName() string { return "sponsor_pressure_interference" }

func interferenceModelFromEntity(e entities.InterferenceEvent) *interferenceModel {
	return &interferenceModel{
		DeploymentTarget:        e.DeploymentTarget,
		PressureAID:             e.PressureAID,
		PressureBID:             e.PressureBID,
		Type:                    string(e.Type),
		InterferenceProbability: e.InterferenceProbability,
		ReductionFactor:         e.ReductionFactor,
		TickID:                  e.TickID,
		OccurredAt:              e.OccurredAt.UTC(),
	}
}

type policyModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	SponsorID      string    `gorm:"column:sponsor_id"`
	Type           string    `gorm:"column:type"`
	Rules          []byte    `gorm:"column:rules"`
	CadenceSeconds int       `gorm:"column:cadence_seconds"`
	Active         bool      `gorm:"column:active"`
	LastRunAt      *time.Time `gorm:"column:last_run_at"`
}

func (policyModel) TableName() string { return "sponsor_policies" }

func (m policyModel) toEntity() entities.Policy {
	var rules []entities.Rule
	_ = json.Unmarshal(m.Rules, &rules)
	return entities.Policy{
		ID:             m.ID,
		SponsorID:      m.SponsorID,
		Type:           m.Type,
		Rules:          rules,
		CadenceSeconds: m.CadenceSeconds,
		Active:         m.Active,
		LastRunAt:      m.LastRunAt,
	}
}

type policyRunLogModel struct {
	PolicyID  string    `gorm:"column:policy_id;primaryKey"`
	TickID    string    `gorm:"column:tick_id;primaryKey"`
	AgentID   string    `gorm:"column:agent_id;primaryKey"`
	Outcome   string    `gorm:"column:outcome"`
	Reason    string    `gorm:"column:reason"`
	Applied   bool      `gorm:"column:applied"`
	Diff      []byte    `gorm:"column:diff"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (policyRunLogModel) TableName() string { return "sponsor_policy_run_log" }

func policyRunLogModelFromEntity(l entities.PolicyRunLog) *policyRunLogModel {
	diff, _ := json.Marshal(l.Diff)
	return &policyRunLogModel{
		PolicyID:  l.PolicyID,
		TickID:    l.TickID,
		AgentID:   l.AgentID,
		Outcome:   string(l.Outcome),
		Reason:    l.Reason,
		Applied:   l.Applied,
		Diff:      diff,
		CreatedAt: l.CreatedAt.UTC(),
	}
}

type eventModel struct {
	EventID        string `gorm:"column:event_id;primaryKey"`
	EventType      string `gorm:"column:event_type"`
	OccurredAt     time.Time `gorm:"column:occurred_at"`
	ActorID        string `gorm:"column:actor_id"`
	CorrelationID  string `gorm:"column:correlation_id"`
	IdempotencyKey string `gorm:"column:idempotency_key"`
	Payload        []byte `gorm:"column:payload"`
	Context        []byte `gorm:"column:context"`
	Truncated      bool   `gorm:"column:truncated"`
}

func (eventModel) TableName() string { return "sponsor_events" }

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

func (outboxModel) TableName() string { return "sponsor_outbox" }

// Models lists every gorm model this context owns, for bootstrap's
// AutoMigrate call.
func Models() []any {
	return []any{
		walletModel{}, agentCreditBalanceModel{}, creditTransactionModel{},
		pressureModel{}, interferenceModel{}, policyModel{},
		policyRunLogModel{}, eventModel{}, outboxModel{},
	}
}
