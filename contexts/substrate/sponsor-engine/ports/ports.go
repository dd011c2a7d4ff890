// Package ports declares the Sponsor Influence Engine's dependency
// boundary.
package ports

import (
	"context"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	"oxsubstrate/internal/shared/events"
)

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints identifiers for transactions, pressures, policies, and
// events.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Repository is the Sponsor Influence Engine's persistence port. Credit
// allocation and pressure issuance both require a multi-row atomic commit
// (wallet decrement + agent/ledger insert), so — like the Agent Action
// Engine — it exposes a closure-based unit-of-work.
type Repository interface {
	Transact(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	GetWallet(ctx context.Context, sponsorID string) (entities.SponsorWallet, bool, error)
	SaveWallet(ctx context.Context, wallet entities.SponsorWallet) error
	GetAgentCreditBalance(ctx context.Context, agentID string) (entities.AgentCreditBalance, bool, error)
	SaveAgentCreditBalance(ctx context.Context, balance entities.AgentCreditBalance) error
	AppendTransaction(ctx context.Context, tx entities.CreditTransaction) error
	FindTransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (entities.CreditTransaction, bool, error)

	CreatePressure(ctx context.Context, pressure entities.Pressure) error
	GetPressure(ctx context.Context, pressureID string) (entities.Pressure, bool, error)
	CancelPressure(ctx context.Context, pressureID string, at time.Time) error
	ListActivePressures(ctx context.Context, target string, asOf time.Time) ([]entities.Pressure, error)
	AppendInterference(ctx context.Context, event entities.InterferenceEvent) error

	ListDuePolicies(ctx context.Context, now time.Time) ([]entities.Policy, error)
	MarkPolicyRan(ctx context.Context, policyID string, ranAt time.Time) error
	AppendPolicyRunLog(ctx context.Context, log entities.PolicyRunLog) (inserted bool, err error)

	AppendEvent(ctx context.Context, env events.Envelope) error
	AppendOutbox(ctx context.Context, eventID, topic string, payload []byte) error
}

// AgentDirectory is the view onto agent-engine's agent/capacity rows the
// policy sweep reads to build its evaluation context and writes to apply
// allocate_delta/set_provider/set_profile/redeploy actions. It is a narrow
// port rather than an import of agent-engine's domain package, preserving
// the cross-context boundary (mirrors how agent-engine reads
// environment-service's table directly instead of importing its package).
type AgentDirectory interface {
	ListAgentsBySponsor(ctx context.Context, sponsorID string) ([]AgentView, error)
	ApplyPolicyAction(ctx context.Context, agentID string, action entities.PolicyAction) (diff map[string]any, err error)
}

// AgentView is the subset of agent-engine state a sponsor policy's
// predicates evaluate against.
type AgentView struct {
	AgentID           string
	Status            string
	Balance           int64
	CognitionProvider string
	ThrottleProfile   string
	DeploymentTarget  string
}

// EnvironmentView is the subset of environment-service state a sponsor
// policy's predicates evaluate against.
type EnvironmentView struct {
	CognitionAvailability string
	ThrottleFactor        float64
}

// EnvironmentDirectory is the read-only view onto environment-service's
// physics state.
type EnvironmentDirectory interface {
	GetEnvironmentView(ctx context.Context, target string) (EnvironmentView, bool, error)
}
