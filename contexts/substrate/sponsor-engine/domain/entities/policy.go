package entities

import "time"

// PredicateOp enumerates the comparison operators a policy rule predicate
// supports.
type PredicateOp string

const (
	OpEq    PredicateOp = "eq"
	OpNeq   PredicateOp = "neq"
	OpGt    PredicateOp = "gt"
	OpGte   PredicateOp = "gte"
	OpLt    PredicateOp = "lt"
	OpLte   PredicateOp = "lte"
	OpIn    PredicateOp = "in"
	OpNotIn PredicateOp = "not_in"
)

// Predicate compares a dotted field path (e.g. "agent.balance",
// "env.throttle_factor") against a value using Op.
type Predicate struct {
	Field string
	Op    PredicateOp
	Value any
}

// PolicyActionType enumerates the actions a matching rule can apply.
type PolicyActionType string

const (
	ActionAllocateDelta PolicyActionType = "allocate_delta"
	ActionSetProvider   PolicyActionType = "set_provider"
	ActionSetProfile    PolicyActionType = "set_profile"
	ActionRedeploy      PolicyActionType = "redeploy"
)

// PolicyAction is the effect applied when a rule's predicates all match.
type PolicyAction struct {
	Type  PolicyActionType
	Value string // interpreted per Type: delta amount, provider name, profile name, target
}

// Rule is one ordered entry in a policy's rule list: if every predicate
// matches, Action is applied and evaluation stops for that tick.
type Rule struct {
	Predicates []Predicate
	Action     PolicyAction
}

// Policy is a sponsor-owned automation rule set evaluated on a cadence
// against each of the sponsor's agents.
type Policy struct {
	ID             string
	SponsorID      string
	Type           string
	Rules          []Rule
	CadenceSeconds int
	Active         bool
	LastRunAt      *time.Time
}

// DueForRun reports whether the policy's last successful run is older than
// its cadence (spec §4.4 policy sweep).
func (p Policy) DueForRun(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.LastRunAt == nil {
		return true
	}
	return now.Sub(*p.LastRunAt) >= time.Duration(p.CadenceSeconds)*time.Second
}

// RunOutcome enumerates a policy run's result for one agent.
type RunOutcome string

const (
	RunApplied RunOutcome = "applied"
	RunSkipped RunOutcome = "skipped"
)

// PolicyRunLog records one (policy, agent) evaluation for one tick,
// idempotent on (policy_id, tick_id, agent_id).
type PolicyRunLog struct {
	PolicyID  string
	TickID    string
	AgentID   string
	Outcome   RunOutcome
	Reason    string
	Applied   bool
	Diff      map[string]any
	CreatedAt time.Time
}

// EvaluationContext is the {agent, env} input to rule predicate matching.
type EvaluationContext struct {
	Agent map[string]any
	Env   map[string]any
}
