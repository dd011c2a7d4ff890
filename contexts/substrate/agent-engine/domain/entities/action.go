package entities

import "time"

// ActionType enumerates the validated action vocabulary (spec §4.3). The
// last four are implicating: they name a second agent and emit an artifact
// implication linking issuer to subject.
type ActionType string

const (
	ActionCommunicate  ActionType = "communicate"
	ActionAssociate    ActionType = "associate"
	ActionCreate       ActionType = "create"
	ActionExchange     ActionType = "exchange"
	ActionConflict     ActionType = "conflict"
	ActionWithdraw     ActionType = "withdraw"
	ActionCritique     ActionType = "critique"
	ActionCounterModel ActionType = "counter_model"
	ActionRefusal      ActionType = "refusal"
	ActionRederivation ActionType = "rederivation"
)

var validActionTypes = map[ActionType]bool{
	ActionCommunicate:  true,
	ActionAssociate:    true,
	ActionCreate:       true,
	ActionExchange:     true,
	ActionConflict:     true,
	ActionWithdraw:     true,
	ActionCritique:     true,
	ActionCounterModel: true,
	ActionRefusal:      true,
	ActionRederivation: true,
}

var implicatingActionTypes = map[ActionType]bool{
	ActionCritique:     true,
	ActionCounterModel: true,
	ActionRefusal:      true,
	ActionRederivation: true,
}

// IsValid reports whether t is one of the validated action types.
func (t ActionType) IsValid() bool {
	return validActionTypes[t]
}

// IsImplicating reports whether t requires (and, if accepted, emits) an
// artifact implication naming a subject agent.
func (t ActionType) IsImplicating() bool {
	return implicatingActionTypes[t]
}

// RejectionReason enumerates the machine-readable reasons an attempt can be
// rejected, used verbatim as the `reason` field; environment reasons also
// select the separate environment rejection event type.
type RejectionReason string

const (
	ReasonEnvironmentOutsideWindow  RejectionReason = "environment_outside_active_window"
	ReasonCognitionUnavailable     RejectionReason = "environment_cognition_unavailable"
	ReasonThroughputExceeded       RejectionReason = "environment_throughput_exceeded"
	ReasonThrottlePaused           RejectionReason = "throttle_paused"
	ReasonInsufficientCapacity     RejectionReason = "insufficient_capacity"
	ReasonCognitionPaused          RejectionReason = "cognition_paused"
)

// IsEnvironmentReason reports whether reason originates from the
// environment gate (spec §4.3 step 4), which short-circuits before capacity
// is ever touched.
func (r RejectionReason) IsEnvironmentReason() bool {
	return r == ReasonEnvironmentOutsideWindow || r == ReasonCognitionUnavailable || r == ReasonThroughputExceeded
}

// CostBreakdown records how a total charge was composed, persisted on the
// action log and surfaced to the capacity timeline projection.
type CostBreakdown struct {
	RequestedCost  int
	EstimatedCost  int
	ActualCost     int // only set when cognition executed successfully
	CognitionUsed  bool
}

// Total returns the capacity actually charged.
func (c CostBreakdown) Total() int {
	if c.CognitionUsed {
		return c.RequestedCost + c.ActualCost
	}
	return c.RequestedCost
}

// Required returns the capacity required for admission, before cognition
// has actually executed (requested + estimated, spec §4.3 step 6).
func (c CostBreakdown) Required() int {
	return c.RequestedCost + c.EstimatedCost
}

// CognitionResult is what a successful cognition provider invocation
// returns (spec §9).
type CognitionResult struct {
	Provider   string
	TokensUsed int
	ActualCost int
	LatencyMS  int64
}

// ActionLog is the append-only admission audit trail (spec §3).
type ActionLog struct {
	LogID          string
	AgentID        string
	ActionType     ActionType
	SubjectAgentID string
	Cost           CostBreakdown
	Accepted       bool
	Reason         string
	IdempotencyKey string
	EventID        string
	CreatedAt      time.Time
}
