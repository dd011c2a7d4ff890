package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateAgentRequest struct {
	DeploymentTarget  string             `json:"deployment_target"`
	SponsorID         string             `json:"sponsor_id,omitempty"`
	CognitionProvider string             `json:"cognition_provider,omitempty"`
	ThrottleProfile   string             `json:"throttle_profile,omitempty"`
	MaxBalance        int                `json:"max_balance"`
	RegenPerHour      int                `json:"regen_per_hour"`
	StartingBalance   int                `json:"starting_balance"`
	BiasMap           map[string]float64 `json:"bias_map,omitempty"`
	ThrottleConfig    map[string]any     `json:"throttle_config,omitempty"`
	CognitionConfig   map[string]any     `json:"cognition_config,omitempty"`
}

type AgentResponse struct {
	AgentID           string `json:"agent_id"`
	Status            string `json:"status"`
	DeploymentTarget  string `json:"deployment_target"`
	SponsorID         string `json:"sponsor_id,omitempty"`
	CognitionProvider string `json:"cognition_provider"`
	ThrottleProfile   string `json:"throttle_profile"`
}

type RedeployAgentRequest struct {
	DeploymentTarget string `json:"deployment_target"`
}

type ReassignSponsorRequest struct {
	SponsorID string `json:"sponsor_id"`
}

type UpdateConfigRequest struct {
	BiasMap         map[string]float64 `json:"bias_map,omitempty"`
	ThrottleConfig  map[string]any     `json:"throttle_config,omitempty"`
	CognitionConfig map[string]any     `json:"cognition_config,omitempty"`
}

type ConfigResponse struct {
	AgentID         string             `json:"agent_id"`
	BiasMap         map[string]float64 `json:"bias_map,omitempty"`
	ThrottleConfig  map[string]any     `json:"throttle_config,omitempty"`
	CognitionConfig map[string]any     `json:"cognition_config,omitempty"`
	Version         int                `json:"version"`
}

type AllocateCapacityRequest struct {
	Amount int `json:"amount"`
}

type CapacityResponse struct {
	AgentID          string `json:"agent_id"`
	Balance          int    `json:"balance"`
	MaxBalance       int    `json:"max_balance"`
	RegenPerHour     int    `json:"regen_per_hour"`
	LastReconciledAt string `json:"last_reconciled_at"`
}

type AttemptRequest struct {
	ActionType     string         `json:"action_type"`
	SubjectAgentID string         `json:"subject_agent_id,omitempty"`
	RequestedCost  int            `json:"requested_cost"`
	Payload        map[string]any `json:"payload,omitempty"`
	AgentContext   map[string]any `json:"context,omitempty"`
	CorrelationID  string         `json:"correlation_id,omitempty"`
}

type AttemptResponse struct {
	Accepted         bool   `json:"accepted"`
	Reason           string `json:"reason,omitempty"`
	LogID            string `json:"log_id"`
	EventID          string `json:"event_id"`
	RequestedCost    int    `json:"requested_cost"`
	EstimatedCost    int    `json:"estimated_cost"`
	ActualCost       int    `json:"actual_cost"`
	TotalCost        int    `json:"total_cost"`
	RemainingBalance int    `json:"remaining_balance"`
	Replayed         bool   `json:"replayed"`
}
