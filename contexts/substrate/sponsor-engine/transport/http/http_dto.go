package http

type ErrorResponse struct {
	Error string `json:"error"`
}

// PurchaseCreditsRequest is the body of POST /sponsor/:s/credits/purchase.
type PurchaseCreditsRequest struct {
	Amount int64 `json:"amount"`
}

// AllocateCreditsRequest is the body of POST /sponsor/:s/agents/:a/credits/allocate.
type AllocateCreditsRequest struct {
	Amount int64 `json:"amount"`
}

type TransactionResponse struct {
	TransactionID string `json:"transaction_id"`
	SponsorID     string `json:"sponsor_id"`
	AgentID       string `json:"agent_id,omitempty"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	Replayed      bool   `json:"replayed"`
}

// IssuePressureRequest is the body of POST /sponsor/:s/pressures.
type IssuePressureRequest struct {
	TargetDeployment string  `json:"target_deployment"`
	TargetAgentID    string  `json:"target_agent_id,omitempty"`
	Type             string  `json:"type"`
	Magnitude        float64 `json:"magnitude"`
	HalfLifeSeconds  int64   `json:"half_life_seconds"`
}

type PressureResponse struct {
	ID               string  `json:"id"`
	SponsorID        string  `json:"sponsor_id"`
	TargetDeployment string  `json:"target_deployment"`
	TargetAgentID    string  `json:"target_agent_id,omitempty"`
	Type             string  `json:"type"`
	Magnitude        float64 `json:"magnitude"`
	HalfLifeSeconds  int64   `json:"half_life_seconds"`
	CreditCost       int64   `json:"credit_cost"`
}
