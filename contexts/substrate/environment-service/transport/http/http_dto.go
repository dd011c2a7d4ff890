package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

// SetStateRequest is the body of PUT /admin/environment/:target.
type SetStateRequest struct {
	CognitionAvailability  string     `json:"cognition_availability"`
	MaxThroughputPerMinute *int       `json:"max_throughput_per_minute,omitempty"`
	ThrottleFactor         float64    `json:"throttle_factor"`
	WindowStart            *time.Time `json:"window_start,omitempty"`
	WindowEnd              *time.Time `json:"window_end,omitempty"`
	Reason                 string     `json:"reason,omitempty"`
}

type StateResponse struct {
	DeploymentTarget       string     `json:"deployment_target"`
	CognitionAvailability  string     `json:"cognition_availability"`
	MaxThroughputPerMinute *int       `json:"max_throughput_per_minute,omitempty"`
	ThrottleFactor         float64    `json:"throttle_factor"`
	WindowStart            *time.Time `json:"window_start,omitempty"`
	WindowEnd              *time.Time `json:"window_end,omitempty"`
	Reason                 string     `json:"reason,omitempty"`
	ImposedAt              time.Time  `json:"imposed_at"`
}

// CreateLocalityRequest is the body of POST /admin/environment/:target/localities.
type CreateLocalityRequest struct {
	Name                string  `json:"name"`
	Density             float64 `json:"density"`
	InterferenceDensity float64 `json:"interference_density"`
	VisibilityRadius    float64 `json:"visibility_radius"`
	EvidenceHalfLifeSec int64   `json:"evidence_half_life_seconds"`
}

type LocalityResponse struct {
	ID                  string  `json:"id"`
	DeploymentTarget    string  `json:"deployment_target"`
	Name                string  `json:"name"`
	Density             float64 `json:"density"`
	InterferenceDensity float64 `json:"interference_density"`
	VisibilityRadius    float64 `json:"visibility_radius"`
	EvidenceHalfLifeSec int64   `json:"evidence_half_life_seconds"`
	Active              bool    `json:"active"`
}

// SetMembershipRequest is the body of PUT /admin/localities/:id/members/:agentId.
type SetMembershipRequest struct {
	Weight float64 `json:"weight"`
}
