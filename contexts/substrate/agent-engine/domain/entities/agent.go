// Package entities holds the Agent Action Engine's domain model: agents,
// their capacity ledger, their config, and the admission audit trail.
package entities

import "time"

// Status is the agent lifecycle state. Archival is one-way within a
// version — there is no un-archive operation, only redeploy-and-reactivate
// from a still-active row.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// ThrottleProfile gates admission independently of capacity.
type ThrottleProfile string

const (
	ThrottleNormal       ThrottleProfile = "normal"
	ThrottleConservative ThrottleProfile = "conservative"
	ThrottleAggressive   ThrottleProfile = "aggressive"
	ThrottlePaused       ThrottleProfile = "paused"
)

// Agent is the exactly-one-row-per-agent identity record.
type Agent struct {
	AgentID            string
	Status             Status
	DeploymentTarget   string
	SponsorID          string // empty when unsponsored
	CognitionProvider  string // "none" short-circuits cost estimation/execution
	ThrottleProfile    ThrottleProfile
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsActive reports whether the agent may currently be admitted for action.
func (a Agent) IsActive() bool {
	return a.Status == StatusActive
}

// Capacity is the per-agent integer capacity ledger. Balance is lazily
// regenerated on every read/write that touches it (spec §3).
type Capacity struct {
	AgentID          string
	Balance          int
	MaxBalance       int
	RegenPerHour     int
	LastReconciledAt time.Time
}

// Reconcile applies lazy regeneration up to asOf and returns the updated
// capacity. It never mutates its receiver; callers persist the result.
func (c Capacity) Reconcile(asOf time.Time) Capacity {
	if asOf.Before(c.LastReconciledAt) {
		return c
	}
	hoursElapsed := asOf.Sub(c.LastReconciledAt).Hours()
	regenerated := int(hoursElapsed * float64(c.RegenPerHour)) // floor via int truncation
	newBalance := c.Balance + regenerated
	if newBalance > c.MaxBalance {
		newBalance = c.MaxBalance
	}
	c.Balance = newBalance
	c.LastReconciledAt = asOf
	return c
}

// Config holds the agent's bias map and opaque throttle/cognition config.
type Config struct {
	AgentID          string
	BiasMap          map[string]float64
	ThrottleConfig   map[string]any
	CognitionConfig  map[string]any
	Version          int
}

// PortableSnapshot returns the exportable view of Config (spec §3
// "portable_config snapshot for export").
func (c Config) PortableSnapshot() map[string]any {
	return map[string]any{
		"agent_id":         c.AgentID,
		"bias_map":         c.BiasMap,
		"throttle_config":  c.ThrottleConfig,
		"cognition_config": c.CognitionConfig,
		"version":          c.Version,
	}
}
