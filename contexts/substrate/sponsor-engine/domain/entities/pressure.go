package entities

import (
	"math"
	"time"
)

// PressureType enumerates the physics dimension a pressure modulates.
type PressureType string

const (
	PressureCapacity     PressureType = "capacity"
	PressureThrottle     PressureType = "throttle"
	PressureCognition    PressureType = "cognition"
	PressureRedeployBias PressureType = "redeploy_bias"
)

// Pressure is a sponsor-issued, decaying influence over a deployment's (and
// optionally a single agent's) physics.
type Pressure struct {
	ID               string
	SponsorID        string
	TargetDeployment string
	TargetAgentID    string // optional
	Type             PressureType
	Magnitude        float64 // [-100, 100]
	HalfLife         time.Duration
	CreatedAt        time.Time
	ExpiresAt        time.Time
	CancelledAt      *time.Time
	CreditCost       int64
}

// CreditCostForMagnitude computes ⌈10·|magnitude|⌉ (spec §4.4).
func CreditCostForMagnitude(magnitude float64) int64 {
	return int64(math.Ceil(10 * math.Abs(magnitude)))
}

// ExpiresAtFor computes created_at + 10·half_life, the point at which a
// pressure has decayed to roughly 0.1% of its initial intensity.
func ExpiresAtFor(createdAt time.Time, halfLife time.Duration) time.Time {
	return createdAt.Add(10 * halfLife)
}

// CurrentMagnitude returns the decayed magnitude at time t:
// magnitude × 0.5^((t − created_at)/half_life). Cancellation does not stop
// decay; callers exclude cancelled pressures from braid composition
// themselves (IsEligibleForBraid).
func (p Pressure) CurrentMagnitude(t time.Time) float64 {
	if p.HalfLife <= 0 {
		return 0
	}
	elapsed := t.Sub(p.CreatedAt).Seconds()
	halfLifeSeconds := p.HalfLife.Seconds()
	return p.Magnitude * math.Pow(0.5, elapsed/halfLifeSeconds)
}

// IsActive reports whether t falls before expiry.
func (p Pressure) IsActive(t time.Time) bool {
	return t.Before(p.ExpiresAt)
}

// IsCancelled reports whether the pressure has been cancelled.
func (p Pressure) IsCancelled() bool {
	return p.CancelledAt != nil
}

// IsEligibleForBraid reports whether a pressure participates in braid
// composition at time t: active, unexpired, and uncancelled.
func (p Pressure) IsEligibleForBraid(t time.Time) bool {
	return !p.IsCancelled() && p.IsActive(t)
}

// BraidVector is the 4-component aggregate physics modulation input for one
// deployment target, produced by a physics tick.
type BraidVector struct {
	Capacity     float64
	Throttle     float64
	Cognition    float64
	RedeployBias float64
}

// Add accumulates a single pressure type's current magnitude into the
// matching vector component.
func (v *BraidVector) Add(pressureType PressureType, magnitude float64) {
	switch pressureType {
	case PressureCapacity:
		v.Capacity += magnitude
	case PressureThrottle:
		v.Throttle += magnitude
	case PressureCognition:
		v.Cognition += magnitude
	case PressureRedeployBias:
		v.RedeployBias += magnitude
	}
}

// InterferenceEvent records a pairwise cancellation applied during braid
// composition between two opposite-signed pressures of the same type.
type InterferenceEvent struct {
	DeploymentTarget      string
	PressureAID           string
	PressureBID           string
	Type                  PressureType
	InterferenceProbability float64
	ReductionFactor       float64
	TickID                string
	OccurredAt            time.Time
}

// InterferenceProbability computes min(1, |mA|·|mB|/10000).
func InterferenceProbability(magnitudeA, magnitudeB float64) float64 {
	p := math.Abs(magnitudeA) * math.Abs(magnitudeB) / 10000
	if p > 1 {
		return 1
	}
	return p
}
