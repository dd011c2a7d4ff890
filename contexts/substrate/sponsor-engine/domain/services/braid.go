package services

import (
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
)

// ComposeBraid aggregates a deployment's eligible pressures into a 4-vector
// at time t, applying pairwise interference between opposite-signed
// pressures of the same type before summing (spec §4.4).
//
// The reduction factor applied to each interfering pressure's magnitude
// equals its interference probability (an Open Question in the
// specification with no prescribed formula; this is the simplest one
// consistent with "min(1, ...)" already being a [0,1] fraction).
func ComposeBraid(pressures []entities.Pressure, t time.Time, tickID string) (entities.BraidVector, []entities.InterferenceEvent) {
	eligible := make([]entities.Pressure, 0, len(pressures))
	magnitudes := make(map[string]float64, len(pressures))
	for _, p := range pressures {
		if !p.IsEligibleForBraid(t) {
			continue
		}
		eligible = append(eligible, p)
		magnitudes[p.ID] = p.CurrentMagnitude(t)
	}

	var interferences []entities.InterferenceEvent
	for i := 0; i < len(eligible); i++ {
		a := eligible[i]
		ma := magnitudes[a.ID]
		for j := i + 1; j < len(eligible); j++ {
			b := eligible[j]
			if a.Type != b.Type {
				continue
			}
			mb := magnitudes[b.ID]
			if (ma > 0 && mb > 0) || (ma < 0 && mb < 0) || ma == 0 || mb == 0 {
				continue
			}
			probability := entities.InterferenceProbability(ma, mb)
			reduction := probability
			magnitudes[a.ID] = ma * (1 - reduction)
			magnitudes[b.ID] = mb * (1 - reduction)
			ma = magnitudes[a.ID]
			interferences = append(interferences, entities.InterferenceEvent{
				DeploymentTarget:        a.TargetDeployment,
				PressureAID:             a.ID,
				PressureBID:             b.ID,
				Type:                    a.Type,
				InterferenceProbability: probability,
				ReductionFactor:         reduction,
				TickID:                  tickID,
				OccurredAt:              t,
			})
		}
	}

	var vector entities.BraidVector
	for _, p := range eligible {
		vector.Add(p.Type, magnitudes[p.ID])
	}
	return vector, interferences
}
