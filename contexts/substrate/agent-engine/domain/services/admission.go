// Package services holds the Agent Action Engine's pure decision logic —
// the parts of the admission pipeline (spec §4.3) that touch no I/O and so
// are trivially unit-testable in isolation from Postgres.
package services

import (
	"time"

	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
)

// EnvironmentRejection returns the rejection reason the environment gate
// produces for snapshot at now given the current minute's throughput, or
// ("", false) if the action should proceed. Order follows spec §4.3 step 4
// exactly: window, then cognition availability, then throughput.
func EnvironmentRejection(snapshot entities.EnvironmentSnapshot, now time.Time, currentMinuteThroughput int) (entities.RejectionReason, bool) {
	if !snapshot.Present {
		return "", false
	}
	if snapshot.OutsideActiveWindow(now) {
		return entities.ReasonEnvironmentOutsideWindow, true
	}
	if snapshot.CognitionAvailability == entities.CognitionUnavailable {
		return entities.ReasonCognitionUnavailable, true
	}
	if snapshot.MaxThroughputPerMinute != nil && currentMinuteThroughput >= *snapshot.MaxThroughputPerMinute {
		return entities.ReasonThroughputExceeded, true
	}
	return "", false
}

// ComposeCost builds the pre-cognition cost breakdown (spec §4.3 step 6).
func ComposeCost(requestedCost, estimatedCost int) entities.CostBreakdown {
	return entities.CostBreakdown{
		RequestedCost: requestedCost,
		EstimatedCost: estimatedCost,
	}
}

// ArtifactType derives a projection-ready artifact type from an accepted
// action (spec §6 artifact derivation table). payloadType is read from the
// action payload when action_type is "create".
func ArtifactType(actionType entities.ActionType, payloadType string) string {
	switch actionType {
	case entities.ActionCommunicate:
		return "message"
	case entities.ActionExchange:
		return "message"
	case entities.ActionCreate:
		switch payloadType {
		case "proposal":
			return "proposal"
		case "diagram":
			return "diagram"
		case "dataset":
			return "dataset"
		default:
			return "proposal"
		}
	case entities.ActionCritique, entities.ActionCounterModel, entities.ActionRefusal, entities.ActionRederivation:
		return string(actionType)
	default:
		return "message"
	}
}
