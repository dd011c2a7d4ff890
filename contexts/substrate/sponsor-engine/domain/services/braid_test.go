package services_test

import (
	"testing"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	"oxsubstrate/contexts/substrate/sponsor-engine/domain/services"
)

func TestComposeBraidSumsNonInterferingPressures(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	pressures := []entities.Pressure{
		{
			ID: "p1", Type: entities.PressureCapacity, Magnitude: 10,
			TargetDeployment: "ox-sim-1", CreatedAt: now, HalfLife: time.Hour,
			ExpiresAt: entities.ExpiresAtFor(now, time.Hour),
		},
		{
			ID: "p2", Type: entities.PressureThrottle, Magnitude: 5,
			TargetDeployment: "ox-sim-1", CreatedAt: now, HalfLife: time.Hour,
			ExpiresAt: entities.ExpiresAtFor(now, time.Hour),
		},
	}

	vector, interferences := services.ComposeBraid(pressures, now, "tick-1")
	if len(interferences) != 0 {
		t.Fatalf("expected no interference between different pressure types, got %d", len(interferences))
	}
	if vector.Capacity != 10 {
		t.Fatalf("expected capacity 10, got %v", vector.Capacity)
	}
	if vector.Throttle != 5 {
		t.Fatalf("expected throttle 5, got %v", vector.Throttle)
	}
}

func TestComposeBraidAppliesPairwiseInterferenceForOppositeSignedSameType(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	pressures := []entities.Pressure{
		{
			ID: "p1", Type: entities.PressureThrottle, Magnitude: 40,
			TargetDeployment: "ox-sim-1", CreatedAt: now, HalfLife: time.Hour,
			ExpiresAt: entities.ExpiresAtFor(now, time.Hour),
		},
		{
			ID: "p2", Type: entities.PressureThrottle, Magnitude: -40,
			TargetDeployment: "ox-sim-1", CreatedAt: now, HalfLife: time.Hour,
			ExpiresAt: entities.ExpiresAtFor(now, time.Hour),
		},
	}

	vector, interferences := services.ComposeBraid(pressures, now, "tick-1")
	if len(interferences) != 1 {
		t.Fatalf("expected exactly one interference event, got %d", len(interferences))
	}
	wantProbability := entities.InterferenceProbability(40, -40)
	if interferences[0].InterferenceProbability != wantProbability {
		t.Fatalf("expected probability %v, got %v", wantProbability, interferences[0].InterferenceProbability)
	}
	wantMagnitude := 40*(1-wantProbability) + (-40)*(1-wantProbability)
	if vector.Throttle != wantMagnitude {
		t.Fatalf("expected throttle %v after interference, got %v", wantMagnitude, vector.Throttle)
	}
}

func TestComposeBraidExcludesCancelledAndExpiredPressures(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	cancelledAt := now.Add(-time.Minute)
	pressures := []entities.Pressure{
		{
			ID: "cancelled", Type: entities.PressureCapacity, Magnitude: 50,
			TargetDeployment: "ox-sim-1", CreatedAt: now.Add(-time.Hour), HalfLife: time.Hour,
			ExpiresAt: entities.ExpiresAtFor(now.Add(-time.Hour), time.Hour), CancelledAt: &cancelledAt,
		},
		{
			ID: "expired", Type: entities.PressureCapacity, Magnitude: 50,
			TargetDeployment: "ox-sim-1", CreatedAt: now.Add(-20 * time.Hour), HalfLife: time.Hour,
			ExpiresAt: entities.ExpiresAtFor(now.Add(-20*time.Hour), time.Hour),
		},
	}

	vector, interferences := services.ComposeBraid(pressures, now, "tick-1")
	if len(interferences) != 0 {
		t.Fatalf("expected no interference, got %d", len(interferences))
	}
	if vector.Capacity != 0 {
		t.Fatalf("expected zero capacity contribution from excluded pressures, got %v", vector.Capacity)
	}
}
