package commands_test

import (
	"context"
	"testing"
	"time"

	"oxsubstrate/contexts/substrate/agent-engine/adapters/cognition"
	"oxsubstrate/contexts/substrate/agent-engine/adapters/memory"
	"oxsubstrate/contexts/substrate/agent-engine/application/commands"
	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
)

func newHarness(t *testing.T) (*memory.Store, commands.AttemptUseCase, commands.LifecycleUseCase) {
	t.Helper()
	store := memory.NewStore()
	registry := cognition.NewRegistry(nil)
	attempt := commands.AttemptUseCase{
		Repo:      store,
		Clock:     store,
		IDGen:     store,
		Cognition: registry,
	}
	lifecycle := commands.LifecycleUseCase{Repo: store, Clock: store, IDGen: store}
	return store, attempt, lifecycle
}

func TestAttemptAcceptsWithinCapacity(t *testing.T) {
	store, attempt, lifecycle := newHarness(t)
	ctx := context.Background()

	agent, err := lifecycle.CreateAgent(ctx, commands.CreateAgentCommand{
		DeploymentTarget: "ox-sim-1",
		MaxBalance:       100,
		RegenPerHour:     10,
		StartingBalance:  50,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	result, err := attempt.Attempt(ctx, commands.AttemptCommand{
		AgentID:        agent.AgentID,
		ActionType:     entities.ActionCommunicate,
		RequestedCost:  5,
		IdempotencyKey: "attempt-1",
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected acceptance, got reason %q", result.Reason)
	}

	cap, err := store.LockCapacity(ctx, agent.AgentID)
	if err != nil {
		t.Fatalf("lock capacity: %v", err)
	}
	if cap.Balance != 45 {
		t.Fatalf("expected balance 45 after charge, got %d", cap.Balance)
	}
}

func TestAttemptIsIdempotent(t *testing.T) {
	_, attempt, lifecycle := newHarness(t)
	ctx := context.Background()

	agent, err := lifecycle.CreateAgent(ctx, commands.CreateAgentCommand{
		DeploymentTarget: "ox-sim-1",
		MaxBalance:       100,
		RegenPerHour:     10,
		StartingBalance:  50,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	cmd := commands.AttemptCommand{
		AgentID:        agent.AgentID,
		ActionType:     entities.ActionCommunicate,
		RequestedCost:  5,
		IdempotencyKey: "attempt-replay",
	}
	first, err := attempt.Attempt(ctx, cmd)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	second, err := attempt.Attempt(ctx, cmd)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replayed result")
	}
	if first.ActionLog.LogID != second.ActionLog.LogID {
		t.Fatalf("expected same log id, got %s and %s", first.ActionLog.LogID, second.ActionLog.LogID)
	}
}

func TestAttemptRejectsInsufficientCapacity(t *testing.T) {
	_, attempt, lifecycle := newHarness(t)
	ctx := context.Background()

	agent, err := lifecycle.CreateAgent(ctx, commands.CreateAgentCommand{
		DeploymentTarget: "ox-sim-1",
		MaxBalance:       100,
		RegenPerHour:     10,
		StartingBalance:  3,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	result, err := attempt.Attempt(ctx, commands.AttemptCommand{
		AgentID:        agent.AgentID,
		ActionType:     entities.ActionCommunicate,
		RequestedCost:  5,
		IdempotencyKey: "attempt-insufficient",
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if result.Accepted {
		t.Fatalf("expected rejection")
	}
	if result.Reason != string(entities.ReasonInsufficientCapacity) {
		t.Fatalf("expected insufficient_capacity, got %q", result.Reason)
	}
}

func TestAttemptRejectsOutsideActiveWindow(t *testing.T) {
	store, attempt, lifecycle := newHarness(t)
	ctx := context.Background()

	agent, err := lifecycle.CreateAgent(ctx, commands.CreateAgentCommand{
		DeploymentTarget: "ox-sim-2",
		MaxBalance:       100,
		RegenPerHour:     10,
		StartingBalance:  50,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	windowStart := time.Now().UTC().Add(24 * time.Hour)
	windowEnd := windowStart.Add(time.Hour)
	store.SeedEnvironment(entities.EnvironmentSnapshot{
		DeploymentTarget:      "ox-sim-2",
		CognitionAvailability: entities.CognitionFull,
		WindowStart:           &windowStart,
		WindowEnd:             &windowEnd,
		Present:               true,
	})

	result, err := attempt.Attempt(ctx, commands.AttemptCommand{
		AgentID:        agent.AgentID,
		ActionType:     entities.ActionCommunicate,
		RequestedCost:  5,
		IdempotencyKey: "attempt-window",
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if result.Accepted {
		t.Fatalf("expected rejection")
	}
	if result.Reason != string(entities.ReasonEnvironmentOutsideWindow) {
		t.Fatalf("expected environment_outside_active_window, got %q", result.Reason)
	}
}

func TestAttemptRequiresSubjectForImplicatingType(t *testing.T) {
	_, attempt, lifecycle := newHarness(t)
	ctx := context.Background()

	agent, err := lifecycle.CreateAgent(ctx, commands.CreateAgentCommand{
		DeploymentTarget: "ox-sim-1",
		MaxBalance:       100,
		RegenPerHour:     10,
		StartingBalance:  50,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	_, err = attempt.Attempt(ctx, commands.AttemptCommand{
		AgentID:        agent.AgentID,
		ActionType:     entities.ActionCritique,
		RequestedCost:  5,
		IdempotencyKey: "attempt-missing-subject",
	})
	if err == nil {
		t.Fatalf("expected error for missing subject agent")
	}
}
