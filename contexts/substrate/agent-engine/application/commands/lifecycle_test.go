package commands_test

import (
	"context"
	"testing"

	"oxsubstrate/contexts/substrate/agent-engine/application/commands"
	"oxsubstrate/contexts/substrate/agent-engine/domain/entities"
)

func TestAllocateCapacityClampsToMax(t *testing.T) {
	_, _, lifecycle := newHarness(t)
	ctx := context.Background()

	agent, err := lifecycle.CreateAgent(ctx, commands.CreateAgentCommand{
		DeploymentTarget: "ox-sim-1",
		MaxBalance:       20,
		RegenPerHour:     0,
		StartingBalance:  15,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	capacity, err := lifecycle.AllocateCapacity(ctx, commands.AllocateCapacityCommand{
		AgentID: agent.AgentID,
		Amount:  50,
	})
	if err != nil {
		t.Fatalf("allocate capacity: %v", err)
	}
	if capacity.Balance != 20 {
		t.Fatalf("expected balance clamped to 20, got %d", capacity.Balance)
	}
}

func TestArchiveAgentIsIdempotent(t *testing.T) {
	_, _, lifecycle := newHarness(t)
	ctx := context.Background()

	agent, err := lifecycle.CreateAgent(ctx, commands.CreateAgentCommand{
		DeploymentTarget: "ox-sim-1",
		MaxBalance:       20,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	if err := lifecycle.ArchiveAgent(ctx, commands.ArchiveAgentCommand{AgentID: agent.AgentID}); err != nil {
		t.Fatalf("archive agent: %v", err)
	}
	if err := lifecycle.ArchiveAgent(ctx, commands.ArchiveAgentCommand{AgentID: agent.AgentID}); err != nil {
		t.Fatalf("archive already-archived agent should be a no-op: %v", err)
	}

	got, found, err := storeAgent(ctx, lifecycle, agent.AgentID)
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if !found {
		t.Fatalf("expected agent to be found")
	}
	if got.Status != entities.StatusArchived {
		t.Fatalf("expected archived status, got %q", got.Status)
	}
}

func storeAgent(ctx context.Context, lifecycle commands.LifecycleUseCase, agentID string) (entities.Agent, bool, error) {
	return lifecycle.Repo.GetAgent(ctx, agentID)
}
