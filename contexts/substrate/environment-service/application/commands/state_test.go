package commands_test

import (
	"context"
	"testing"
	"time"

	"oxsubstrate/contexts/substrate/environment-service/adapters/memory"
	"oxsubstrate/contexts/substrate/environment-service/application/commands"
	"oxsubstrate/contexts/substrate/environment-service/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/environment-service/domain/errors"
)

func newStateHarness() (*memory.Store, commands.StateUseCase) {
	store := memory.NewStore()
	return store, commands.StateUseCase{Repo: store, Clock: store, IDGen: store}
}

func TestSetStateRejectsInvalidThrottleFactor(t *testing.T) {
	_, uc := newStateHarness()
	_, err := uc.SetState(context.Background(), commands.SetStateCommand{
		DeploymentTarget:      "ox-sim-1",
		CognitionAvailability: entities.CognitionFull,
		ThrottleFactor:        11,
	})
	if err != domainerrors.ErrInvalidThrottleFactor {
		t.Fatalf("expected ErrInvalidThrottleFactor, got %v", err)
	}
}

func TestSetStateRejectsInvertedWindow(t *testing.T) {
	_, uc := newStateHarness()
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err := uc.SetState(context.Background(), commands.SetStateCommand{
		DeploymentTarget:      "ox-sim-1",
		CognitionAvailability: entities.CognitionFull,
		WindowStart:           &start,
		WindowEnd:             &end,
	})
	if err != domainerrors.ErrInvalidWindow {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestSetStateThenRemoveClearsConstraints(t *testing.T) {
	store, uc := newStateHarness()
	ctx := context.Background()

	state, err := uc.SetState(ctx, commands.SetStateCommand{
		DeploymentTarget:      "ox-sim-1",
		CognitionAvailability: entities.CognitionUnavailable,
		ThrottleFactor:        2.5,
		Reason:                "maintenance",
		CorrelationID:         "corr-1",
		ActorID:               "ops-1",
	})
	if err != nil {
		t.Fatalf("set state: %v", err)
	}
	if state.CognitionAvailability != entities.CognitionUnavailable {
		t.Fatalf("expected unavailable, got %q", state.CognitionAvailability)
	}

	got, found, err := store.GetState(ctx, "ox-sim-1")
	if err != nil || !found {
		t.Fatalf("expected state to be persisted, found=%v err=%v", found, err)
	}
	if got.Reason != "maintenance" {
		t.Fatalf("expected reason persisted, got %q", got.Reason)
	}

	if err := uc.RemoveState(ctx, commands.RemoveStateCommand{DeploymentTarget: "ox-sim-1", ActorID: "ops-1"}); err != nil {
		t.Fatalf("remove state: %v", err)
	}
	_, found, err = store.GetState(ctx, "ox-sim-1")
	if err != nil {
		t.Fatalf("get state after remove: %v", err)
	}
	if found {
		t.Fatalf("expected state removed")
	}
}
