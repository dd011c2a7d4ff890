package commands_test

import (
	"context"
	"testing"
	"time"

	"oxsubstrate/contexts/substrate/environment-service/adapters/memory"
	"oxsubstrate/contexts/substrate/environment-service/application/commands"
	domainerrors "oxsubstrate/contexts/substrate/environment-service/domain/errors"
)

func TestCreateLocalityAndSetMembership(t *testing.T) {
	store := memory.NewStore()
	uc := commands.LocalityUseCase{Repo: store, Clock: store, IDGen: store}
	ctx := context.Background()

	locality, err := uc.CreateLocality(ctx, commands.CreateLocalityCommand{
		DeploymentTarget:    "ox-sim-1",
		Name:                "north-quadrant",
		Density:             0.4,
		InterferenceDensity: 0.1,
		VisibilityRadius:    10,
		EvidenceHalfLife:    time.Hour,
	})
	if err != nil {
		t.Fatalf("create locality: %v", err)
	}
	if !locality.Active {
		t.Fatalf("expected new locality to be active")
	}

	if err := uc.SetMembership(ctx, commands.SetMembershipCommand{
		LocalityID: locality.ID,
		AgentID:    "agent-1",
		Weight:     0.75,
	}); err != nil {
		t.Fatalf("set membership: %v", err)
	}

	memberships, err := store.ListMemberships(ctx, locality.ID)
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(memberships) != 1 || memberships[0].Weight != 0.75 {
		t.Fatalf("expected one membership with weight 0.75, got %+v", memberships)
	}
}

func TestSetMembershipRejectsUnknownLocality(t *testing.T) {
	store := memory.NewStore()
	uc := commands.LocalityUseCase{Repo: store, Clock: store, IDGen: store}

	err := uc.SetMembership(context.Background(), commands.SetMembershipCommand{
		LocalityID: "missing",
		AgentID:    "agent-1",
		Weight:     0.5,
	})
	if err != domainerrors.ErrLocalityNotFound {
		t.Fatalf("expected ErrLocalityNotFound, got %v", err)
	}
}
