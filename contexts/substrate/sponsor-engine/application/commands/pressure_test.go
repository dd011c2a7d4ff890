package commands_test

import (
	"context"
	"testing"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/adapters/memory"
	"oxsubstrate/contexts/substrate/sponsor-engine/application/commands"
	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/sponsor-engine/domain/errors"
)

func newPressureHarness() (*memory.Store, commands.WalletUseCase, commands.PressureUseCase) {
	store := memory.NewStore()
	return store,
		commands.WalletUseCase{Repo: store, Clock: store, IDGen: store},
		commands.PressureUseCase{Repo: store, Clock: store, IDGen: store}
}

func TestIssuePressureRejectsOutOfRangeMagnitude(t *testing.T) {
	_, _, uc := newPressureHarness()
	_, err := uc.IssuePressure(context.Background(), commands.IssuePressureCommand{
		SponsorID:        "sponsor-1",
		TargetDeployment: "ox-sim-1",
		Type:             entities.PressureThrottle,
		Magnitude:        150,
		HalfLife:         time.Hour,
	})
	if err != domainerrors.ErrInvalidMagnitude {
		t.Fatalf("expected ErrInvalidMagnitude, got %v", err)
	}
}

func TestIssuePressureRejectsShortHalfLife(t *testing.T) {
	_, _, uc := newPressureHarness()
	_, err := uc.IssuePressure(context.Background(), commands.IssuePressureCommand{
		SponsorID:        "sponsor-1",
		TargetDeployment: "ox-sim-1",
		Type:             entities.PressureThrottle,
		Magnitude:        10,
		HalfLife:         30 * time.Second,
	})
	if err != domainerrors.ErrInvalidHalfLife {
		t.Fatalf("expected ErrInvalidHalfLife, got %v", err)
	}
}

func TestIssuePressureDeductsCreditCostFromWallet(t *testing.T) {
	store, wallet, uc := newPressureHarness()
	ctx := context.Background()

	if _, err := wallet.PurchaseCredits(ctx, commands.PurchaseCreditsCommand{SponsorID: "sponsor-1", Amount: 1000}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	pressure, err := uc.IssuePressure(ctx, commands.IssuePressureCommand{
		SponsorID:        "sponsor-1",
		TargetDeployment: "ox-sim-1",
		Type:             entities.PressureThrottle,
		Magnitude:        20,
		HalfLife:         time.Hour,
	})
	if err != nil {
		t.Fatalf("issue pressure: %v", err)
	}
	if pressure.CreditCost != 200 {
		t.Fatalf("expected credit cost 200, got %d", pressure.CreditCost)
	}

	sponsorWallet, _, err := store.GetWallet(ctx, "sponsor-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if sponsorWallet.Balance != 800 {
		t.Fatalf("expected wallet balance 800 after issuing pressure, got %d", sponsorWallet.Balance)
	}
}

func TestCancelPressureRejectsWrongSponsor(t *testing.T) {
	_, wallet, uc := newPressureHarness()
	ctx := context.Background()

	if _, err := wallet.PurchaseCredits(ctx, commands.PurchaseCreditsCommand{SponsorID: "sponsor-1", Amount: 1000}); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	pressure, err := uc.IssuePressure(ctx, commands.IssuePressureCommand{
		SponsorID:        "sponsor-1",
		TargetDeployment: "ox-sim-1",
		Type:             entities.PressureCapacity,
		Magnitude:        5,
		HalfLife:         time.Hour,
	})
	if err != nil {
		t.Fatalf("issue pressure: %v", err)
	}

	err = uc.CancelPressure(ctx, commands.CancelPressureCommand{PressureID: pressure.ID, SponsorID: "sponsor-2"})
	if err != domainerrors.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCancelPressureIsIdempotent(t *testing.T) {
	_, wallet, uc := newPressureHarness()
	ctx := context.Background()

	if _, err := wallet.PurchaseCredits(ctx, commands.PurchaseCreditsCommand{SponsorID: "sponsor-1", Amount: 1000}); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	pressure, err := uc.IssuePressure(ctx, commands.IssuePressureCommand{
		SponsorID:        "sponsor-1",
		TargetDeployment: "ox-sim-1",
		Type:             entities.PressureCapacity,
		Magnitude:        5,
		HalfLife:         time.Hour,
	})
	if err != nil {
		t.Fatalf("issue pressure: %v", err)
	}

	cmd := commands.CancelPressureCommand{PressureID: pressure.ID, SponsorID: "sponsor-1"}
	if err := uc.CancelPressure(ctx, cmd); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := uc.CancelPressure(ctx, cmd); err != nil {
		t.Fatalf("second cancel should be a no-op, got: %v", err)
	}
}
