package commands_test

import (
	"context"
	"testing"

	"oxsubstrate/contexts/substrate/sponsor-engine/adapters/memory"
	"oxsubstrate/contexts/substrate/sponsor-engine/application/commands"
	domainerrors "oxsubstrate/contexts/substrate/sponsor-engine/domain/errors"
)

func newWalletHarness() (*memory.Store, commands.WalletUseCase) {
	store := memory.NewStore()
	return store, commands.WalletUseCase{Repo: store, Clock: store, IDGen: store}
}

func TestPurchaseCreditsRejectsNonPositiveAmount(t *testing.T) {
	_, uc := newWalletHarness()
	_, err := uc.PurchaseCredits(context.Background(), commands.PurchaseCreditsCommand{
		SponsorID: "sponsor-1",
		Amount:    0,
	})
	if err != domainerrors.ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestPurchaseCreditsIsIdempotent(t *testing.T) {
	store, uc := newWalletHarness()
	ctx := context.Background()

	first, err := uc.PurchaseCredits(ctx, commands.PurchaseCreditsCommand{
		SponsorID:      "sponsor-1",
		Amount:         500,
		IdempotencyKey: "purchase-1",
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if first.Replayed {
		t.Fatalf("expected first purchase not replayed")
	}

	second, err := uc.PurchaseCredits(ctx, commands.PurchaseCreditsCommand{
		SponsorID:      "sponsor-1",
		Amount:         500,
		IdempotencyKey: "purchase-1",
	})
	if err != nil {
		t.Fatalf("replay purchase: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replay on second purchase with same idempotency key")
	}
	if second.Transaction.TransactionID != first.Transaction.TransactionID {
		t.Fatalf("expected same transaction on replay")
	}

	wallet, found, err := store.GetWallet(ctx, "sponsor-1")
	if err != nil || !found {
		t.Fatalf("expected wallet to exist, found=%v err=%v", found, err)
	}
	if wallet.Balance != 500 {
		t.Fatalf("expected balance 500 after single effective purchase, got %d", wallet.Balance)
	}
}

func TestAllocateCreditsRejectsInsufficientBalance(t *testing.T) {
	_, uc := newWalletHarness()
	ctx := context.Background()

	_, err := uc.AllocateCredits(ctx, commands.AllocateCreditsCommand{
		SponsorID: "sponsor-1",
		AgentID:   "agent-1",
		Amount:    100,
	})
	if err != domainerrors.ErrSponsorCreditInsufficient {
		t.Fatalf("expected ErrSponsorCreditInsufficient, got %v", err)
	}
}

func TestAllocateCreditsMovesBalanceBetweenWalletAndAgent(t *testing.T) {
	store, uc := newWalletHarness()
	ctx := context.Background()

	if _, err := uc.PurchaseCredits(ctx, commands.PurchaseCreditsCommand{SponsorID: "sponsor-1", Amount: 1000}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	result, err := uc.AllocateCredits(ctx, commands.AllocateCreditsCommand{
		SponsorID: "sponsor-1",
		AgentID:   "agent-1",
		Amount:    400,
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if result.Transaction.Amount != 400 {
		t.Fatalf("expected transaction amount 400, got %d", result.Transaction.Amount)
	}

	wallet, _, err := store.GetWallet(ctx, "sponsor-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.Balance != 600 {
		t.Fatalf("expected wallet balance 600 after allocation, got %d", wallet.Balance)
	}

	balance, found, err := store.GetAgentCreditBalance(ctx, "agent-1")
	if err != nil || !found {
		t.Fatalf("expected agent balance to exist, found=%v err=%v", found, err)
	}
	if balance.Balance != 400 {
		t.Fatalf("expected agent balance 400, got %d", balance.Balance)
	}
}
