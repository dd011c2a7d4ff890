package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/application"
	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	domainerrors "oxsubstrate/contexts/substrate/sponsor-engine/domain/errors"
	"oxsubstrate/contexts/substrate/sponsor-engine/ports"
	"oxsubstrate/internal/shared/events"
)

// PurchaseCreditsCommand mints credits into a sponsor wallet (stubbed, per
// spec §4.4, as a pure mint plus a treasury ledger row).
type PurchaseCreditsCommand struct {
	SponsorID      string
	Amount         int64
	IdempotencyKey string
}

// AllocateCreditsCommand moves credits from a sponsor wallet to an agent's
// credit balance.
type AllocateCreditsCommand struct {
	SponsorID      string
	AgentID        string
	Amount         int64
	IdempotencyKey string
}

// WalletResult reports the transaction applied and whether it was a cached
// idempotent replay.
type WalletResult struct {
	Transaction entities.CreditTransaction
	Replayed    bool
}

// WalletUseCase implements the sponsor wallet/credit flow.
type WalletUseCase struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc WalletUseCase) logger() *slog.Logger { return application.ResolveLogger(uc.Logger) }

func (uc WalletUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now()
	}
	return time.Now().UTC()
}

// PurchaseCredits mints Amount into the sponsor's wallet.
func (uc WalletUseCase) PurchaseCredits(ctx context.Context, cmd PurchaseCreditsCommand) (WalletResult, error) {
	if cmd.Amount <= 0 {
		return WalletResult{}, domainerrors.ErrInvalidAmount
	}
	var result WalletResult
	err := uc.Repo.Transact(ctx, func(ctx context.Context, tx ports.Repository) error {
		if cmd.IdempotencyKey != "" {
			if existing, found, err := tx.FindTransactionByIdempotencyKey(ctx, cmd.IdempotencyKey); err != nil {
				return err
			} else if found {
				result = WalletResult{Transaction: existing, Replayed: true}
				return nil
			}
		}

		sponsorID := strings.TrimSpace(cmd.SponsorID)
		wallet, found, err := tx.GetWallet(ctx, sponsorID)
		if err != nil {
			return err
		}
		if !found {
			wallet = entities.SponsorWallet{SponsorID: sponsorID}
		}
		wallet.Balance += cmd.Amount
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}

		txID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		record := entities.CreditTransaction{
			TransactionID:  txID,
			SponsorID:      sponsorID,
			Type:           entities.TransactionPurchase,
			Amount:         cmd.Amount,
			IdempotencyKey: cmd.IdempotencyKey,
			CreatedAt:      uc.now(),
		}
		if err := tx.AppendTransaction(ctx, record); err != nil {
			return err
		}
		result = WalletResult{Transaction: record}
		return nil
	})
	if err != nil {
		uc.logger().Error("credit purchase failed",
			"event", "sponsor_credit_purchase_failed",
			"module", "sponsor-engine",
			"layer", "application",
			"sponsor_id", strings.TrimSpace(cmd.SponsorID),
			"error", err.Error(),
		)
		return WalletResult{}, err
	}
	return result, nil
}

// AllocateCredits moves Amount from the sponsor's wallet into the agent's
// credit balance, committing both sides atomically.
func (uc WalletUseCase) AllocateCredits(ctx context.Context, cmd AllocateCreditsCommand) (WalletResult, error) {
	if cmd.Amount <= 0 {
		return WalletResult{}, domainerrors.ErrInvalidAmount
	}
	var result WalletResult
	err := uc.Repo.Transact(ctx, func(ctx context.Context, tx ports.Repository) error {
		if cmd.IdempotencyKey != "" {
			if existing, found, err := tx.FindTransactionByIdempotencyKey(ctx, cmd.IdempotencyKey); err != nil {
				return err
			} else if found {
				result = WalletResult{Transaction: existing, Replayed: true}
				return nil
			}
		}

		sponsorID := strings.TrimSpace(cmd.SponsorID)
		agentID := strings.TrimSpace(cmd.AgentID)

		wallet, found, err := tx.GetWallet(ctx, sponsorID)
		if err != nil {
			return err
		}
		if !found || wallet.Balance < cmd.Amount {
			return domainerrors.ErrSponsorCreditInsufficient
		}
		wallet.Balance -= cmd.Amount
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}

		balance, found, err := tx.GetAgentCreditBalance(ctx, agentID)
		if err != nil {
			return err
		}
		if !found {
			balance = entities.AgentCreditBalance{AgentID: agentID}
		}
		balance.Balance += cmd.Amount
		if err := tx.SaveAgentCreditBalance(ctx, balance); err != nil {
			return err
		}

		txID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		record := entities.CreditTransaction{
			TransactionID:  txID,
			SponsorID:      sponsorID,
			AgentID:        agentID,
			Type:           entities.TransactionAllocate,
			Amount:         cmd.Amount,
			IdempotencyKey: cmd.IdempotencyKey,
			CreatedAt:      uc.now(),
		}
		if err := tx.AppendTransaction(ctx, record); err != nil {
			return err
		}
		result = WalletResult{Transaction: record}
		return emitCreditEvent(ctx, tx, uc.IDGen, uc.now(), "sponsor.credits_allocated", sponsorID, map[string]any{
			"sponsor_id": sponsorID,
			"agent_id":   agentID,
			"amount":     cmd.Amount,
		})
	})
	if err != nil {
		uc.logger().Error("credit allocation failed",
			"event", "sponsor_credit_allocate_failed",
			"module", "sponsor-engine",
			"layer", "application",
			"sponsor_id", strings.TrimSpace(cmd.SponsorID),
			"agent_id", strings.TrimSpace(cmd.AgentID),
			"error", err.Error(),
		)
		return WalletResult{}, err
	}
	return result, nil
}

func emitCreditEvent(ctx context.Context, tx ports.Repository, idGen ports.IDGenerator, now time.Time, eventType, actorID string, payload any) error {
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	env, err := events.Build(eventID, eventType, now, actorID, "", "", payload, nil)
	if err != nil {
		return err
	}
	if err := tx.AppendEvent(ctx, env); err != nil {
		return err
	}
	envelopeBytes, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, env.EventID, events.TopicAgents, envelopeBytes)
}
