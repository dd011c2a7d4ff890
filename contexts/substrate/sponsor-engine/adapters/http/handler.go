// Package httpadapter maps transport DTOs into application commands and
// back, the inbound-adapter facade the HTTP transport layer calls into.
package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/application"
	"oxsubstrate/contexts/substrate/sponsor-engine/application/commands"
	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	httptransport "oxsubstrate/contexts/substrate/sponsor-engine/transport/http"
)

// Handler is the inbound adapter facade used by the HTTP transport layer.
type Handler struct {
	Wallet    commands.WalletUseCase
	Pressures commands.PressureUseCase
	Logger    *slog.Logger
}

// PurchaseCreditsHandler maps POST /sponsor/:s/credits/purchase.
func (h Handler) PurchaseCreditsHandler(ctx context.Context, sponsorID, idempotencyKey string, req httptransport.PurchaseCreditsRequest) (httptransport.TransactionResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	result, err := h.Wallet.PurchaseCredits(ctx, commands.PurchaseCreditsCommand{
		SponsorID:      sponsorID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		logger.Error("credit purchase request failed",
			"event", "sponsor_http_purchase_failed",
			"module", "sponsor-engine",
			"layer", "adapter",
			"sponsor_id", strings.TrimSpace(sponsorID),
			"error", err.Error(),
		)
		return httptransport.TransactionResponse{}, err
	}
	return mapTransaction(result), nil
}

// AllocateCreditsHandler maps POST /sponsor/:s/agents/:a/credits/allocate.
func (h Handler) AllocateCreditsHandler(ctx context.Context, sponsorID, agentID, idempotencyKey string, req httptransport.AllocateCreditsRequest) (httptransport.TransactionResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	result, err := h.Wallet.AllocateCredits(ctx, commands.AllocateCreditsCommand{
		SponsorID:      sponsorID,
		AgentID:        agentID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		logger.Error("credit allocation request failed",
			"event", "sponsor_http_allocate_failed",
			"module", "sponsor-engine",
			"layer", "adapter",
			"sponsor_id", strings.TrimSpace(sponsorID),
			"agent_id", strings.TrimSpace(agentID),
			"error", err.Error(),
		)
		return httptransport.TransactionResponse{}, err
	}
	return mapTransaction(result), nil
}

// IssuePressureHandler maps POST /sponsor/:s/pressures.
func (h Handler) IssuePressureHandler(ctx context.Context, sponsorID string, req httptransport.IssuePressureRequest) (httptransport.PressureResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	pressure, err := h.Pressures.IssuePressure(ctx, commands.IssuePressureCommand{
		SponsorID:        sponsorID,
		TargetDeployment: req.TargetDeployment,
		TargetAgentID:    req.TargetAgentID,
		Type:             entities.PressureType(req.Type),
		Magnitude:        req.Magnitude,
		HalfLife:         secondsToDuration(req.HalfLifeSeconds),
	})
	if err != nil {
		logger.Error("pressure issue request failed",
			"event", "sponsor_http_pressure_issue_failed",
			"module", "sponsor-engine",
			"layer", "adapter",
			"sponsor_id", strings.TrimSpace(sponsorID),
			"error", err.Error(),
		)
		return httptransport.PressureResponse{}, err
	}
	return mapPressure(pressure), nil
}

// CancelPressureHandler maps DELETE /sponsor/:s/pressures/:id.
func (h Handler) CancelPressureHandler(ctx context.Context, sponsorID, pressureID string) error {
	return h.Pressures.CancelPressure(ctx, commands.CancelPressureCommand{
		PressureID: pressureID,
		SponsorID:  sponsorID,
	})
}

func secondsToDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

func mapTransaction(r commands.WalletResult) httptransport.TransactionResponse {
	return httptransport.TransactionResponse{
		TransactionID: r.Transaction.TransactionID,
		SponsorID:     r.Transaction.SponsorID,
		AgentID:       r.Transaction.AgentID,
		Type:          string(r.Transaction.Type),
		Amount:        r.Transaction.Amount,
		Replayed:      r.Replayed,
	}
}

func mapPressure(p entities.Pressure) httptransport.PressureResponse {
	return httptransport.PressureResponse{
		ID:               p.ID,
		SponsorID:        p.SponsorID,
		TargetDeployment: p.TargetDeployment,
		TargetAgentID:    p.TargetAgentID,
		Type:             string(p.Type),
		Magnitude:        p.Magnitude,
		HalfLifeSeconds:  int64(p.HalfLife.Seconds()),
		CreditCost:       p.CreditCost,
	}
}
