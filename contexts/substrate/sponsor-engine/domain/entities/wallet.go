package entities

import "time"

// SponsorWallet holds a sponsor's unallocated credit balance.
type SponsorWallet struct {
	SponsorID string
	Balance   int64
}

// AgentCreditBalance holds an agent's allocated, spendable credit balance.
type AgentCreditBalance struct {
	AgentID string
	Balance int64
}

// TransactionType enumerates the CreditTransaction ledger entry kinds.
type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionAllocate TransactionType = "allocate"
)

// CreditTransaction is an append-only ledger row. For a purchase, AgentID
// is empty (the mint lands only in the sponsor wallet). For an allocation,
// both SponsorID and AgentID are set: the wallet decrement and the agent
// increment commit together (spec §4.4 conservation invariant).
type CreditTransaction struct {
	TransactionID  string
	SponsorID      string
	AgentID        string
	Type           TransactionType
	Amount         int64
	IdempotencyKey string
	CreatedAt      time.Time
}
