// Package memory is an in-memory ports.Repository used by tests and the
// in-process module wiring.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	"oxsubstrate/contexts/substrate/sponsor-engine/ports"
	"oxsubstrate/internal/shared/events"
)

const idPrefix = "mem-"

type outboxRow struct {
	EventID string
	Topic   string
	Payload []byte
}

type policyRunKey struct {
	policyID string
	tickID   string
	agentID  string
}

// Store is a mutex-guarded ports.Repository plus ports.Clock/IDGenerator.
type Store struct {
	mu sync.Mutex

	wallets           map[string]entities.SponsorWallet
	agentBalances     map[string]entities.AgentCreditBalance
	transactions      map[string]entities.CreditTransaction
	transactionsByKey map[string]string

	pressures map[string]entities.Pressure
	policies  map[string]entities.Policy
	runLogs   map[policyRunKey]entities.PolicyRunLog

	eventsByID map[string]events.Envelope
	outbox     []outboxRow

	idMu      sync.Mutex // guards idCounter only, so NewID is callable inside Transact
	idCounter int
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{
		wallets:           make(map[string]entities.SponsorWallet),
		agentBalances:     make(map[string]entities.AgentCreditBalance),
		transactions:      make(map[string]entities.CreditTransaction),
		transactionsByKey: make(map[string]string),
		pressures:         make(map[string]entities.Pressure),
		policies:          make(map[string]entities.Policy),
		runLogs:           make(map[policyRunKey]entities.PolicyRunLog),
		eventsByID:        make(map[string]events.Envelope),
	}
}

func (s *Store) Now() time.Time { return time.Now().UTC() }

func (s *Store) NewID(ctx context.Context) (string, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.idCounter++
	return idPrefix + strconv.Itoa(s.idCounter), nil
}

// Transact holds the store's mutex for fn's duration, giving the whole
// closure a consistent, exclusive view — sufficient for a single-process
// test double standing in for a serializable database transaction.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, s)
}

func (s *Store) GetWallet(ctx context.Context, sponsorID string) (entities.SponsorWallet, bool, error) {
	w, found := s.wallets[sponsorID]
	return w, found, nil
}

func (s *Store) SaveWallet(ctx context.Context, wallet entities.SponsorWallet) error {
	s.wallets[wallet.SponsorID] = wallet
	return nil
}

func (s *Store) GetAgentCreditBalance(ctx context.Context, agentID string) (entities.AgentCreditBalance, bool, error) {
	b, found := s.agentBalances[agentID]
	return b, found, nil
}

func (s *Store) SaveAgentCreditBalance(ctx context.Context, balance entities.AgentCreditBalance) error {
	s.agentBalances[balance.AgentID] = balance
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx entities.CreditTransaction) error {
	s.transactions[tx.TransactionID] = tx
	if tx.IdempotencyKey != "" {
		s.transactionsByKey[tx.IdempotencyKey] = tx.TransactionID
	}
	return nil
}

func (s *Store) FindTransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (entities.CreditTransaction, bool, error) {
	id, found := s.transactionsByKey[idempotencyKey]
	if !found {
		return entities.CreditTransaction{}, false, nil
	}
	return s.transactions[id], true, nil
}

func (s *Store) CreatePressure(ctx context.Context, pressure entities.Pressure) error {
	s.pressures[pressure.ID] = pressure
	return nil
}

func (s *Store) GetPressure(ctx context.Context, pressureID string) (entities.Pressure, bool, error) {
	p, found := s.pressures[pressureID]
	return p, found, nil
}

func (s *Store) CancelPressure(ctx context.Context, pressureID string, at time.Time) error {
	p, found := s.pressures[pressureID]
	if !found {
		return nil
	}
	cancelledAt := at
	p.CancelledAt = &cancelledAt
	s.pressures[pressureID] = p
	return nil
}

func (s *Store) ListActivePressures(ctx context.Context, target string, asOf time.Time) ([]entities.Pressure, error) {
	out := make([]entities.Pressure, 0)
	for _, p := range s.pressures {
		if p.TargetDeployment == target && p.IsEligibleForBraid(asOf) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) AppendInterference(ctx context.Context, event entities.InterferenceEvent) error {
	return nil // test double: interference events are observed via the emitted ox.physics.interference event, not queried back
}

// SeedPolicy is a test helper for registering a policy directly.
func (s *Store) SeedPolicy(policy entities.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policy.ID] = policy
}

func (s *Store) ListDuePolicies(ctx context.Context, now time.Time) ([]entities.Policy, error) {
	out := make([]entities.Policy, 0)
	for _, policy := range s.policies {
		if policy.DueForRun(now) {
			out = append(out, policy)
		}
	}
	return out, nil
}

func (s *Store) MarkPolicyRan(ctx context.Context, policyID string, ranAt time.Time) error {
	policy, found := s.policies[policyID]
	if !found {
		return nil
	}
	ran := ranAt
	policy.LastRunAt = &ran
	s.policies[policyID] = policy
	return nil
}

func (s *Store) AppendPolicyRunLog(ctx context.Context, log entities.PolicyRunLog) (bool, error) {
	key := policyRunKey{policyID: log.PolicyID, tickID: log.TickID, agentID: log.AgentID}
	if _, exists := s.runLogs[key]; exists {
		return false, nil
	}
	s.runLogs[key] = log
	return true, nil
}

func (s *Store) AppendEvent(ctx context.Context, env events.Envelope) error {
	if _, exists := s.eventsByID[env.EventID]; exists {
		return nil
	}
	s.eventsByID[env.EventID] = env
	return nil
}

func (s *Store) AppendOutbox(ctx context.Context, eventID, topic string, payload []byte) error {
	for _, row := range s.outbox {
		if row.EventID == eventID {
			return nil
		}
	}
	s.outbox = append(s.outbox, outboxRow{EventID: eventID, Topic: topic, Payload: payload})
	return nil
}
