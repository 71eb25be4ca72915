package ledger

import (
	"context"
	"fmt"
	"sync"

	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
)

// InMemory keeps agent accounts in process memory. One RWMutex guards the
// account map and all bucket arithmetic, making every operation atomic with
// respect to the others.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[domain.AgentRef]*account
}

// account pins its currency on first credit; later operations in another
// currency are rejected rather than silently mixed.
type account struct {
	currency string
	buckets  map[Bucket]int64
}

func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[domain.AgentRef]*account)}
}

func (s *InMemory) Credit(_ context.Context, agent domain.AgentRef, bucket Bucket, amount domain.Money) error {
	if err := validateAmount(bucket, amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.getOrCreateAccount(agent, amount.Currency)
	if err != nil {
		return err
	}
	acc.buckets[bucket] += amount.Amount
	return nil
}

func (s *InMemory) Move(_ context.Context, agent domain.AgentRef, from, to Bucket, amount domain.Money) error {
	if err := validateAmount(from, amount); err != nil {
		return err
	}
	if !to.Valid() {
		return fmt.Errorf("ledger: invalid bucket %q", to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.getOrCreateAccount(agent, amount.Currency)
	if err != nil {
		return err
	}
	if acc.buckets[from] < amount.Amount {
		return fmt.Errorf("%w: %s holds %d, need %d", sentinel.ErrInsufficientFunds, from, acc.buckets[from], amount.Amount)
	}
	acc.buckets[from] -= amount.Amount
	acc.buckets[to] += amount.Amount
	return nil
}

func (s *InMemory) Debit(_ context.Context, agent domain.AgentRef, bucket Bucket, amount domain.Money) error {
	if err := validateAmount(bucket, amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.getOrCreateAccount(agent, amount.Currency)
	if err != nil {
		return err
	}
	if acc.buckets[bucket] < amount.Amount {
		return fmt.Errorf("%w: %s holds %d, need %d", sentinel.ErrInsufficientFunds, bucket, acc.buckets[bucket], amount.Amount)
	}
	acc.buckets[bucket] -= amount.Amount
	return nil
}

func (s *InMemory) Balances(_ context.Context, agent domain.AgentRef) (Balances, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[agent]
	if !ok {
		// An agent with no activity has four empty buckets, not an error.
		zero := domain.Zero("ngn")
		return Balances{Pending: zero, Locked: zero, Certified: zero, Withdrawable: zero}, nil
	}
	money := func(b Bucket) domain.Money {
		return domain.Money{Amount: acc.buckets[b], Currency: acc.currency}
	}
	return Balances{
		Pending:      money(BucketPending),
		Locked:       money(BucketLocked),
		Certified:    money(BucketCertified),
		Withdrawable: money(BucketWithdrawable),
	}, nil
}

// getOrCreateAccount returns the agent's account. Callers hold s.mu.
func (s *InMemory) getOrCreateAccount(agent domain.AgentRef, currency string) (*account, error) {
	acc, ok := s.accounts[agent]
	if !ok {
		acc = &account{currency: currency, buckets: make(map[Bucket]int64)}
		s.accounts[agent] = acc
		return acc, nil
	}
	if acc.currency != currency {
		return nil, fmt.Errorf("ledger: currency mismatch for agent %s: account %s, op %s", agent, acc.currency, currency)
	}
	return acc, nil
}

func validateAmount(bucket Bucket, amount domain.Money) error {
	if !bucket.Valid() {
		return fmt.Errorf("ledger: invalid bucket %q", bucket)
	}
	if amount.IsNegative() {
		return fmt.Errorf("ledger: negative amount %s", amount)
	}
	return nil
}
