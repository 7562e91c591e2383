package revenue

import (
	"context"
	"math"
	"sync"

	id "keymarket/pkg/domain"
	"keymarket/pkg/platform/sentinel"
)

// InMemoryStore keeps balances in a mutex-guarded map. The single lock covers
// both halves of Credit and the read-zero of WithdrawAll, which is all the
// serialization the balance invariants need in one process.
type InMemoryStore struct {
	mu       sync.RWMutex
	balances map[id.Principal]uint64
	platform uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{balances: make(map[id.Principal]uint64)}
}

func (s *InMemoryStore) Credit(_ context.Context, seller id.Principal, sellerAmount, platformFee uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A credit that would wrap a balance is rejected whole, like the
	// Postgres store's constraint failure. Neither balance moves.
	if s.balances[seller] > math.MaxUint64-sellerAmount || s.platform > math.MaxUint64-platformFee {
		return sentinel.ErrInvalidState
	}
	s.balances[seller] += sellerAmount
	s.platform += platformFee
	return nil
}

func (s *InMemoryStore) Balance(_ context.Context, principal id.Principal) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[principal], nil
}

func (s *InMemoryStore) WithdrawAll(_ context.Context, principal id.Principal) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount := s.balances[principal]
	s.balances[principal] = 0
	return amount, nil
}

func (s *InMemoryStore) PlatformBalance(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.platform, nil
}

func (s *InMemoryStore) WithdrawPlatform(_ context.Context, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount > s.platform {
		return sentinel.ErrInvalidState
	}
	s.platform -= amount
	return nil
}
