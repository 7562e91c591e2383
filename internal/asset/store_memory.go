package asset

import (
	"context"
	"sync"

	id "keymarket/pkg/domain"
	"keymarket/pkg/platform/sentinel"
)

// InMemoryStore keeps assets in a mutex-guarded map. The write lock is held
// across validate+mutate in Execute, which gives the per-record atomic
// read-modify-write the registry relies on.
type InMemoryStore struct {
	mu     sync.RWMutex
	assets map[id.AssetID]*Asset
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{assets: make(map[id.AssetID]*Asset)}
}

func (s *InMemoryStore) Create(_ context.Context, a *Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assets[a.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *a
	s.assets[a.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, assetID id.AssetID) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[assetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.Principal) ([]*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var owned []*Asset
	for _, a := range s.assets {
		if a.Owner == owner {
			clone := *a
			owned = append(owned, &clone)
		}
	}
	return owned, nil
}

func (s *InMemoryStore) Execute(_ context.Context, assetID id.AssetID, validate func(*Asset) error, mutate func(*Asset)) (*Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[assetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(a); err != nil {
		return nil, err
	}
	mutate(a)
	clone := *a
	return &clone, nil
}

func (s *InMemoryStore) Remove(_ context.Context, assetID id.AssetID, validate func(*Asset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[assetID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := validate(a); err != nil {
		return err
	}
	delete(s.assets, assetID)
	return nil
}
