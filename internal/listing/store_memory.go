package listing

import (
	"context"
	"sort"
	"sync"

	id "keymarket/pkg/domain"
	"keymarket/pkg/platform/sentinel"
)

// InMemoryStore keeps listings in a mutex-guarded map. Execute holds the
// write lock across validate+mutate, which is what makes two concurrent
// settlements of one listing resolve to exactly one success.
type InMemoryStore struct {
	mu       sync.RWMutex
	listings map[id.ListingID]*Listing
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{listings: make(map[id.ListingID]*Listing)}
}

func (s *InMemoryStore) Create(_ context.Context, l *Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.listings[l.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *l
	s.listings[l.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, listingID id.ListingID) (*Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[listingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *l
	return &clone, nil
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]*Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []*Listing
	for _, l := range s.listings {
		if l.Active {
			clone := *l
			active = append(active, &clone)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	return active, nil
}

func (s *InMemoryStore) ListBySeller(_ context.Context, seller id.Principal) ([]*Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var owned []*Listing
	for _, l := range s.listings {
		if l.Seller == seller {
			clone := *l
			owned = append(owned, &clone)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.Before(owned[j].CreatedAt) })
	return owned, nil
}

func (s *InMemoryStore) Execute(_ context.Context, listingID id.ListingID, validate func(*Listing) error, mutate func(*Listing)) (*Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(l); err != nil {
		return nil, err
	}
	mutate(l)
	clone := *l
	return &clone, nil
}
