package access

import (
	"context"
	"sort"
	"sync"

	id "keymarket/pkg/domain"
	"keymarket/pkg/platform/sentinel"
)

// InMemoryStore keeps credentials in a mutex-guarded map with a per-holder
// index. Execute holds the write lock across validate+mutate and re-indexes
// on holder changes.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[id.CredentialID]*Credential
	byHolder    map[id.Principal][]id.CredentialID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		credentials: make(map[id.CredentialID]*Credential),
		byHolder:    make(map[id.Principal][]id.CredentialID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, c *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credentials[c.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := cloneCredential(c)
	s.credentials[c.ID] = clone
	s.byHolder[c.Holder] = append(s.byHolder[c.Holder], c.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, credentialID id.CredentialID) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCredential(c), nil
}

func (s *InMemoryStore) ListByHolder(_ context.Context, holder id.Principal) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byHolder[holder]
	held := make([]*Credential, 0, len(ids))
	for _, credentialID := range ids {
		if c, ok := s.credentials[credentialID]; ok {
			held = append(held, cloneCredential(c))
		}
	}
	sort.Slice(held, func(i, j int) bool { return held[i].GrantedAt.Before(held[j].GrantedAt) })
	return held, nil
}

func (s *InMemoryStore) Execute(_ context.Context, credentialID id.CredentialID, validate func(*Credential) error, mutate func(*Credential)) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	previousHolder := c.Holder
	mutate(c)
	if c.Holder != previousHolder {
		s.reindex(credentialID, previousHolder, c.Holder)
	}
	return cloneCredential(c), nil
}

// reindex moves a credential between holder buckets. Caller holds the lock.
func (s *InMemoryStore) reindex(credentialID id.CredentialID, from, to id.Principal) {
	bucket := s.byHolder[from]
	for i, existing := range bucket {
		if existing == credentialID {
			s.byHolder[from] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	s.byHolder[to] = append(s.byHolder[to], credentialID)
}

func cloneCredential(c *Credential) *Credential {
	clone := *c
	if c.ExpiresAt != nil {
		expires := *c.ExpiresAt
		clone.ExpiresAt = &expires
	}
	clone.EncryptedKey = append([]byte(nil), c.EncryptedKey...)
	return &clone
}
