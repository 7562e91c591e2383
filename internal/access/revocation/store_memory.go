package revocation

import (
	"context"
	"sync"
	"time"

	id "keymarket/pkg/domain"
)

// InMemoryList is the single-process implementation used in tests and
// deployments without Redis. TTLs are honored lazily on read.
type InMemoryList struct {
	mu      sync.RWMutex
	revoked map[id.CredentialID]time.Time // zero time = no expiry
}

func NewInMemoryList() *InMemoryList {
	return &InMemoryList{revoked: make(map[id.CredentialID]time.Time)}
}

func (l *InMemoryList) MarkRevoked(_ context.Context, credentialID id.CredentialID, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var until time.Time
	if ttl > 0 {
		until = time.Now().Add(ttl)
	}
	l.revoked[credentialID] = until
	return nil
}

func (l *InMemoryList) IsRevoked(_ context.Context, credentialID id.CredentialID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	until, ok := l.revoked[credentialID]
	if !ok {
		return false, nil
	}
	if !until.IsZero() && time.Now().After(until) {
		return false, nil
	}
	return true, nil
}
