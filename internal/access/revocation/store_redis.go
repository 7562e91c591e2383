// Package revocation keeps a fast-path mirror of revoked credential IDs so
// the public validity check can answer without hitting the primary store.
// The credential store remains the source of truth; the mirror is best-effort
// and only ever errs on the side of a primary-store lookup.
package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "keymarket/pkg/domain"
)

var isRevokedDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "keymarket_credential_revocation_check_duration_ms",
	Help:    "Latency of credential revocation checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// Redis key prefix for revoked credentials
const revokedKeyPrefix = "crl:cred:"

// List tracks revoked credential IDs.
type List interface {
	MarkRevoked(ctx context.Context, credentialID id.CredentialID, ttl time.Duration) error
	IsRevoked(ctx context.Context, credentialID id.CredentialID) (bool, error)
}

// RedisList is the Redis-backed implementation, recommended for distributed
// deployments where multiple instances share revocation state.
type RedisList struct {
	client *redis.Client
}

// NewRedisList constructs a Redis-backed revocation list.
func NewRedisList(client *redis.Client) *RedisList {
	return &RedisList{client: client}
}

// MarkRevoked records a revocation. A zero ttl keeps the marker forever
// (never-expiring credentials); otherwise the marker can lapse once the
// credential would have expired anyway.
func (l *RedisList) MarkRevoked(ctx context.Context, credentialID id.CredentialID, ttl time.Duration) error {
	key := revokedKeyPrefix + credentialID.String()
	// Store "1" as a simple marker; the key existence is what matters
	return l.client.Set(ctx, key, "1", ttl).Err()
}

// IsRevoked checks the mirror. A missing key means "not known revoked here",
// not "valid".
func (l *RedisList) IsRevoked(ctx context.Context, credentialID id.CredentialID) (bool, error) {
	start := time.Now()
	defer func() {
		isRevokedDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	key := revokedKeyPrefix + credentialID.String()
	_, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
