package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the access-credential ledger.
type Metrics struct {
	CredentialsIssued  prometheus.Counter
	CredentialsRevoked prometheus.Counter
	ValidityChecks     *prometheus.CounterVec
}

// New creates and registers the access metrics.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_credentials_issued_total",
			Help: "Total access credentials minted",
		}),
		CredentialsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_credentials_revoked_total",
			Help: "Total access credentials revoked by their issuer",
		}),
		ValidityChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keymarket_credential_validity_checks_total",
			Help: "Validity checks by result",
		}, []string{"result"}),
	}
}
