package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the listing ledger.
type Metrics struct {
	ListingsCreated  prometheus.Counter
	ListingsDelisted prometheus.Counter
	ListingsSettled  prometheus.Counter
}

// New creates and registers the listing metrics.
func New() *Metrics {
	return &Metrics{
		ListingsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_listings_created_total",
			Help: "Total listings created",
		}),
		ListingsDelisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_listings_delisted_total",
			Help: "Total listings delisted by their seller",
		}),
		ListingsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_listings_settled_total",
			Help: "Total listings deactivated by purchase settlement",
		}),
	}
}
