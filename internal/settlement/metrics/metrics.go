package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for purchase settlement.
type Metrics struct {
	PurchasesCompleted prometheus.Counter
	PurchasesFailed    *prometheus.CounterVec
	PurchaseDuration   prometheus.Histogram
}

// New creates and registers the settlement metrics.
func New() *Metrics {
	return &Metrics{
		PurchasesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_purchases_completed_total",
			Help: "Total successful purchase settlements",
		}),
		PurchasesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keymarket_purchases_failed_total",
			Help: "Failed purchase attempts by error code",
		}, []string{"code"}),
		PurchaseDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "keymarket_purchase_duration_seconds",
			Help:    "End-to-end purchase settlement latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
