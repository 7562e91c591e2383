package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the revenue ledger.
type Metrics struct {
	SalesRecorded         prometheus.Counter
	SellerAmountTotal     prometheus.Counter
	PlatformFeeTotal      prometheus.Counter
	EarningsWithdrawals   prometheus.Counter
	PlatformWithdrawals   prometheus.Counter
}

// New creates and registers the revenue metrics.
func New() *Metrics {
	return &Metrics{
		SalesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_sales_recorded_total",
			Help: "Total record_sale invocations",
		}),
		SellerAmountTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_seller_amount_total",
			Help: "Cumulative amount credited to sellers, smallest currency unit",
		}),
		PlatformFeeTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_platform_fee_total",
			Help: "Cumulative platform fee income, smallest currency unit",
		}),
		EarningsWithdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_earnings_withdrawals_total",
			Help: "Total seller withdrawals",
		}),
		PlatformWithdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymarket_platform_withdrawals_total",
			Help: "Total platform fee withdrawals",
		}),
	}
}
