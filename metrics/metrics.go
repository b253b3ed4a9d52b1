// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OrdersRecorded      prometheus.Counter
	Redemptions         prometheus.Counter
	RedemptionConflicts prometheus.Counter
	Searches            prometheus.Counter
	StoreErrors         prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		OrdersRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_orders_recorded_total",
			Help: "Total number of credit entries appended",
		}),
		Redemptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_redemptions_total",
			Help: "Total number of successful redemptions",
		}),
		RedemptionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_redemption_conflicts_total",
			Help: "Redemptions refused because one was already in flight",
		}),
		Searches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_directory_searches_total",
			Help: "Total number of directory searches executed",
		}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_store_errors_total",
			Help: "Total number of document store failures surfaced",
		}),
	}
}

func (m *Metrics) IncOrdersRecorded() {
	if m != nil {
		m.OrdersRecorded.Inc()
	}
}

func (m *Metrics) IncRedemptions() {
	if m != nil {
		m.Redemptions.Inc()
	}
}

func (m *Metrics) IncRedemptionConflicts() {
	if m != nil {
		m.RedemptionConflicts.Inc()
	}
}

func (m *Metrics) IncSearches() {
	if m != nil {
		m.Searches.Inc()
	}
}

func (m *Metrics) IncStoreErrors() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}
