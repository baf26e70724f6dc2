// Package metrics registers the service's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the auction service. All metrics
// use the bidmore_auction_ namespace.
type Metrics struct {
	CreatesTotal    *prometheus.CounterVec
	BidsTotal       *prometheus.CounterVec
	TransfersTotal  prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers the service metrics on the given registry.
// Returns nil if reg is nil.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		CreatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bidmore",
			Subsystem: "auction",
			Name:      "creates_total",
			Help:      "Total create operations by outcome.",
		}, []string{"outcome"}),

		BidsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bidmore",
			Subsystem: "auction",
			Name:      "bids_total",
			Help:      "Total bid operations by outcome.",
		}, []string{"outcome"}),

		TransfersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bidmore",
			Subsystem: "auction",
			Name:      "transfer_instructions_total",
			Help:      "Total transfer instructions emitted by accepted bids.",
		}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bidmore",
			Subsystem: "auction",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds by route.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.CreatesTotal,
		m.BidsTotal,
		m.TransfersTotal,
		m.RequestDuration,
	)
	return m
}

// ObserveCreate records one create operation outcome.
func (m *Metrics) ObserveCreate(outcome string) {
	if m == nil {
		return
	}
	m.CreatesTotal.WithLabelValues(outcome).Inc()
}

// ObserveBid records one bid operation outcome.
func (m *Metrics) ObserveBid(outcome string) {
	if m == nil {
		return
	}
	m.BidsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTransfer records one emitted transfer instruction.
func (m *Metrics) ObserveTransfer() {
	if m == nil {
		return
	}
	m.TransfersTotal.Inc()
}

// ObserveRequest records one request duration.
func (m *Metrics) ObserveRequest(route string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}
