// Package metrics defines the Prometheus metrics exported by the EMSP service.
//
// Metrics are registered on an injected registerer so tests can use a private
// registry. All methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// AuthorizationDecisions counts finalized decisions by allowed value and path (hook|local).
	AuthorizationDecisions *prometheus.CounterVec

	// AuthorizationDuration observes decision latency in seconds.
	AuthorizationDuration prometheus.Histogram

	// CommandCallbacks counts command result deliveries by command type and outcome.
	CommandCallbacks *prometheus.CounterVec

	// OutboundClientLookups counts client cache lookups by result (hit|miss|none).
	OutboundClientLookups *prometheus.CounterVec

	// SweptEntries counts entries removed by the sweeper by kind.
	SweptEntries *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthorizationDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emsp_authorization_decisions_total",
				Help: "Total number of token authorization decisions by result and path.",
			},
			[]string{"allowed", "path"},
		),
		AuthorizationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emsp_authorization_duration_seconds",
				Help:    "Duration of token authorization decisions in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		CommandCallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emsp_command_callbacks_total",
				Help: "Total number of command result callbacks by command and outcome.",
			},
			[]string{"command", "outcome"},
		),
		OutboundClientLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emsp_outbound_client_lookups_total",
				Help: "Total number of outbound client cache lookups by result.",
			},
			[]string{"result"},
		),
		SweptEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emsp_swept_entries_total",
				Help: "Total number of expired entries removed by the sweeper.",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.AuthorizationDecisions,
			m.AuthorizationDuration,
			m.CommandCallbacks,
			m.OutboundClientLookups,
			m.SweptEntries,
		)
	}
	return m
}

func (m *Metrics) ObserveDecision(allowed, path string, d time.Duration) {
	if m == nil {
		return
	}
	m.AuthorizationDecisions.WithLabelValues(allowed, path).Inc()
	m.AuthorizationDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveCallback(command, outcome string) {
	if m == nil {
		return
	}
	m.CommandCallbacks.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) ObserveClientLookup(result string) {
	if m == nil {
		return
	}
	m.OutboundClientLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSwept(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SweptEntries.WithLabelValues(kind).Add(float64(n))
}
