// Package metrics exposes the coordinator's prometheus instrumentation
// (SPEC_FULL.md §9 expansion): session lifecycle counters/gauges, handshake
// duration, and transfer throughput. Ambient infrastructure, wired from
// cmd/helixd's /metrics HTTP endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every HeliX metric behind one struct so the coordinator
// takes a single dependency instead of package-level globals.
type Registry struct {
	SessionsActive          prometheus.Gauge
	SessionsTotal           *prometheus.CounterVec
	HandshakeDurationSeconds prometheus.Histogram
	TransfersActive         prometheus.Gauge
	TransferBytesTotal      *prometheus.CounterVec
}

// New constructs and registers every metric against reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helix_sessions_active",
			Help: "Number of sessions currently tracked by the coordinator, in any non-terminal state.",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helix_sessions_total",
			Help: "Total sessions that reached a terminal outcome, labeled by outcome.",
		}, []string{"outcome"}),
		HandshakeDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "helix_handshake_duration_seconds",
			Help:    "Time from local_initiate/HandleType1Inbound to Active.",
			Buckets: prometheus.DefBuckets,
		}),
		TransfersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helix_transfers_active",
			Help: "Number of file transfers currently in flight.",
		}),
		TransferBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helix_transfer_bytes_total",
			Help: "Total file-transfer bytes processed, labeled by direction.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.SessionsActive, m.SessionsTotal, m.HandshakeDurationSeconds, m.TransfersActive, m.TransferBytesTotal)
	return m
}

// NewUnregistered builds a Registry backed by a fresh prometheus.Registry,
// for tests and callers that don't want to touch the default registerer.
func NewUnregistered() *Registry {
	return New(prometheus.NewRegistry())
}
