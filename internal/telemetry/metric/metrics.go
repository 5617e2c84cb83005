// Package metric provides Prometheus metrics for the storage subsystem.
//
// Metrics are registered on a caller-supplied registry so an embedding
// dashboard can expose them alongside its own.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the storage subsystem's Prometheus collectors.
type Metrics struct {
	// BackendsLive is the number of live backend instances.
	BackendsLive prometheus.Gauge

	// CachesLive is the number of live cache wrapper instances.
	CachesLive prometheus.Gauge

	// CacheHits counts cache reads served before expiry.
	CacheHits prometheus.Counter

	// CacheMisses counts cache reads of absent or expired keys.
	CacheMisses prometheus.Counter

	// CacheEvictions counts entries evicted by LRU pressure.
	CacheEvictions prometheus.Counter

	// ExpiredSwept counts entries removed by cleanup sweeps.
	ExpiredSwept prometheus.Counter

	// FileRewrites counts full-namespace file rewrites, by namespace.
	FileRewrites *prometheus.CounterVec

	// FileRewriteErrors counts failed file rewrites, by namespace.
	FileRewriteErrors *prometheus.CounterVec

	// SweepDuration observes CleanupExpiredCaches latency in seconds.
	SweepDuration prometheus.Histogram
}

// New creates the metric set and registers it with the registry.
// A nil registry returns a working but unregistered set, which keeps
// instrumented code paths free of nil checks in tests.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		BackendsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storekit",
			Subsystem: "manager",
			Name:      "backends_live",
			Help:      "Number of live storage backend instances",
		}),
		CachesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storekit",
			Subsystem: "manager",
			Name:      "caches_live",
			Help:      "Number of live cached storage instances",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache reads served before expiry",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache reads of absent or expired keys",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted by LRU pressure",
		}),
		ExpiredSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "cache",
			Name:      "expired_swept_total",
			Help:      "Entries removed by cleanup sweeps",
		}),
		FileRewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "file",
			Name:      "rewrites_total",
			Help:      "Full-namespace file rewrites",
		}, []string{"namespace"}),
		FileRewriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "file",
			Name:      "rewrite_errors_total",
			Help:      "Failed full-namespace file rewrites",
		}, []string{"namespace"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storekit",
			Subsystem: "cache",
			Name:      "sweep_duration_seconds",
			Help:      "Latency of full expiry sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.BackendsLive,
			m.CachesLive,
			m.CacheHits,
			m.CacheMisses,
			m.CacheEvictions,
			m.ExpiredSwept,
			m.FileRewrites,
			m.FileRewriteErrors,
			m.SweepDuration,
		)
	}

	return m
}
