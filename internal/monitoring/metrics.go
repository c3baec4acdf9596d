// Package monitoring holds the module's Prometheus metrics.
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the filesystem layers.
type Metrics struct {
	// Cache overlay metrics
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheInvalidations prometheus.Counter

	// Change notification metrics
	EventsPublished *prometheus.CounterVec
	WatchersActive  prometheus.Gauge
	PollRuns        prometheus.Counter
	PollErrors      prometheus.Counter

	// Remote buffering metrics
	RemotePulls     prometheus.Counter
	RemotePullBytes prometheus.Counter
	RemotePushes    prometheus.Counter
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics collector, creating and
// registering it on first use.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = &Metrics{
			CacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "anyfs_cache_hits_total",
					Help: "Metadata cache hits by operation",
				},
				[]string{"op"},
			),
			CacheMisses: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "anyfs_cache_misses_total",
					Help: "Metadata cache misses by operation",
				},
				[]string{"op"},
			),
			CacheInvalidations: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "anyfs_cache_invalidations_total",
					Help: "Cache invalidations triggered by mutating operations",
				},
			),
			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "anyfs_watch_events_total",
					Help: "Change notification events published by kind",
				},
				[]string{"kind"},
			),
			WatchersActive: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "anyfs_watchers_active",
					Help: "Currently registered watchers",
				},
			),
			PollRuns: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "anyfs_watch_poll_runs_total",
					Help: "Completed polling passes",
				},
			),
			PollErrors: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "anyfs_watch_poll_errors_total",
					Help: "Per-directory polling failures (retried, never fatal)",
				},
			),
			RemotePulls: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "anyfs_remote_pulls_total",
					Help: "Demand-driven pulls from remote sources",
				},
			),
			RemotePullBytes: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "anyfs_remote_pull_bytes_total",
					Help: "Bytes pulled from remote sources",
				},
			),
			RemotePushes: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "anyfs_remote_pushes_total",
					Help: "Buffer push-backs to remote sources",
				},
			),
		}
	})
	return defaultMetrics
}
