package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PolyLedger.
type Metrics struct {
	// --- Replay ---
	ReplayRuns      *prometheus.CounterVec
	ReplayDuration  prometheus.Histogram
	ReplayEvents    prometheus.Histogram
	ReplayMalformed prometheus.Counter
	ReplayWarnings  *prometheus.CounterVec

	// --- Fetch ---
	FetchRequests         *prometheus.CounterVec
	FetchCategoryFailures *prometheus.CounterVec

	// --- Cache ---
	CacheReads     *prometheus.CounterVec
	CacheWrites    prometheus.Counter
	CacheWriteErrs prometheus.Counter

	// --- Refresh ---
	RefreshRequests *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	replayBuckets := []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0}
	fetchBuckets := []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

	return &Metrics{
		// Replay
		ReplayRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poly_replay_runs_total",
			Help: "Full-history replay passes",
		}, []string{"trigger"}),

		ReplayDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poly_replay_duration_seconds",
			Help:    "Time for one full replay pass",
			Buckets: replayBuckets,
		}),

		ReplayEvents: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poly_replay_events",
			Help:    "Events folded per replay pass",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		}),

		ReplayMalformed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poly_replay_malformed_events_total",
			Help: "Events dropped by validation",
		}),

		ReplayWarnings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poly_replay_warnings_total",
			Help: "Data-quality warnings (oversell, unresolved redeem)",
		}, []string{"kind"}),

		// Fetch
		FetchRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poly_fetch_requests_total",
			Help: "Upstream activity fetches",
		}, []string{"status"}),

		FetchCategoryFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poly_fetch_category_failures_total",
			Help: "Per-category fetch failures",
		}, []string{"category"}),

		// Cache
		CacheReads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poly_cache_reads_total",
			Help: "Cache read decisions",
		}, []string{"freshness"}),

		CacheWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poly_cache_writes_total",
			Help: "Period batches written to the cache",
		}),

		CacheWriteErrs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poly_cache_write_errors_total",
			Help: "Failed cache writes",
		}),

		// Refresh
		RefreshRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poly_refresh_requests_total",
			Help: "Wallet refresh runs",
		}, []string{"status"}),

		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poly_refresh_duration_seconds",
			Help:    "Fetch + replay + cache write for one wallet",
			Buckets: fetchBuckets,
		}),
	}
}
