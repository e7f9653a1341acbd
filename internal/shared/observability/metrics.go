package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tangle_analysis_seconds",
		Help:    "Time spent on one analysis pass.",
		Buckets: prometheus.DefBuckets,
	}, []string{"level", "mode"})

	GraphNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tangle_graph_nodes_total",
		Help: "Number of nodes in the dependency graph.",
	}, []string{"level"})

	GraphEdges = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tangle_graph_edges_total",
		Help: "Number of edges in the dependency graph.",
	}, []string{"level"})

	CyclesDetected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tangle_cycles_total",
		Help: "Number of distinct circular dependencies in the last pass.",
	}, []string{"level"})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tangle_cache_hits_total",
		Help: "Analysis passes served from a valid cached graph.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tangle_cache_misses_total",
		Help: "Analysis passes that had to rebuild the graph.",
	})

	CacheWritesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tangle_cache_writes_dropped_total",
		Help: "Cache persistence writes skipped by the rate limiter.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tangle_watcher_events_total",
		Help: "File system events received by the watcher.",
	})

	InvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tangle_invalidations_total",
		Help: "Files invalidated across all cached levels.",
	})
)
