package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbor_parse_seconds",
		Help:    "Time spent parsing source text into a syntax tree.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language", "mode"})

	ParseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_parse_total",
		Help: "Total number of parse calls, by language and mode (full or incremental).",
	}, []string{"language", "mode"})

	ParseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbor_parse_failures_total",
		Help: "Total number of parser-level failures (not syntax errors).",
	})

	TreeNodes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbor_tree_nodes",
		Help:    "Node count of produced syntax tree snapshots.",
		Buckets: prometheus.ExponentialBuckets(16, 4, 8),
	}, []string{"language"})

	DiffDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbor_diff_seconds",
		Help:    "Time spent computing a structural diff.",
		Buckets: prometheus.DefBuckets,
	})

	DiffOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_diff_ops_total",
		Help: "Total number of emitted diff operations, by kind.",
	}, []string{"kind"})

	QueryMatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbor_query_matches_total",
		Help: "Total number of query matches produced.",
	})

	FallbackMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_fallback_matches_total",
		Help: "Total number of heuristic fallback spans produced, by language.",
	}, []string{"language"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbor_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatcherReparseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_watcher_reparse_total",
		Help: "Total number of watch-triggered reparses, by outcome.",
	}, []string{"outcome"})
)
