// Package metrics provides Prometheus metrics for classification and review.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "techtag"

var (
	// BatchItemsTotal counts items handled by batch runs.
	// Labels: outcome (suggested, no_match, error)
	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Total number of items processed by batch classification",
		},
		[]string{"outcome"},
	)

	// BatchRunsTotal counts batch runs.
	// Labels: result (completed, partial, cancelled, failed)
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of batch classification runs",
		},
		[]string{"result"},
	)

	// ConfigLoadsTotal counts reads of the ontology and rule sources.
	// Labels: source (ontology, rules), result (ok, configuration, validation)
	ConfigLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "loads_total",
			Help:      "Total number of configuration source reads",
		},
		[]string{"source", "result"},
	)

	// CacheInvalidationsTotal counts explicit cache invalidations.
	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "cache_invalidations_total",
			Help:      "Total number of configuration cache invalidations",
		},
	)

	// ReviewTransitionsTotal counts items moved by review operations.
	// Labels: to (approved, corrected, rejected, untagged)
	ReviewTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "transitions_total",
			Help:      "Total number of review status transitions",
		},
		[]string{"to"},
	)

	// AnalyzeDuration tracks scoring plus resolution time per chunk.
	AnalyzeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "analyze_duration_seconds",
			Help:      "Duration of chunk analysis in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		},
	)
)

// ResultLabel maps an error to the result label used by ConfigLoadsTotal.
func ResultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var kinded interface{ ErrorKind() string }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	return "error"
}
