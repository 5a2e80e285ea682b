// Package pipeline — metrics.go registers the Prometheus metrics for the
// evidence indexing pipeline.
package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pipelineMetrics holds all Prometheus metrics owned by the indexing pipeline.
// A single instance is created in New and stored on Indexer so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type pipelineMetrics struct {
	// indexedTotal counts completed indexing runs, partitioned by outcome:
	// "ok", "degraded", or "error".
	indexedTotal *prometheus.CounterVec

	// indexDurationSeconds records the wall-clock duration of each indexing
	// run from enrichment start to relational update.
	indexDurationSeconds prometheus.Histogram

	// reconcileLagTotal counts indexing runs whose relational update failed,
	// leaving the record to be picked up by a reconcile sweep.
	reconcileLagTotal prometheus.Counter

	// deindexedTotal counts completed removals, partitioned by outcome:
	// "ok" or "vector_orphaned" (relational row gone, vector delete failed).
	deindexedTotal *prometheus.CounterVec
}

// newPipelineMetrics registers all pipeline metrics against reg. promauto.With
// is used so each call registers into the provided registry rather than the
// global default — this keeps unit tests hermetic.
func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(reg)

	return &pipelineMetrics{
		indexedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "pipeline",
			Name:      "indexed_total",
			Help:      "Total number of evidence indexing runs, partitioned by outcome.",
		}, []string{"outcome"}),

		indexDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evidence",
			Subsystem: "pipeline",
			Name:      "index_duration_seconds",
			Help:      "Wall-clock duration of evidence indexing runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),

		reconcileLagTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "pipeline",
			Name:      "reconcile_lag_total",
			Help:      "Indexing runs whose relational update failed and await reconciliation.",
		}),

		deindexedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "pipeline",
			Name:      "deindexed_total",
			Help:      "Total number of evidence removals, partitioned by outcome.",
		}, []string{"outcome"}),
	}
}
