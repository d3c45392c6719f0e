package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refdict",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Total number of input rows seen by the import pipeline broken down by outcome.",
	}, []string{"result"})

	importBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "refdict",
		Subsystem: "import",
		Name:      "fact_batches_total",
		Help:      "Total number of bulk fact writes issued by the import pipeline.",
	})

	importRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refdict",
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Total number of imports broken down by final status.",
	}, []string{"status"})

	relationItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refdict",
		Subsystem: "relations",
		Name:      "candidates_total",
		Help:      "Total number of parent candidates evaluated broken down by outcome.",
	}, []string{"result"})

	relationRebuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "refdict",
		Subsystem: "relations",
		Name:      "position_rebuild_seconds",
		Help:      "Duration of a single position's relation rebuild.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	readerAmbiguities = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "refdict",
		Subsystem: "reader",
		Name:      "ambiguous_total",
		Help:      "Total number of point-in-time lookups where more than one row was valid on the date.",
	}, []string{"kind"})
)

func RecordImportRows(imported, skipped int) {
	importRows.WithLabelValues("imported").Add(float64(imported))
	importRows.WithLabelValues("skipped").Add(float64(skipped))
}

func RecordFactBatch() {
	importBatches.Inc()
}

func RecordImportRun(status string) {
	importRuns.WithLabelValues(status).Inc()
}

func RecordRelationCandidates(created, skipped, failed int) {
	relationItems.WithLabelValues("created").Add(float64(created))
	relationItems.WithLabelValues("skipped").Add(float64(skipped))
	relationItems.WithLabelValues("failed").Add(float64(failed))
}

func ObserveRelationRebuild(seconds float64) {
	relationRebuildSeconds.Observe(seconds)
}

// RecordAmbiguity counts a point-in-time tie. kind is "relation" or "fact".
func RecordAmbiguity(kind string) {
	readerAmbiguities.WithLabelValues(kind).Inc()
}
