package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_translations_total",
			Help: "Total number of natural-language translation calls by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	translationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_translation_duration_seconds",
			Help:    "Remote translation call latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_queries_total",
			Help: "Total number of generated statements executed by outcome.",
		},
		[]string{"outcome"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_duration_seconds",
			Help:    "Database execution latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_rows_returned",
			Help:    "Rows returned per executed statement.",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
		},
	)
	pipelineFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_pipeline_failures_total",
			Help: "Pipeline failures by stage and kind.",
		},
		[]string{"stage", "kind"},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_exports_total",
			Help: "Result exports by format.",
		},
		[]string{"format"},
	)
)

func init() {
	prometheus.MustRegister(
		translationsTotal,
		translationDurationSeconds,
		queriesTotal,
		queryDurationSeconds,
		queryRowsReturned,
		pipelineFailuresTotal,
		exportsTotal,
	)
}

func ObserveTranslation(provider string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	translationsTotal.WithLabelValues(provider, outcome).Inc()
	translationDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveQuery(rows int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queriesTotal.WithLabelValues(outcome).Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
	if err == nil {
		queryRowsReturned.Observe(float64(rows))
	}
}

func ObservePipelineFailure(stage, kind string) {
	pipelineFailuresTotal.WithLabelValues(stage, kind).Inc()
}

func IncrementExport(format string) {
	exportsTotal.WithLabelValues(format).Inc()
}
