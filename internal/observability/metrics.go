package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracing_queue_messages_processed_total",
			Help: "Queue messages handled, by queue and outcome",
		},
		[]string{"queue", "status"}, // status=success/dropped/failure
	)

	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracing_queue_messages_published_total",
			Help: "Queue messages published, by queue",
		},
		[]string{"queue"},
	)

	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracing_rows_processed_total",
			Help: "CSV rows seen by the validation-enrichment engine",
		},
		[]string{"outcome"}, // enriched/invalid
	)

	TracesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracing_traces_written_total",
			Help: "Analytics rows written by the finalizer",
		},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracing_run_duration_seconds",
			Help:    "Duration of one processing run per component",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"component"},
	)
)
