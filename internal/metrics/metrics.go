// Package metrics defines the Prometheus collectors for the conversion
// pipeline. Collectors are registered via promauto at package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pixmill"

// Batch metrics
var (
	BatchRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_runs_total",
			Help:      "Total number of batch runs started",
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Batch run duration distribution",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Total number of items processed, by terminal status",
		},
		[]string{"status"},
	)
)

// Conversion metrics
var (
	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Single-item conversion time distribution",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)

	OutputBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Total bytes of converted output produced",
		},
		[]string{"format"},
	)
)

// Annotation metrics
var (
	AnnotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotations_total",
			Help:      "Total number of AI annotation attempts, by outcome",
		},
		[]string{"outcome"},
	)
)

// Queue metrics
var (
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of items in the queue",
		},
	)

	ArchiveBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_builds_total",
			Help:      "Total number of archive builds, by outcome",
		},
		[]string{"outcome"},
	)
)
