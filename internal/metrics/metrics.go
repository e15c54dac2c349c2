// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noteshare_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noteshare_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// NoteOperationsTotal counts note uploads, downloads, ratings and deletions by outcome.
	NoteOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noteshare_note_operations_total",
			Help: "Total number of note operations.",
		},
		[]string{"operation", "result"},
	)

	UploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "noteshare_uploaded_bytes_total",
			Help: "Total number of bytes accepted by uploads.",
		},
	)
)

// ObserveNoteOperation records the outcome of a note operation.
func ObserveNoteOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	NoteOperationsTotal.WithLabelValues(operation, result).Inc()
}
