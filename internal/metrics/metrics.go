package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streampack_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streampack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streampack_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streampack_upload_bytes_total",
			Help: "Total bytes accepted through the upload endpoint",
		},
	)
)

// Job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streampack_jobs_total",
			Help: "Jobs that reached a terminal state",
		},
		[]string{"status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streampack_job_duration_seconds",
			Help:    "Wall time from claim to terminal state",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"status"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streampack_jobs_in_flight",
			Help: "Jobs currently being processed",
		},
	)

	LadderRepresentations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streampack_ladder_representations",
			Help:    "Number of representations per generated ladder",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8},
		},
	)

	PreprocessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streampack_preprocess_total",
			Help: "Preprocessing decisions by outcome",
		},
		[]string{"outcome"}, // "clean", "stripped", "fallback"
	)
)

// External tool metrics
var (
	ToolInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streampack_tool_invocations_total",
			Help: "External tool invocations by operation and outcome",
		},
		[]string{"tool", "operation", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streampack_tool_duration_seconds",
			Help:    "External tool run time in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"tool", "operation"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streampack_events_published_total",
			Help: "Job transition events by backend and outcome",
		},
		[]string{"backend", "status"},
	)
)

// ObserveTool records one external tool run.
func ObserveTool(tool, operation string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ToolInvocationsTotal.WithLabelValues(tool, operation, status).Inc()
	ToolDuration.WithLabelValues(tool, operation).Observe(time.Since(started).Seconds())
}

// ObserveJob records a job reaching a terminal state.
func ObserveJob(status string, started time.Time) {
	JobsTotal.WithLabelValues(status).Inc()
	if !started.IsZero() {
		JobDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
	}
}
