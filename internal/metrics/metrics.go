package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Benchmark metrics
var (
	// RequestsTotal counts backend calls by backend and outcome
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_requests_total",
			Help: "Total number of backend calls by backend, phase, and outcome",
		},
		[]string{"backend", "phase", "outcome"},
	)

	// RequestDuration tracks end-to-end backend call latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loadgen_request_duration_seconds",
			Help:    "End-to-end latency of backend calls by backend",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
		},
		[]string{"backend"},
	)

	// TimeToFirstToken tracks the latency of the first streamed chunk
	TimeToFirstToken = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loadgen_time_to_first_token_seconds",
			Help:    "Latency from request start to the first streamed chunk",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"backend"},
	)

	// InterTokenLatency tracks latencies between consecutive streamed chunks
	InterTokenLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loadgen_inter_token_latency_seconds",
			Help:    "Latency between consecutive streamed chunks",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"backend"},
	)

	// QueueDepth tracks the number of pending requests
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loadgen_queue_depth",
			Help: "Number of requests waiting in the request queue",
		},
	)

	// WorkersActive tracks workers currently running
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loadgen_workers_active",
			Help: "Number of workers currently running",
		},
	)

	// WorkerFailures counts workers terminated by a backend call error
	WorkerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_worker_failures_total",
			Help: "Total number of workers terminated by a backend call error",
		},
		[]string{"backend"},
	)
)

// HTTP request metrics for the results API server
var (
	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts the total number of HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)
)

// Helper functions for common metric operations

// RecordCall records one backend call with its latency and per-chunk
// timings. phase is "warmup" or "benchmark".
func RecordCall(backend, phase string, duration time.Duration, tokenGenTime []float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	RequestsTotal.WithLabelValues(backend, phase, outcome).Inc()
	if err != nil {
		return
	}
	RequestDuration.WithLabelValues(backend).Observe(duration.Seconds())
	for i, t := range tokenGenTime {
		if i == 0 {
			TimeToFirstToken.WithLabelValues(backend).Observe(t)
		} else {
			InterTokenLatency.WithLabelValues(backend).Observe(t)
		}
	}
}

// RecordWorkerFailure increments the worker failure counter
func RecordWorkerFailure(backend string) {
	WorkerFailures.WithLabelValues(backend).Inc()
}

// SetQueueDepth updates the pending request gauge
func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

// WorkerStarted increments the active worker gauge
func WorkerStarted() {
	WorkersActive.Inc()
}

// WorkerStopped decrements the active worker gauge
func WorkerStopped() {
	WorkersActive.Dec()
}

// RecordHTTPRequest records the duration and increments the counter for an
// HTTP request
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}
