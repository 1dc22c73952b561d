// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - chunk processing per strategy
// - the disk chunk cache
// - the distributed task transport
// - the status API

var (
	// Chunk Processing Metrics
	ChunkReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chunk_read_duration_seconds",
			Help:    "Duration of a single read_chunk call including the callback",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)

	ChunksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunks_processed_total",
			Help: "Total number of chunks delivered to a callback",
		},
		[]string{"strategy"},
	)

	ChunksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunks_failed_total",
			Help: "Total number of chunks that could not be produced or consumed",
		},
		[]string{"strategy"},
	)

	ApplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apply_duration_seconds",
			Help:    "Duration of a full-cube apply call",
			Buckets: []float64{0.01, 0.1, 1, 10, 60, 300, 1800, 3600},
		},
		[]string{"strategy"},
	)

	ApplyInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "apply_in_flight",
			Help: "Current number of running apply calls",
		},
	)

	ApplyProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apply_progress_ratio",
			Help: "Fraction of chunks finished by the most recent apply call (0-1)",
		},
		[]string{"strategy"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of chunks served from cache",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of chunks computed by the parent node",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_size_bytes",
			Help: "Current number of bytes stored",
		},
		[]string{"cache_type"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached chunks",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of chunks evicted to stay within the size budget",
		},
		[]string{"cache_type"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of non-fatal cache failures",
		},
		[]string{"cache_type", "operation"}, // operation: "persist", "load", "evict", "index"
	)

	// Transport Metrics
	TasksPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transport_tasks_published_total",
			Help: "Total number of chunk tasks published by coordinators",
		},
	)

	TasksConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transport_tasks_consumed_total",
			Help: "Total number of chunk tasks executed by workers",
		},
	)

	ResultsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_results_received_total",
			Help: "Total number of chunk results received by coordinators",
		},
		[]string{"status"}, // "ok", "failed", "duplicate"
	)

	TaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transport_task_duration_seconds",
			Help:    "Time a worker spent producing one chunk",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version", "mode"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordChunk records one chunk delivered by a processor.
func RecordChunk(strategy string, duration time.Duration, err error) {
	ChunkReadDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if err != nil {
		ChunksFailed.WithLabelValues(strategy).Inc()
		return
	}
	ChunksProcessed.WithLabelValues(strategy).Inc()
}

// RecordApply records a finished apply call.
func RecordApply(strategy string, duration time.Duration) {
	ApplyDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// TrackApply tracks running apply calls.
func TrackApply(inc bool) {
	if inc {
		ApplyInFlight.Inc()
	} else {
		ApplyInFlight.Dec()
	}
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(cacheType string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cacheType).Inc()
	} else {
		CacheMisses.WithLabelValues(cacheType).Inc()
	}
}

// UpdateCacheUsage sets the size gauges of a cache.
func UpdateCacheUsage(cacheType string, bytes int64, entries int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(bytes))
	CacheEntries.WithLabelValues(cacheType).Set(float64(entries))
}

// RecordCacheEvictions records evicted chunks.
func RecordCacheEvictions(cacheType string, n int) {
	if n > 0 {
		CacheEvictions.WithLabelValues(cacheType).Add(float64(n))
	}
}

// RecordCacheError records a non-fatal cache failure.
func RecordCacheError(cacheType, operation string) {
	CacheErrors.WithLabelValues(cacheType, operation).Inc()
}

// RecordTaskPublished records a published chunk task.
func RecordTaskPublished() {
	TasksPublished.Inc()
}

// RecordTaskConsumed records a chunk task executed by a worker.
func RecordTaskConsumed(duration time.Duration) {
	TasksConsumed.Inc()
	TaskDuration.Observe(duration.Seconds())
}

// RecordResult records a result received by a coordinator.
func RecordResult(status string) {
	ResultsReceived.WithLabelValues(status).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRateLimitHit records a request rejected by the rate limiter.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// SetAppInfo publishes build information.
func SetAppInfo(version, goVersion, mode string) {
	AppInfo.WithLabelValues(version, goVersion, mode).Set(1)
}

// Circuit breaker state values.
const (
	StateClosed   = 0
	StateHalfOpen = 1
	StateOpen     = 2
)

// RecordCircuitBreakerTransition records a state change of a breaker.
func RecordCircuitBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordCircuitBreakerRequest records the result of a guarded call.
func RecordCircuitBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}
