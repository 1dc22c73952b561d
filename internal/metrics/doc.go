// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

/*
Package metrics provides Prometheus metrics for cubeflow processes.

Metrics are registered with the default registry on package load and exposed
by the status API at /metrics:

	curl http://localhost:9464/metrics

# Available Metrics

Chunk processing (label strategy: sequential, pool, distributed):
  - chunk_read_duration_seconds: read_chunk plus callback per chunk (histogram)
  - chunks_processed_total, chunks_failed_total (counters)
  - apply_duration_seconds (histogram), apply_in_flight (gauge)
  - apply_progress_ratio (gauge)

Disk cache (label cache_type):
  - cache_hits_total, cache_misses_total, cache_evictions_total
  - cache_size_bytes, cache_entries
  - cache_errors_total (label operation: persist, load, evict, index)

Distributed transport:
  - transport_tasks_published_total, transport_tasks_consumed_total
  - transport_results_received_total (label status: ok, failed, duplicate)
  - transport_task_duration_seconds
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_state_transitions_total

Status API:
  - api_requests_total, api_request_duration_seconds, api_rate_limit_hits_total

# Usage

	start := time.Now()
	buf, err := node.ReadChunk(ctx, id)
	metrics.RecordChunk("pool", time.Since(start), err)
*/
package metrics
