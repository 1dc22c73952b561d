// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordChunk verifies success and failure land in separate counters
func TestRecordChunk(t *testing.T) {
	strategy := "test-record-chunk"
	okBefore := testutil.ToFloat64(ChunksProcessed.WithLabelValues(strategy))
	failBefore := testutil.ToFloat64(ChunksFailed.WithLabelValues(strategy))

	RecordChunk(strategy, 5*time.Millisecond, nil)
	RecordChunk(strategy, 5*time.Millisecond, nil)
	RecordChunk(strategy, 5*time.Millisecond, errors.New("read failed"))

	if got := testutil.ToFloat64(ChunksProcessed.WithLabelValues(strategy)) - okBefore; got != 2 {
		t.Errorf("processed delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ChunksFailed.WithLabelValues(strategy)) - failBefore; got != 1 {
		t.Errorf("failed delta = %v, want 1", got)
	}
}

// TestTrackApply verifies the in-flight gauge returns to its start value
func TestTrackApply(t *testing.T) {
	before := testutil.ToFloat64(ApplyInFlight)
	TrackApply(true)
	TrackApply(true)
	if got := testutil.ToFloat64(ApplyInFlight) - before; got != 2 {
		t.Errorf("in flight delta = %v, want 2", got)
	}
	TrackApply(false)
	TrackApply(false)
	if got := testutil.ToFloat64(ApplyInFlight); got != before {
		t.Errorf("in flight = %v, want %v", got, before)
	}
	RecordApply("test", time.Second)
}

// TestCacheMetrics verifies hit/miss counters and usage gauges
func TestCacheMetrics(t *testing.T) {
	cache := "test-cache-metrics"
	RecordCacheLookup(cache, true)
	RecordCacheLookup(cache, false)
	RecordCacheLookup(cache, false)
	UpdateCacheUsage(cache, 4096, 3)
	RecordCacheEvictions(cache, 2)
	RecordCacheEvictions(cache, 0)
	RecordCacheError(cache, "persist")

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"hits", CacheHits.WithLabelValues(cache), 1},
		{"misses", CacheMisses.WithLabelValues(cache), 2},
		{"size", CacheSize.WithLabelValues(cache), 4096},
		{"entries", CacheEntries.WithLabelValues(cache), 3},
		{"evictions", CacheEvictions.WithLabelValues(cache), 2},
		{"errors", CacheErrors.WithLabelValues(cache, "persist"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestTransportMetrics verifies task and result counters
func TestTransportMetrics(t *testing.T) {
	published := testutil.ToFloat64(TasksPublished)
	consumed := testutil.ToFloat64(TasksConsumed)
	dup := testutil.ToFloat64(ResultsReceived.WithLabelValues("duplicate"))

	RecordTaskPublished()
	RecordTaskConsumed(10 * time.Millisecond)
	RecordResult("duplicate")

	if testutil.ToFloat64(TasksPublished)-published != 1 ||
		testutil.ToFloat64(TasksConsumed)-consumed != 1 ||
		testutil.ToFloat64(ResultsReceived.WithLabelValues("duplicate"))-dup != 1 {
		t.Error("transport counters did not advance by one")
	}
}

// TestCircuitBreakerMetrics verifies state gauge and transition counter
func TestCircuitBreakerMetrics(t *testing.T) {
	name := "test-breaker"
	RecordCircuitBreakerTransition(name, "closed", "open", StateOpen)
	RecordCircuitBreakerRequest(name, "rejected")

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues(name)); got != StateOpen {
		t.Errorf("state = %v, want %v", got, StateOpen)
	}
	if got := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues(name, "closed", "open")); got != 1 {
		t.Errorf("transitions = %v, want 1", got)
	}
}

// TestConcurrentMetricRecording tests thread-safety of metric recording
func TestConcurrentMetricRecording(t *testing.T) {
	strategy := "test-concurrent"
	before := testutil.ToFloat64(ChunksProcessed.WithLabelValues(strategy))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordChunk(strategy, time.Millisecond, nil)
			RecordCacheLookup(strategy, true)
			RecordAPIRequest("GET", "/healthz", "200", time.Millisecond)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(ChunksProcessed.WithLabelValues(strategy)) - before; got != 50 {
		t.Errorf("processed delta = %v, want 50", got)
	}
}

// TestMetricGathering verifies the default registry exposes our metrics
func TestMetricGathering(t *testing.T) {
	SetAppInfo("0.0.0-test", "go-test", "run")
	RecordChunk("test-gather", time.Millisecond, nil)
	RecordCacheLookup("test-gather", true)
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"app_info", "chunks_processed_total", "cache_hits_total"} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}
