// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package engine

import (
	"sync"
	"time"

	"github.com/tomtom215/cubeflow/internal/processor"
)

// DefaultHistorySize is used when NewHistory is given a non-positive size.
const DefaultHistorySize = 50

// ChunkFailure is one failed chunk of a RunRecord.
type ChunkFailure struct {
	ChunkID uint32 `json:"chunk_id"`
	Error   string `json:"error"`
}

// RunRecord summarizes one finished run for the status API.
type RunRecord struct {
	RunID     string         `json:"run_id"`
	Strategy  string         `json:"strategy"`
	Format    string         `json:"format"`
	Output    string         `json:"output"`
	CubeType  string         `json:"cube_type"`
	Total     uint32         `json:"total"`
	Succeeded uint32         `json:"succeeded"`
	Failed    []ChunkFailure `json:"failed,omitempty"`
	Started   time.Time      `json:"started"`
	Duration  string         `json:"duration"`
	Error     string         `json:"error,omitempty"`
}

// NewRunRecord converts a processor report.
func NewRunRecord(r processor.Report, format, output, cubeType string, err error) RunRecord {
	rec := RunRecord{
		RunID:     r.RunID,
		Strategy:  r.Strategy,
		Format:    format,
		Output:    output,
		CubeType:  cubeType,
		Total:     r.Total,
		Succeeded: r.Succeeded,
		Started:   r.Started,
		Duration:  r.Duration.String(),
	}
	for _, f := range r.Failed {
		rec.Failed = append(rec.Failed, ChunkFailure{ChunkID: uint32(f.ID), Error: f.Err.Error()})
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// History is a bounded, most recent first list of run records.
type History struct {
	mu      sync.RWMutex
	size    int
	records []RunRecord // ring, next is the slot written next
	next    int
	full    bool
}

// NewHistory keeps the last size runs.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, records: make([]RunRecord, size)}
}

// Add records a run, dropping the oldest when full.
func (h *History) Add(rec RunRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[h.next] = rec
	h.next = (h.next + 1) % h.size
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (h *History) Recent(limit int) []RunRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.next
	if h.full {
		n = h.size
	}
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RunRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, h.records[(h.next-i+h.size)%h.size])
	}
	return out
}

// Get returns the record of runID.
func (h *History) Get(runID string) (RunRecord, bool) {
	for _, rec := range h.Recent(0) {
		if rec.RunID == runID {
			return rec, true
		}
	}
	return RunRecord{}, false
}
