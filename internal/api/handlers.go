// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/engine"
	"github.com/tomtom215/cubeflow/internal/spacetime"
	"github.com/tomtom215/cubeflow/internal/version"
)

// healthCheckTimeout bounds all checks of one /healthz request.
const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Info identifies the process in health responses.
type Info struct {
	Mode     string
	WorkerID string
	Strategy string
}

// Handler serves the status endpoints.
type Handler struct {
	info      Info
	history   *engine.History
	startTime time.Time

	mu     sync.RWMutex
	graph  cube.Node
	checks map[string]HealthCheck
}

// NewHandler returns a handler reporting runs from history. history may be
// nil in processes that never export.
func NewHandler(info Info, history *engine.History) *Handler {
	return &Handler{
		info:      info,
		history:   history,
		startTime: time.Now(),
		checks:    make(map[string]HealthCheck),
	}
}

// SetGraph sets the graph served by /api/v1/graph.
func (h *Handler) SetGraph(n cube.Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = n
}

// AddCheck registers a named health check.
func (h *Handler) AddCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// HealthStatus is the body of /healthz.
type HealthStatus struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Mode     string            `json:"mode"`
	WorkerID string            `json:"worker_id,omitempty"`
	Strategy string            `json:"strategy,omitempty"`
	Uptime   float64           `json:"uptime_seconds"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// Health runs every registered check. Any failing check makes the response
// 503 with status degraded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := HealthStatus{
		Status:   "ok",
		Version:  version.String(),
		Mode:     h.info.Mode,
		WorkerID: h.info.WorkerID,
		Strategy: h.info.Strategy,
		Uptime:   time.Since(h.startTime).Seconds(),
	}
	code := http.StatusOK
	if len(names) > 0 {
		status.Checks = make(map[string]string, len(names))
	}
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			status.Checks[name] = err.Error()
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[name] = "ok"
	}

	NewResponseWriter(w, r).SuccessWithStatus(code, status)
}

// GraphInfo is the body of /api/v1/graph.
type GraphInfo struct {
	CubeType   string          `json:"cube_type"`
	ChunkSize  chunk.Size      `json:"chunk_size"`
	ChunkCount uint32          `json:"chunk_count"`
	Bands      []chunk.Band    `json:"bands"`
	View       spacetime.View  `json:"view"`
	Graph      json.RawMessage `json:"graph"`
}

// Graph describes the graph this process evaluates.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	h.mu.RLock()
	node := h.graph
	h.mu.RUnlock()
	if node == nil {
		rw.NotFound("No graph loaded")
		return
	}

	doc, err := cube.MarshalGraph(node)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(GraphInfo{
		CubeType:   node.Type(),
		ChunkSize:  node.ChunkSize(),
		ChunkCount: node.CountChunks(),
		Bands:      node.Bands().All(),
		View:       spacetime.View{Reference: node.Reference()},
		Graph:      doc,
	})
}

// Runs lists recent runs, newest first. The optional limit query parameter
// bounds the list.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			rw.BadRequest("limit must be a positive integer")
			return
		}
		limit = n
	}

	runs := []engine.RunRecord{}
	if h.history != nil {
		runs = h.history.Recent(limit)
	}
	rw.List(runs, len(runs))
}

// Run returns one run by id.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "runID")
	if h.history == nil {
		rw.NotFound("Run not found")
		return
	}
	rec, ok := h.history.Get(id)
	if !ok {
		rw.NotFound("Run not found")
		return
	}
	rw.Success(rec)
}
