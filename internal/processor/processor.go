// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/metrics"
)

// Strategy names, used as metric labels and in configuration.
const (
	StrategySequential  = "sequential"
	StrategyPool        = "pool"
	StrategyDistributed = "distributed"
)

// ChunkFunc consumes one chunk. mu is shared by all callbacks of one Apply
// call and must be held while touching shared state.
type ChunkFunc func(id chunk.ID, buf *chunk.Buffer, mu *sync.Mutex) error

// Processor applies a ChunkFunc to every chunk of a node.
type Processor interface {
	// Apply reads every chunk of node and passes it to fn. The returned
	// Report lists each chunk that failed; the error is non-nil when the
	// run as a whole did not complete.
	Apply(ctx context.Context, node cube.Node, fn ChunkFunc) (Report, error)

	// MaxThreads is the number of chunks that may be in flight at once.
	MaxThreads() int

	// Name returns the strategy name.
	Name() string
}

// Failure is one chunk that could not be produced or consumed.
type Failure struct {
	ID  chunk.ID
	Err error
}

// Report summarizes one Apply call.
type Report struct {
	RunID     string
	Strategy  string
	Total     uint32
	Succeeded uint32
	Failed    []Failure
	Started   time.Time
	Duration  time.Duration
}

// OK reports whether every chunk succeeded.
func (r Report) OK() bool {
	return len(r.Failed) == 0 && r.Succeeded == r.Total
}

// Err joins all chunk failures, or returns nil.
func (r Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// FailedIDs returns the ids of failed chunks in the order they were recorded.
func (r Report) FailedIDs() []chunk.ID {
	ids := make([]chunk.ID, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.ID
	}
	return ids
}

// Run carries the shared state of one Apply call. Strategies outside this
// package use it so all of them count, log and report chunks the same way.
type Run struct {
	ctx      context.Context
	strategy string
	node     cube.Node
	fn       ChunkFunc
	progress Progress
	mu       sync.Mutex // handed to callbacks

	reportMu sync.Mutex
	report   Report
}

// StartRun prepares a run over node. It attaches a fresh run id to ctx,
// which the returned context carries for logging.
func StartRun(ctx context.Context, strategy string, node cube.Node, fn ChunkFunc, newProgress ProgressFactory) (*Run, context.Context) {
	runID := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	if newProgress == nil {
		newProgress = NewNoProgress
	}

	r := &Run{
		ctx:      ctx,
		strategy: strategy,
		node:     node,
		fn:       fn,
		progress: newProgress(strategy),
		report: Report{
			RunID:    runID,
			Strategy: strategy,
			Total:    node.CountChunks(),
			Started:  time.Now(),
		},
	}

	metrics.TrackApply(true)
	r.progress.Set(0)
	logging.Ctx(ctx).Debug().
		Str("strategy", strategy).
		Str("cube_type", node.Type()).
		Uint32("chunks", r.report.Total).
		Msg("Apply started")
	return r, ctx
}

// ID returns the run id.
func (r *Run) ID() string {
	return r.report.RunID
}

// Total is the number of chunks of the node.
func (r *Run) Total() uint32 {
	return r.report.Total
}

// Node returns the node being processed.
func (r *Run) Node() cube.Node {
	return r.node
}

// Process reads chunk id and hands it to the callback. A panic in either is
// converted into an error.
func (r *Run) Process(ctx context.Context, id chunk.ID) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = cube.ChunkError("process", id, fmt.Errorf("panic: %v", p))
		}
		r.Complete(id, time.Since(start), err)
	}()

	buf, err := r.node.ReadChunk(ctx, id)
	if err != nil {
		return cube.ChunkError("read", id, err)
	}
	return r.Deliver(id, buf)
}

// Deliver hands an already produced buffer to the callback without
// recording it. Callers record the outcome with Complete.
func (r *Run) Deliver(id chunk.ID, buf *chunk.Buffer) error {
	if err := r.fn(id, buf, &r.mu); err != nil {
		return cube.ChunkError("consume", id, err)
	}
	return nil
}

// Complete records the outcome of one chunk.
func (r *Run) Complete(id chunk.ID, elapsed time.Duration, err error) {
	metrics.RecordChunk(r.strategy, elapsed, err)
	if err != nil {
		logging.Ctx(r.ctx).Error().
			Err(err).
			Str("strategy", r.strategy).
			Uint32("chunk_id", uint32(id)).
			Msg("Chunk failed")
	}

	r.reportMu.Lock()
	if err != nil {
		r.report.Failed = append(r.report.Failed, Failure{ID: id, Err: err})
	} else {
		r.report.Succeeded++
	}
	r.reportMu.Unlock()

	if r.report.Total > 0 {
		r.progress.Increment(1 / float64(r.report.Total))
	}
}

// Finish closes the run and returns its report.
func (r *Run) Finish() Report {
	r.progress.Finalize()
	metrics.TrackApply(false)

	r.reportMu.Lock()
	defer r.reportMu.Unlock()
	r.report.Duration = time.Since(r.report.Started)
	metrics.RecordApply(r.strategy, r.report.Duration)

	logging.Ctx(r.ctx).Info().
		Str("strategy", r.strategy).
		Uint32("chunks", r.report.Total).
		Uint32("succeeded", r.report.Succeeded).
		Int("failed", len(r.report.Failed)).
		Dur("duration", r.report.Duration).
		Msg("Apply finished")

	rep := r.report
	rep.Failed = append([]Failure(nil), r.report.Failed...)
	return rep
}
