// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package processor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
)

// Pool processes chunks with a fixed number of goroutines. Goroutine i
// handles ids i, i+Threads, i+2*Threads and so on. A failing chunk does not
// stop the others; it is logged and listed in the Report.
type Pool struct {
	Threads  int
	Progress ProgressFactory
}

// NewPool returns a pool processor. Thread counts below one are raised to one.
func NewPool(threads int, progress ProgressFactory) *Pool {
	if threads < 1 {
		threads = 1
	}
	return &Pool{Threads: threads, Progress: progress}
}

// Name implements Processor.
func (p *Pool) Name() string { return StrategyPool }

// MaxThreads implements Processor.
func (p *Pool) MaxThreads() int {
	if p.Threads < 1 {
		return 1
	}
	return p.Threads
}

// Apply implements Processor. It returns once every goroutine has finished.
// The error is only non-nil if ctx ended before all chunks were read; chunk
// failures are reported through Report.Failed.
func (p *Pool) Apply(ctx context.Context, node cube.Node, fn ChunkFunc) (Report, error) {
	run, ctx := StartRun(ctx, StrategyPool, node, fn, p.Progress)

	total := run.Total()
	workers := uint32(p.MaxThreads())

	// Failures are isolated, so the group never cancels siblings.
	var g errgroup.Group
	for w := uint32(0); w < workers && w < total; w++ {
		g.Go(func() error {
			for id := w; id < total; id += workers {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				_ = run.Process(ctx, chunk.ID(id))
			}
			return nil
		})
	}
	err := g.Wait()
	return run.Finish(), err
}
