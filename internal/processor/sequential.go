// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package processor

import (
	"context"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
)

// Sequential processes chunks one after another in ascending id order and
// stops at the first failure.
type Sequential struct {
	Progress ProgressFactory
}

// NewSequential returns a sequential processor reporting to progress.
// A nil factory disables progress reporting.
func NewSequential(progress ProgressFactory) *Sequential {
	return &Sequential{Progress: progress}
}

// Name implements Processor.
func (s *Sequential) Name() string { return StrategySequential }

// MaxThreads implements Processor.
func (s *Sequential) MaxThreads() int { return 1 }

// Apply implements Processor. The first chunk error is returned and no
// further chunks are read.
func (s *Sequential) Apply(ctx context.Context, node cube.Node, fn ChunkFunc) (Report, error) {
	run, ctx := StartRun(ctx, StrategySequential, node, fn, s.Progress)

	for id := chunk.ID(0); uint32(id) < run.Total(); id++ {
		if err := ctx.Err(); err != nil {
			return run.Finish(), err
		}
		if err := run.Process(ctx, id); err != nil {
			return run.Finish(), err
		}
	}
	return run.Finish(), nil
}
