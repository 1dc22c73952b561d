// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

/*
Package processor drives a chunk callback over every chunk of a cube node.

A Processor owns the only parallelism in the engine. Nodes are passive: they
compute one chunk when asked, and processors decide which chunks are read,
by how many goroutines, and what happens when one of them fails.

# Strategies

  - Sequential reads chunks in ascending id order on the calling goroutine
    and stops at the first error.
  - Pool starts a fixed number of goroutines. Goroutine i handles the ids
    i, i+W, i+2W, ... so every id is read exactly once. A failing chunk is
    logged and recorded in the Report; the others still run.

A third strategy, which distributes chunks to remote workers, lives in the
distributed package and implements the same interface.

# Callback contract

The callback receives the chunk id, the buffer and a mutex shared by every
callback of the same Apply call. Callbacks that touch shared state (an
output file, a counter) lock it; everything else may run unlocked.

# Progress

Every Apply reports to a Progress created for that run. NoProgress discards
updates, LogProgress logs at most every few seconds, MetricsProgress sets the
apply_progress_ratio gauge. Multi fans out to several reporters.

# Observability

Each Apply call gets a run id that is attached to its log lines as
run_id. Chunk durations and failures are recorded by strategy.
*/
package processor
