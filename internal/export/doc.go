// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

/*
Package export writes the chunks of a cube to disk through a processor.

Two sinks are provided:

  - WriteChunkDir writes one raster file per chunk, band and time slice into
    a directory, each with a JSON sidecar holding its geotransform, no-data
    value, SRS and time.
  - WriteDenseFile writes the whole cube into one preallocated file: a JSON
    header describing dimensions, coordinates, bands and the graph that
    produced the data, followed by float64 values in [band][t][y][x] order.

Both sinks store rows north-up, i.e. the first row of a slice is the one
with the largest y coordinate. Chunk buffers store rows south-up, so rows
are flipped while writing.

Failed chunks are left out of a chunk directory and stay NaN in a dense
file. Whether a failure aborts the export depends on the processor: the
sequential strategy stops at the first error, pool and distributed
strategies record failures in the returned report and continue.
*/
package export
