// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

// Package chunk addresses and stores the tiles of a cube.
//
// A cube grid of nt x ny x nx cells is tiled by a fixed chunk size
// (ct, cy, cx). Chunks are numbered row-major over (t, y, x), so for a grid
// with (Nt, Ny, Nx) chunks per axis the chunk at per-axis position (i, j, k)
// has the id
//
//	id = i*Ny*Nx + j*Nx + k
//
// Chunks at the upper end of an axis are clipped to the grid.
//
// A Buffer holds the values of one chunk as a dense [band][t][y][x] array of
// float64, NaN meaning no data. Buffers are encoded for disk and transport
// with Encode and Decode: a fixed header, a zstd-compressed little endian
// payload and an xxhash64 checksum.
package chunk
