// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

// Package spacetime defines the regular grid of a data cube: a spatial window
// in a named spatial reference system, a grid size, and a temporal extent with
// a fixed cell duration.
//
// A Reference maps integer cube coordinates (t, y, x) to real-world space and
// time and back. Cell index (0, 0, 0) is the lower left pixel of the first
// time slice, so the y axis is bottom-up in index space.
//
// # Alignment
//
// Setting a cell size directly recomputes the complementary grid size. When
// the extent is not a multiple of the cell size, the extent grows until it is:
//
//	ref.SetDX(3)         // window width 10 -> nx = 4, width 12, 1 added per side
//	ref.SetDT(days(3))   // 2020-01-01..2020-01-10 -> t1 = 2020-01-12
//
// Every such change is logged at info level and returned as an Adjustment so
// callers can surface it.
//
// # Views
//
// A View adds the aggregation and resampling methods used when source images
// are read into the grid. Views are stored as JSON:
//
//	{
//	  "space": {"left": 0, "right": 10, "top": 10, "bottom": 0, "nx": 4, "ny": 4, "srs": "EPSG:3857"},
//	  "time":  {"t0": "2020-01-01", "t1": "2020-01-04", "dt": "P1D"},
//	  "aggregation": "mean",
//	  "resampling": "near"
//	}
package spacetime
