// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

// Package datetime provides unit-precision datetimes and calendar durations
// used by the temporal axis of data cubes.
//
// A DateTime is an instant truncated to a Unit (second through year). A
// Duration is an integer number of units. Month and year durations follow the
// calendar, everything from second to week has a fixed length. Weeks are not a
// native unit for duration arithmetic downstream (CF time units have no week),
// so Duration.Normalize converts them to 7 days.
//
// # Arithmetic
//
//	t0, _ := datetime.Parse("2020-01-01")        // unit: day
//	t1 := t0.Add(datetime.Days(9))               // 2020-01-10
//	d := t1.Sub(t0)                              // 9 days
//	n := datetime.Div(d, datetime.Days(3))       // 3
//	r := datetime.Mod(d, datetime.Days(4))       // 1
//
// Durations are serialized as ISO-8601 strings ("P1D", "P3M", "PT6H").
package datetime
