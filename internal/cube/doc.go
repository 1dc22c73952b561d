// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

// Package cube defines the contract every node of a cube graph satisfies and
// a small set of operators built on it.
//
// A Node is a lazily evaluated cube. It knows its grid and chunk geometry and
// produces one chunk at a time through ReadChunk, pulling whatever it needs
// from its parents. Nothing is computed before a chunk is requested.
//
// Ownership in a graph runs from child to parent: a node holds its parents
// and keeps only the ids of its children for lineage reporting. Build links
// with Link.
//
// # Descriptions
//
// Every node describes itself and its parents as a nested JSON object with a
// "cube_type" tag, for example
//
//	{
//	  "cube_type": "select_bands",
//	  "bands": ["band1"],
//	  "in_cube": {"cube_type": "dummy", "view": {...}, "chunk_size": [2, 2, 2], "nbands": 3, "fill": 1}
//	}
//
// A Registry maps tags to constructors and rebuilds an equivalent graph from
// such a description. MarshalGraph and UnmarshalGraph add a version marker.
//
// # Errors
//
// Failures are returned as *Error values tagged with a Kind. Nodes never
// return a partial buffer together with a nil error.
package cube
