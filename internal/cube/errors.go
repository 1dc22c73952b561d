// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package cube

import (
	"errors"
	"fmt"

	"github.com/tomtom215/cubeflow/internal/chunk"
)

// Kind classifies an error by how callers are expected to react to it.
type Kind int

const (
	// KindConfig marks invalid node parameters or geometry. Fatal to the node.
	KindConfig Kind = iota + 1

	// KindChunk marks a failure producing one chunk. Processors decide
	// whether it aborts the run.
	KindChunk

	// KindCache marks a failure persisting or loading a cached chunk. Never
	// fatal; the chunk is recomputed instead.
	KindCache

	// KindExport marks output that cannot be created. Fatal before any chunk
	// is processed.
	KindExport
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindChunk:
		return "chunk"
	case KindCache:
		return "cache"
	case KindExport:
		return "export"
	default:
		return "unknown"
	}
}

// noChunk is the ChunkID of errors not tied to a chunk.
const noChunk = -1

// Error is a failure tagged with its kind and, where applicable, the chunk it
// concerns.
type Error struct {
	Kind    Kind
	Op      string
	ChunkID int64
	Err     error
}

func (e *Error) Error() string {
	if e.ChunkID >= 0 {
		return fmt.Sprintf("%s error: %s chunk %d: %v", e.Kind, e.Op, e.ChunkID, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Chunk returns the chunk id and whether the error concerns a chunk.
func (e *Error) Chunk() (chunk.ID, bool) {
	if e.ChunkID < 0 {
		return 0, false
	}
	return chunk.ID(e.ChunkID), true
}

// ConfigError returns a KindConfig error.
func ConfigError(op string, err error) error {
	return &Error{Kind: KindConfig, Op: op, ChunkID: noChunk, Err: err}
}

// ChunkError returns a KindChunk error for chunk id. An error that already
// is a KindChunk error for the same chunk is returned unchanged, so errors
// bubbling up through a graph are not wrapped once per node.
func ChunkError(op string, id chunk.ID, err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindChunk && e.ChunkID == int64(id) {
		return err
	}
	return &Error{Kind: KindChunk, Op: op, ChunkID: int64(id), Err: err}
}

// CacheError returns a KindCache error for chunk id.
func CacheError(op string, id chunk.ID, err error) error {
	return &Error{Kind: KindCache, Op: op, ChunkID: int64(id), Err: err}
}

// ExportError returns a KindExport error.
func ExportError(op string, err error) error {
	return &Error{Kind: KindExport, Op: op, ChunkID: noChunk, Err: err}
}

// IsKind reports whether err is or wraps an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
