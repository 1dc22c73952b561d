// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package fscache

import (
	"time"

	"github.com/tomtom215/cubeflow/internal/chunk"
)

// Index kinds accepted by Options.Index.
const (
	IndexMemory = "memory"
	IndexBadger = "badger"
)

// Entry describes one cached chunk file.
type Entry struct {
	ID       chunk.ID  `json:"id"`
	Size     int64     `json:"size"`
	Accessed time.Time `json:"accessed"`
}

// Index tracks cached chunks in access order and their total size.
// Implementations are safe for concurrent use.
type Index interface {
	// Get returns the entry for id without changing access order.
	Get(id chunk.ID) (Entry, bool)

	// Put inserts or replaces e as the most recently accessed entry.
	Put(e Entry) error

	// Touch marks id as accessed at t. Unknown ids are ignored.
	Touch(id chunk.ID, t time.Time) error

	// Remove deletes id. Unknown ids are ignored.
	Remove(id chunk.ID) error

	// Oldest returns the least recently accessed entry.
	Oldest() (Entry, bool)

	// Entries lists all entries from least to most recently accessed.
	Entries() []Entry

	// Len is the number of entries.
	Len() int

	// Bytes is the sum of entry sizes.
	Bytes() int64

	// Close releases resources held by the index.
	Close() error
}
