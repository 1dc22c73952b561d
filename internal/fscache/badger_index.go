// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package fscache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/logging"
)

// ErrIndexClosed is returned by a BadgerIndex after Close.
var ErrIndexClosed = errors.New("cache index closed")

// Key prefix for chunk entries.
const prefixChunk = "chunk:"

// BadgerIndex is an Index whose entries are stored in a Badger database.
// Access order is served from memory and written through on every change.
type BadgerIndex struct {
	db  *badger.DB
	mem *MemoryIndex

	mu     sync.RWMutex
	closed bool
}

// OpenBadgerIndex opens (or creates) the database at path and loads its
// entries.
func OpenBadgerIndex(path string) (*BadgerIndex, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.MemTableSize = 8 << 20
	opts.ValueLogFileSize = 16 << 20
	opts.NumCompactors = 2

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	idx := &BadgerIndex{db: db, mem: NewMemoryIndex()}
	if err := idx.load(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Debug().
		Str("component", "fscache").
		Str("path", path).
		Int("entries", idx.mem.Len()).
		Msg("Cache index opened")
	return idx, nil
}

func (b *BadgerIndex) load() error {
	var entries []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixChunk)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var e Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable cache index entry")
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load cache index: %w", err)
	}

	// Oldest first so the most recent entry ends up at the front.
	sortByAccess(entries)
	for _, e := range entries {
		b.mem.put(e)
	}
	return nil
}

func chunkKey(id chunk.ID) []byte {
	return fmt.Appendf(nil, "%s%010d", prefixChunk, uint32(id))
}

func (b *BadgerIndex) write(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal index entry: %w", err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(e.ID), data)
	}); err != nil {
		return fmt.Errorf("write index entry: %w", err)
	}
	return nil
}

func (b *BadgerIndex) check() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrIndexClosed
	}
	return nil
}

// Get implements Index.
func (b *BadgerIndex) Get(id chunk.ID) (Entry, bool) {
	return b.mem.Get(id)
}

// Put implements Index.
func (b *BadgerIndex) Put(e Entry) error {
	if err := b.check(); err != nil {
		return err
	}
	if err := b.write(e); err != nil {
		return err
	}
	return b.mem.Put(e)
}

// Touch implements Index.
func (b *BadgerIndex) Touch(id chunk.ID, t time.Time) error {
	if err := b.check(); err != nil {
		return err
	}
	e, ok := b.mem.Get(id)
	if !ok {
		return nil
	}
	e.Accessed = t
	if err := b.write(e); err != nil {
		return err
	}
	return b.mem.Touch(id, t)
}

// Remove implements Index.
func (b *BadgerIndex) Remove(id chunk.ID) error {
	if err := b.check(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(chunkKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete index entry: %w", err)
	}
	return b.mem.Remove(id)
}

// Oldest implements Index.
func (b *BadgerIndex) Oldest() (Entry, bool) { return b.mem.Oldest() }

// Entries implements Index.
func (b *BadgerIndex) Entries() []Entry { return b.mem.Entries() }

// Len implements Index.
func (b *BadgerIndex) Len() int { return b.mem.Len() }

// Bytes implements Index.
func (b *BadgerIndex) Bytes() int64 { return b.mem.Bytes() }

// Close implements Index.
func (b *BadgerIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}
