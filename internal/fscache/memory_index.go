// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package fscache

import (
	"sync"
	"time"

	"github.com/tomtom215/cubeflow/internal/chunk"
)

// lruNode is an element of the access list.
type lruNode struct {
	entry Entry
	prev  *lruNode
	next  *lruNode
}

// MemoryIndex is an in-memory Index with O(1) operations.
//
// Entries sit in a doubly-linked list between two sentinels:
// head.next is the most recently accessed entry, tail.prev the least.
type MemoryIndex struct {
	mu    sync.RWMutex
	items map[chunk.ID]*lruNode
	head  *lruNode
	tail  *lruNode
	bytes int64
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	m := &MemoryIndex{
		items: make(map[chunk.ID]*lruNode),
		head:  &lruNode{},
		tail:  &lruNode{},
	}
	m.head.next = m.tail
	m.tail.prev = m.head
	return m
}

// Get implements Index.
func (m *MemoryIndex) Get(id chunk.ID) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n, ok := m.items[id]; ok {
		return n.entry, true
	}
	return Entry{}, false
}

// Put implements Index.
func (m *MemoryIndex) Put(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(e)
	return nil
}

func (m *MemoryIndex) put(e Entry) {
	if n, ok := m.items[e.ID]; ok {
		m.bytes += e.Size - n.entry.Size
		n.entry = e
		m.unlink(n)
		m.pushFront(n)
		return
	}
	n := &lruNode{entry: e}
	m.items[e.ID] = n
	m.bytes += e.Size
	m.pushFront(n)
}

// Touch implements Index.
func (m *MemoryIndex) Touch(id chunk.ID, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.items[id]; ok {
		n.entry.Accessed = t
		m.unlink(n)
		m.pushFront(n)
	}
	return nil
}

// Remove implements Index.
func (m *MemoryIndex) Remove(id chunk.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(id)
	return nil
}

func (m *MemoryIndex) remove(id chunk.ID) {
	if n, ok := m.items[id]; ok {
		m.unlink(n)
		delete(m.items, id)
		m.bytes -= n.entry.Size
	}
}

// Oldest implements Index.
func (m *MemoryIndex) Oldest() (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n := m.tail.prev; n != m.head {
		return n.entry, true
	}
	return Entry{}, false
}

// Entries returns all entries from least to most recently accessed.
func (m *MemoryIndex) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.items))
	for n := m.tail.prev; n != m.head; n = n.prev {
		out = append(out, n.entry)
	}
	return out
}

// Len implements Index.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Bytes implements Index.
func (m *MemoryIndex) Bytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bytes
}

// Close implements Index.
func (m *MemoryIndex) Close() error { return nil }

// Internal methods (must be called with lock held)

func (m *MemoryIndex) pushFront(n *lruNode) {
	n.prev = m.head
	n.next = m.head.next
	m.head.next.prev = n
	m.head.next = n
}

func (m *MemoryIndex) unlink(n *lruNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
}
