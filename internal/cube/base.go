// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package cube

import (
	"sync"
	"sync/atomic"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/spacetime"
)

var nextNodeID atomic.Uint64

// Base implements the geometry part of Node. Operators embed *Base and add
// ReadChunk and Describe.
type Base struct {
	id    uint64
	kind  string
	grid  chunk.Grid
	bands chunk.Bands

	mu       sync.RWMutex
	parents  []Node
	children []uint64
}

// NewBase validates the geometry and returns a base with a fresh id. ref is
// copied.
func NewBase(kind string, ref spacetime.Reference, size chunk.Size, bands chunk.Bands) (*Base, error) {
	grid, err := chunk.NewGrid(ref.Copy(), size)
	if err != nil {
		return nil, ConfigError(kind, err)
	}
	return &Base{
		id:    nextNodeID.Add(1),
		kind:  kind,
		grid:  grid,
		bands: bands,
	}, nil
}

// ID implements Node.
func (b *Base) ID() uint64 { return b.id }

// Type implements Node.
func (b *Base) Type() string { return b.kind }

// Reference implements Node.
func (b *Base) Reference() spacetime.Reference { return b.grid.Reference().Copy() }

// ChunkSize implements Node.
func (b *Base) ChunkSize() chunk.Size { return b.grid.Size() }

// Bands implements Node.
func (b *Base) Bands() chunk.Bands { return b.bands }

// Grid returns the chunk tiling.
func (b *Base) Grid() chunk.Grid { return b.grid }

// CountChunks implements Node.
func (b *Base) CountChunks() uint32 { return b.grid.Count() }

// ChunkLimits implements Node.
func (b *Base) ChunkLimits(id chunk.ID) (chunk.Limits, error) {
	l, err := b.grid.Limits(id)
	if err != nil {
		return chunk.Limits{}, ChunkError(b.kind+" limits", id, err)
	}
	return l, nil
}

// BoundsFromChunk implements Node.
func (b *Base) BoundsFromChunk(id chunk.ID) (chunk.Bounds, error) {
	bounds, err := b.grid.Bounds(id)
	if err != nil {
		return chunk.Bounds{}, ChunkError(b.kind+" bounds", id, err)
	}
	return bounds, nil
}

// SetReference replaces the grid with a copy of ref. Configure nodes before
// they are shared; the grid is not guarded against concurrent readers.
func (b *Base) SetReference(ref spacetime.Reference) error {
	grid, err := chunk.NewGrid(ref.Copy(), b.grid.Size())
	if err != nil {
		return ConfigError(b.kind, err)
	}
	b.grid = grid
	return nil
}

// SetChunkSize replaces the chunk size.
func (b *Base) SetChunkSize(size chunk.Size) error {
	grid, err := chunk.NewGrid(b.grid.Reference(), size)
	if err != nil {
		return ConfigError(b.kind, err)
	}
	b.grid = grid
	return nil
}

// NewChunkBuffer allocates a NaN-filled buffer shaped for chunk id.
func (b *Base) NewChunkBuffer(id chunk.ID) (*chunk.Buffer, error) {
	l, err := b.ChunkLimits(id)
	if err != nil {
		return nil, err
	}
	return chunk.NewBuffer(b.bands.Count(), l.Shape()), nil
}

// Parents implements Node.
func (b *Base) Parents() []Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Node(nil), b.parents...)
}

// Children implements Node.
func (b *Base) Children() []uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]uint64(nil), b.children...)
}

// Parent returns the first parent or nil.
func (b *Base) Parent() Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.parents) == 0 {
		return nil
	}
	return b.parents[0]
}

func (b *Base) addParent(n Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parents = append(b.parents, n)
}

func (b *Base) addChild(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.children = append(b.children, id)
}
