// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package cube

import (
	"context"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/spacetime"
)

// Node is one lazily evaluated cube in a graph.
//
// ReadChunk must be safe to call concurrently for different chunk ids. An
// implementation may only use locally allocated buffers and read-only node
// configuration while producing a chunk.
type Node interface {
	// ID is unique among all nodes of the process.
	ID() uint64

	// Type is the cube_type tag used in descriptions.
	Type() string

	// Reference returns a copy of the node's grid.
	Reference() spacetime.Reference

	// ChunkSize returns the nominal chunk size along (t, y, x).
	ChunkSize() chunk.Size

	// Bands returns the output bands.
	Bands() chunk.Bands

	// CountChunks returns the number of chunks.
	CountChunks() uint32

	// ChunkLimits returns the cell index bounds of a chunk.
	ChunkLimits(id chunk.ID) (chunk.Limits, error)

	// BoundsFromChunk returns the real-world extent of a chunk.
	BoundsFromChunk(id chunk.ID) (chunk.Bounds, error)

	// ReadChunk materializes one chunk. The returned buffer is sized to the
	// chunk's limits and belongs to the caller.
	ReadChunk(ctx context.Context, id chunk.ID) (*chunk.Buffer, error)

	// Describe returns a description sufficient to rebuild the node and
	// its parents.
	Describe() Description

	// Parents returns the nodes this node reads from.
	Parents() []Node

	// Children returns the ids of nodes reading from this node.
	Children() []uint64
}

// linker is implemented by nodes embedding *Base.
type linker interface {
	addParent(Node)
	addChild(uint64)
}

// Link records parent as an input of child. The child holds the parent;
// the parent only remembers the child's id.
func Link(parent, child Node) {
	if c, ok := child.(linker); ok {
		c.addParent(parent)
	}
	if p, ok := parent.(linker); ok {
		p.addChild(child.ID())
	}
}

// Lineage returns all ancestors of n, nearest first, each once.
func Lineage(n Node) []Node {
	var out []Node
	seen := map[uint64]bool{n.ID(): true}
	queue := n.Parents()
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p.ID()] {
			continue
		}
		seen[p.ID()] = true
		out = append(out, p)
		queue = append(queue, p.Parents()...)
	}
	return out
}
