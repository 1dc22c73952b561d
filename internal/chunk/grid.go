// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package chunk

import (
	"errors"
	"fmt"

	"github.com/tomtom215/cubeflow/internal/datetime"
	"github.com/tomtom215/cubeflow/internal/spacetime"
)

var (
	// ErrInvalidChunkSize is returned for chunk sizes with a zero axis.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrChunkOutOfRange is returned for ids >= Grid.Count().
	ErrChunkOutOfRange = errors.New("chunk id out of range")
)

// Axis positions within Size, Limits and per-axis counts.
const (
	T = 0
	Y = 1
	X = 2
)

// ID identifies a chunk within a grid.
type ID uint32

// Size is a chunk extent in cells along (t, y, x).
type Size [3]uint32

// Valid reports whether every axis is positive.
func (s Size) Valid() bool {
	return s[T] > 0 && s[Y] > 0 && s[X] > 0
}

// Volume returns the number of cells.
func (s Size) Volume() uint64 {
	return uint64(s[T]) * uint64(s[Y]) * uint64(s[X])
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%dx%d", s[T], s[Y], s[X])
}

// Limits are the inclusive cell index bounds of a chunk along (t, y, x).
type Limits struct {
	Low  [3]uint32
	High [3]uint32
}

// Shape returns the extent of the chunk in cells.
func (l Limits) Shape() Size {
	return Size{
		l.High[T] - l.Low[T] + 1,
		l.High[Y] - l.Low[Y] + 1,
		l.High[X] - l.Low[X] + 1,
	}
}

// Volume returns the number of cells covered.
func (l Limits) Volume() uint64 {
	return l.Shape().Volume()
}

// Bounds is the real-world extent of a chunk. T1 is the last instant
// covered at the precision of the grid.
type Bounds struct {
	Window spacetime.Window
	T0, T1 datetime.DateTime
}

// Grid tiles a spacetime reference with a chunk size.
type Grid struct {
	ref    spacetime.Reference
	size   Size
	counts [3]uint32
}

// NewGrid returns the tiling of ref by size.
func NewGrid(ref spacetime.Reference, size Size) (Grid, error) {
	if !size.Valid() {
		return Grid{}, fmt.Errorf("%w: %s", ErrInvalidChunkSize, size)
	}
	dims := [3]uint32{ref.NT(), ref.NY(), ref.NX()}
	g := Grid{ref: ref, size: size}
	for a := range dims {
		g.counts[a] = (dims[a] + size[a] - 1) / size[a]
	}
	if uint64(g.counts[T])*uint64(g.counts[Y])*uint64(g.counts[X]) > uint64(^uint32(0)) {
		return Grid{}, fmt.Errorf("%w: %s yields too many chunks", ErrInvalidChunkSize, size)
	}
	return g, nil
}

// Reference returns the tiled grid.
func (g Grid) Reference() spacetime.Reference { return g.ref }

// Size returns the nominal chunk size.
func (g Grid) Size() Size { return g.size }

// Counts returns the number of chunks along (t, y, x).
func (g Grid) Counts() [3]uint32 { return g.counts }

// Count returns the total number of chunks.
func (g Grid) Count() uint32 {
	return g.counts[T] * g.counts[Y] * g.counts[X]
}

// Contains reports whether id addresses a chunk of the grid.
func (g Grid) Contains(id ID) bool {
	return uint32(id) < g.Count()
}

// Position returns the per-axis chunk position of id.
func (g Grid) Position(id ID) [3]uint32 {
	n := uint32(id)
	plane := g.counts[Y] * g.counts[X]
	return [3]uint32{
		n / plane,
		(n % plane) / g.counts[X],
		n % g.counts[X],
	}
}

// IDAt returns the id of the chunk at a per-axis position.
func (g Grid) IDAt(pos [3]uint32) ID {
	return ID(pos[T]*g.counts[Y]*g.counts[X] + pos[Y]*g.counts[X] + pos[X])
}

// Limits returns the cell index bounds of chunk id.
func (g Grid) Limits(id ID) (Limits, error) {
	if !g.Contains(id) {
		return Limits{}, fmt.Errorf("%w: %d of %d", ErrChunkOutOfRange, id, g.Count())
	}
	dims := [3]uint32{g.ref.NT(), g.ref.NY(), g.ref.NX()}
	pos := g.Position(id)
	var l Limits
	for a := range pos {
		l.Low[a] = pos[a] * g.size[a]
		l.High[a] = min(l.Low[a]+g.size[a], dims[a]) - 1
	}
	return l, nil
}

// Bounds returns the real-world extent of chunk id, derived from Limits
// through the coordinate mapping of the reference.
func (g Grid) Bounds(id ID) (Bounds, error) {
	l, err := g.Limits(id)
	if err != nil {
		return Bounds{}, err
	}
	low := g.ref.MapCoords(spacetime.Index{T: l.Low[T], Y: l.Low[Y], X: l.Low[X]})
	high := g.ref.MapCoords(spacetime.Index{T: l.High[T] + 1, Y: l.High[Y] + 1, X: l.High[X] + 1})
	step := g.ref.DT().Normalize()
	return Bounds{
		Window: spacetime.Window{Left: low.X, Right: high.X, Bottom: low.Y, Top: high.Y},
		T0:     low.T,
		T1:     high.T.Add(datetime.Duration{Interval: -1, Unit: step.Unit}),
	}, nil
}

// Find returns the chunk containing a cell index.
func (g Grid) Find(i spacetime.Index) (ID, bool) {
	if !g.ref.Contains(i) {
		return 0, false
	}
	return g.IDAt([3]uint32{i.T / g.size[T], i.Y / g.size[Y], i.X / g.size[X]}), true
}
