// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package chunk

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when data does not fit a buffer shape.
var ErrShapeMismatch = errors.New("buffer shape mismatch")

// Buffer holds the values of one chunk, laid out [band][t][y][x]. Row y=0 is
// the southern-most row of the chunk. A buffer returned by a node belongs
// to the caller; the node never touches it again.
type Buffer struct {
	nbands int
	size   Size
	data   []float64
}

// NewBuffer allocates a buffer filled with NaN.
func NewBuffer(nbands int, size Size) *Buffer {
	if nbands < 0 {
		nbands = 0
	}
	b := &Buffer{
		nbands: nbands,
		size:   size,
		data:   make([]float64, uint64(nbands)*size.Volume()),
	}
	b.Fill(math.NaN())
	return b
}

// FromData wraps existing values. data is used directly, not copied.
func FromData(nbands int, size Size, data []float64) (*Buffer, error) {
	if nbands < 0 || uint64(len(data)) != uint64(nbands)*size.Volume() {
		return nil, fmt.Errorf("%w: %d values for %d bands of %s", ErrShapeMismatch, len(data), nbands, size)
	}
	return &Buffer{nbands: nbands, size: size, data: data}, nil
}

// Bands returns the number of bands.
func (b *Buffer) Bands() int { return b.nbands }

// Size returns the extent in cells.
func (b *Buffer) Size() Size { return b.size }

// Empty reports whether the buffer holds no cells.
func (b *Buffer) Empty() bool { return len(b.data) == 0 }

// Len returns the number of values.
func (b *Buffer) Len() int { return len(b.data) }

// Data returns the underlying values.
func (b *Buffer) Data() []float64 { return b.data }

func (b *Buffer) offset(band int, t, y, x uint32) int {
	s := b.size
	return ((band*int(s[T])+int(t))*int(s[Y])+int(y))*int(s[X]) + int(x)
}

// At returns a single value.
func (b *Buffer) At(band int, t, y, x uint32) float64 {
	return b.data[b.offset(band, t, y, x)]
}

// Set stores a single value.
func (b *Buffer) Set(band int, t, y, x uint32, v float64) {
	b.data[b.offset(band, t, y, x)] = v
}

// Band returns the values of one band as a sub-slice.
func (b *Buffer) Band(band int) []float64 {
	n := int(b.size.Volume())
	return b.data[band*n : (band+1)*n]
}

// Slice returns the y*x plane of one band at one time index.
func (b *Buffer) Slice(band int, t uint32) []float64 {
	n := int(b.size[Y]) * int(b.size[X])
	start := b.offset(band, t, 0, 0)
	return b.data[start : start+n]
}

// Fill sets every value to v.
func (b *Buffer) Fill(v float64) {
	for i := range b.data {
		b.data[i] = v
	}
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	data := make([]float64, len(b.data))
	copy(data, b.data)
	return &Buffer{nbands: b.nbands, size: b.size, data: data}
}

// Equal reports whether both buffers have the same shape and values. NaN
// equals NaN.
func (b *Buffer) Equal(o *Buffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.nbands != o.nbands || b.size != o.size || len(b.data) != len(o.data) {
		return false
	}
	for i, v := range b.data {
		w := o.data[i]
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			return false
		}
	}
	return true
}

// Bytes returns the in-memory size of the values.
func (b *Buffer) Bytes() int64 {
	return int64(len(b.data)) * 8
}
