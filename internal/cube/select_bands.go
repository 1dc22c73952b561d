// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package cube

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/cubeflow/internal/chunk"
)

// TypeSelectBands is the cube_type of SelectBands.
const TypeSelectBands = "select_bands"

// SelectBands keeps a subset of its input's bands, in the given order.
type SelectBands struct {
	*Base
	in    Node
	names []string
	index []int
}

// NewSelectBands selects bands of in by name.
func NewSelectBands(in Node, names []string) (*SelectBands, error) {
	if len(names) == 0 {
		return nil, ConfigError(TypeSelectBands, errors.New("no bands selected"))
	}
	src := in.Bands()
	var bands chunk.Bands
	index := make([]int, 0, len(names))
	for _, name := range names {
		i := src.Index(name)
		if i < 0 {
			return nil, ConfigError(TypeSelectBands, fmt.Errorf("band %q does not exist", name))
		}
		if err := bands.Add(src.Get(i)); err != nil {
			return nil, ConfigError(TypeSelectBands, err)
		}
		index = append(index, i)
	}
	base, err := NewBase(TypeSelectBands, in.Reference(), in.ChunkSize(), bands)
	if err != nil {
		return nil, err
	}
	n := &SelectBands{Base: base, in: in, names: append([]string(nil), names...), index: index}
	Link(in, n)
	return n, nil
}

// ReadChunk implements Node.
func (s *SelectBands) ReadChunk(ctx context.Context, id chunk.ID) (*chunk.Buffer, error) {
	src, err := s.in.ReadChunk(ctx, id)
	if err != nil {
		return nil, ChunkError(TypeSelectBands, id, err)
	}
	if src.Bands() != s.in.Bands().Count() {
		return nil, ChunkError(TypeSelectBands, id, fmt.Errorf("input chunk has %d bands, want %d", src.Bands(), s.in.Bands().Count()))
	}
	out := chunk.NewBuffer(len(s.index), src.Size())
	for dst, i := range s.index {
		copy(out.Band(dst), src.Band(i))
	}
	return out, nil
}

// Describe implements Node.
func (s *SelectBands) Describe() Description {
	return Description{
		KeyType:   TypeSelectBands,
		"bands":   s.names,
		KeyParent: s.in.Describe(),
	}
}

func decodeSelectBands(d Description, r *Registry) (Node, error) {
	var names []string
	if err := d.Decode("bands", &names); err != nil {
		return nil, ConfigError("decode", err)
	}
	in, err := r.DecodeParent(d)
	if err != nil {
		return nil, err
	}
	return NewSelectBands(in, names)
}
