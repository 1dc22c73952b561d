// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package cube

import (
	"context"
	"math"

	"github.com/tomtom215/cubeflow/internal/chunk"
)

// TypeFillNodata is the cube_type of FillNodata.
const TypeFillNodata = "fill_nodata"

// FillNodata replaces NaN cells of every band with a constant.
type FillNodata struct {
	*Base
	in    Node
	value float64
}

// NewFillNodata fills no-data cells of in with value.
func NewFillNodata(in Node, value float64) (*FillNodata, error) {
	base, err := NewBase(TypeFillNodata, in.Reference(), in.ChunkSize(), in.Bands())
	if err != nil {
		return nil, err
	}
	n := &FillNodata{Base: base, in: in, value: value}
	Link(in, n)
	return n, nil
}

// ReadChunk implements Node.
func (f *FillNodata) ReadChunk(ctx context.Context, id chunk.ID) (*chunk.Buffer, error) {
	src, err := f.in.ReadChunk(ctx, id)
	if err != nil {
		return nil, ChunkError(TypeFillNodata, id, err)
	}
	out := src.Clone()
	data := out.Data()
	for i, v := range data {
		if math.IsNaN(v) {
			data[i] = f.value
		}
	}
	return out, nil
}

// Describe implements Node.
func (f *FillNodata) Describe() Description {
	return Description{
		KeyType:   TypeFillNodata,
		"value":   f.value,
		KeyParent: f.in.Describe(),
	}
}

func decodeFillNodata(d Description, r *Registry) (Node, error) {
	var value float64
	if err := d.Decode("value", &value); err != nil {
		return nil, ConfigError("decode", err)
	}
	in, err := r.DecodeParent(d)
	if err != nil {
		return nil, err
	}
	return NewFillNodata(in, value)
}
