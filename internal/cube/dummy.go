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
	"github.com/tomtom215/cubeflow/internal/spacetime"
)

// TypeDummy is the cube_type of Dummy.
const TypeDummy = "dummy"

// Dummy is a source cube where every cell of every band holds the same
// value. It is used to test graphs and processors without input data.
type Dummy struct {
	*Base
	view spacetime.View
	fill float64
}

// NewDummy returns a source over view with nbands bands named band1..bandN.
func NewDummy(view spacetime.View, size chunk.Size, nbands int, fill float64) (*Dummy, error) {
	if nbands < 1 {
		return nil, ConfigError(TypeDummy, errors.New("at least one band required"))
	}
	var bands chunk.Bands
	for i := 1; i <= nbands; i++ {
		if err := bands.Add(chunk.NewBand(fmt.Sprintf("band%d", i))); err != nil {
			return nil, ConfigError(TypeDummy, err)
		}
	}
	base, err := NewBase(TypeDummy, view.Reference, size, bands)
	if err != nil {
		return nil, err
	}
	return &Dummy{Base: base, view: view, fill: fill}, nil
}

// ReadChunk implements Node.
func (d *Dummy) ReadChunk(ctx context.Context, id chunk.ID) (*chunk.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, ChunkError(TypeDummy, id, err)
	}
	buf, err := d.NewChunkBuffer(id)
	if err != nil {
		return nil, err
	}
	buf.Fill(d.fill)
	return buf, nil
}

// Describe implements Node.
func (d *Dummy) Describe() Description {
	return Description{
		KeyType:      TypeDummy,
		"view":       d.view,
		"chunk_size": d.ChunkSize(),
		"nbands":     d.Bands().Count(),
		"fill":       d.fill,
	}
}

func decodeDummy(d Description, _ *Registry) (Node, error) {
	var (
		view   spacetime.View
		size   chunk.Size
		nbands int
		fill   float64
	)
	for key, target := range map[string]any{"view": &view, "chunk_size": &size, "nbands": &nbands, "fill": &fill} {
		if err := d.Decode(key, target); err != nil {
			return nil, ConfigError("decode", err)
		}
	}
	return NewDummy(view, size, nbands, fill)
}
