// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package export

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/processor"
	"github.com/tomtom215/cubeflow/internal/spacetime"
)

// Format names, used in configuration.
const (
	FormatChunkDir = "chunkdir"
	FormatDense    = "dense"
)

// Options configures an export.
type Options struct {
	// Processor runs the export. Nil means a sequential processor without
	// progress reporting.
	Processor processor.Processor

	// Compress zstd-compresses the slice files of a chunk directory. Dense
	// files are never compressed since chunks are written in place.
	Compress bool
}

func (o Options) processor() processor.Processor {
	if o.Processor == nil {
		return processor.NewSequential(nil)
	}
	return o.Processor
}

// geoTransform returns the affine transform of a raster whose upper left
// corner is (left, top), in the GDAL coefficient order.
func geoTransform(left, top float64, ref spacetime.Reference) [6]float64 {
	return [6]float64{left, ref.DX(), 0, top, 0, -ref.DY()}
}

// checkShape verifies that a produced buffer matches its chunk limits.
func checkShape(buf *chunk.Buffer, lim chunk.Limits, nbands int) error {
	if buf.Size() != lim.Shape() || buf.Bands() != nbands {
		return fmt.Errorf("%w: got %d bands of %s, want %d bands of %s",
			chunk.ErrShapeMismatch, buf.Bands(), buf.Size(), nbands, lim.Shape())
	}
	return nil
}

// putRowsNorthUp appends the rows of one (band, t) slice to dst, last row
// first, as little endian float64.
func putRowsNorthUp(dst []byte, slice []float64, ny, nx uint32) []byte {
	for y := int(ny) - 1; y >= 0; y-- {
		row := slice[y*int(nx) : (y+1)*int(nx)]
		for _, v := range row {
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
		}
	}
	return dst
}

// decodeFloats reads little endian float64 values.
func decodeFloats(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 8", chunk.ErrCorruptChunk, len(b))
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, nil
}
