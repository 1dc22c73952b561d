// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/datetime"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/processor"
	"github.com/tomtom215/cubeflow/internal/spacetime"
)

// ErrNotDirectory is returned when the chunk directory path is a file.
var ErrNotDirectory = errors.New("output is not a directory")

// Slice file encodings.
const (
	EncodingRaw  = "float64le"
	EncodingZstd = "float64le+zstd"
)

const (
	sliceExt = ".bin"
	zstdExt  = ".zst"
	metaExt  = ".json"
)

// SliceMeta is the sidecar of one slice file.
type SliceMeta struct {
	Chunk        uint32     `json:"chunk"`
	Band         string     `json:"band"`
	BandIndex    int        `json:"band_index"`
	TimeIndex    uint32     `json:"time_index"`
	Time         string     `json:"time"`
	Width        uint32     `json:"width"`
	Height       uint32     `json:"height"`
	GeoTransform [6]float64 `json:"geotransform"`
	NoData       string     `json:"nodata"`
	SRS          string     `json:"srs"`
	Encoding     string     `json:"encoding"`
}

// SliceName returns the base name of the slice file for chunk id, band
// index b and time slice t within the chunk, without extension.
func SliceName(id chunk.ID, b int, t uint32) string {
	return fmt.Sprintf("%d_%d_%d", id, b, t)
}

// WriteChunkDir writes every chunk of node into dir. Missing directories are
// created; a dir that cannot be created or written to fails before any
// chunk is read.
func WriteChunkDir(ctx context.Context, node cube.Node, dir string, opts Options) (processor.Report, error) {
	if err := prepareDir(dir); err != nil {
		return processor.Report{}, cube.ExportError("chunk directory", err)
	}

	var enc *zstd.Encoder
	if opts.Compress {
		var err error
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return processor.Report{}, cube.ExportError("chunk directory", err)
		}
		defer enc.Close()
	}

	ref := node.Reference()
	bands := node.Bands()
	w := &sliceWriter{dir: dir, node: node, ref: ref, bands: bands, enc: enc}

	logging.Ctx(ctx).Info().
		Str("dir", dir).
		Str("cube_type", node.Type()).
		Uint32("chunks", node.CountChunks()).
		Bool("compress", opts.Compress).
		Msg("Writing chunk directory")

	return opts.processor().Apply(ctx, node, w.write)
}

func prepareDir(dir string) error {
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

type sliceWriter struct {
	dir   string
	node  cube.Node
	ref   spacetime.Reference
	bands chunk.Bands
	enc   *zstd.Encoder
}

// write is the chunk callback. Every slice goes to its own file so the
// shared mutex is not needed.
func (w *sliceWriter) write(id chunk.ID, buf *chunk.Buffer, _ *sync.Mutex) error {
	if buf.Empty() {
		return nil
	}
	lim, err := w.node.ChunkLimits(id)
	if err != nil {
		return err
	}
	if err := checkShape(buf, lim, w.bands.Count()); err != nil {
		return err
	}
	bounds, err := w.node.BoundsFromChunk(id)
	if err != nil {
		return err
	}

	shape := lim.Shape()
	nt, ny, nx := shape[chunk.T], shape[chunk.Y], shape[chunk.X]
	raw := make([]byte, 0, int(ny)*int(nx)*8)
	for b := 0; b < buf.Bands(); b++ {
		band := w.bands.Get(b)
		for t := uint32(0); t < nt; t++ {
			raw = putRowsNorthUp(raw[:0], buf.Slice(b, t), ny, nx)

			meta := SliceMeta{
				Chunk:        uint32(id),
				Band:         band.Name,
				BandIndex:    b,
				TimeIndex:    t,
				Time:         w.sliceTime(lim.Low[chunk.T] + t).String(),
				Width:        nx,
				Height:       ny,
				GeoTransform: geoTransform(bounds.Window.Left, bounds.Window.Top, w.ref),
				NoData:       noData(band),
				SRS:          w.ref.SRS(),
				Encoding:     EncodingRaw,
			}
			data := raw
			name := SliceName(id, b, t) + sliceExt
			if w.enc != nil {
				data = w.enc.EncodeAll(raw, nil)
				name += zstdExt
				meta.Encoding = EncodingZstd
			}
			if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o644); err != nil {
				return err
			}
			sidecar, err := json.MarshalIndent(meta, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(w.dir, SliceName(id, b, t)+metaExt), sidecar, 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *sliceWriter) sliceTime(t uint32) datetime.DateTime {
	return w.ref.MapCoords(spacetime.Index{T: t}).T
}

func noData(b chunk.Band) string {
	if b.NoData == "" {
		return "NaN"
	}
	return b.NoData
}

// ReadSlice reads a slice file written by WriteChunkDir. Values are returned
// row by row, north-up.
func ReadSlice(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, zstdExt) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("%w: %v", chunk.ErrCorruptChunk, err)
		}
	}
	return decodeFloats(data)
}

// ReadSliceMeta reads the sidecar of a slice.
func ReadSliceMeta(dir string, id chunk.ID, b int, t uint32) (SliceMeta, error) {
	var meta SliceMeta
	data, err := os.ReadFile(filepath.Join(dir, SliceName(id, b, t)+metaExt))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// SlicePath returns the path of the slice file described by meta.
func SlicePath(dir string, meta SliceMeta) string {
	name := SliceName(chunk.ID(meta.Chunk), meta.BandIndex, meta.TimeIndex) + sliceExt
	if meta.Encoding == EncodingZstd {
		name += zstdExt
	}
	return filepath.Join(dir, name)
}
