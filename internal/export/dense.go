// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package export

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/datetime"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/processor"
	"github.com/tomtom215/cubeflow/internal/spacetime"
	"github.com/tomtom215/cubeflow/internal/version"
)

var (
	// ErrIsDirectory is returned when the dense file path is a directory.
	ErrIsDirectory = errors.New("output already exists and is a directory")

	// ErrNotDense is returned by ReadDense for files of another format.
	ErrNotDense = errors.New("not a dense cube file")
)

// Dense file layout, all integers little endian:
//
//	offset  size  field
//	0       8     magic "CFDENSE1"
//	8       8     header length n
//	16      n     header JSON, padded with spaces to a multiple of 8
//	16+n'   ...   float64 values in [band][t][y][x] order, y north-up
var denseMagic = [8]byte{'C', 'F', 'D', 'E', 'N', 'S', 'E', '1'}

const (
	densePrefix = 16
	fillBlock   = 1 << 20
)

// Dimensions are the cell counts of a dense file.
type Dimensions struct {
	Time uint32 `json:"time"`
	Y    uint32 `json:"y"`
	X    uint32 `json:"x"`
}

// DenseHeader describes the contents of a dense file.
type DenseHeader struct {
	Conventions  string          `json:"conventions"`
	Source       string          `json:"source"`
	Version      string          `json:"version"`
	Dimensions   Dimensions      `json:"dimensions"`
	ChunkSize    chunk.Size      `json:"chunk_size"`
	XName        string          `json:"x_name"`
	YName        string          `json:"y_name"`
	X            []float64       `json:"x"`
	Y            []float64       `json:"y"`
	Time         []int32         `json:"time"`
	TimeUnits    string          `json:"time_units"`
	Calendar     string          `json:"calendar"`
	SRS          string          `json:"srs"`
	GeoTransform [6]float64      `json:"geotransform"`
	Bands        []chunk.Band    `json:"bands"`
	FillValue    string          `json:"fill_value"`
	Graph        json.RawMessage `json:"graph,omitempty"`
	DataOffset   int64           `json:"data_offset"`
}

// newDenseHeader describes the full grid of node.
func newDenseHeader(node cube.Node) (DenseHeader, error) {
	ref := node.Reference()
	nt, ny, nx := ref.NT(), ref.NY(), ref.NX()
	win := ref.Window()

	h := DenseHeader{
		Conventions:  "CF-1.6",
		Source:       version.Source(),
		Version:      version.String(),
		Dimensions:   Dimensions{Time: nt, Y: ny, X: nx},
		ChunkSize:    node.ChunkSize(),
		XName:        "longitude",
		YName:        "latitude",
		X:            make([]float64, nx),
		Y:            make([]float64, ny),
		Time:         make([]int32, nt),
		Calendar:     "gregorian",
		SRS:          ref.SRS(),
		GeoTransform: geoTransform(win.Left, win.Top, ref),
		Bands:        node.Bands().All(),
		FillValue:    "NaN",
	}
	if spacetime.IsProjected(ref.SRS()) {
		h.XName, h.YName = "x", "y"
	}

	// Cell centers; y runs from north to south like the data.
	for i := range h.X {
		h.X[i] = win.Left + (float64(i)+0.5)*ref.DX()
	}
	for i := range h.Y {
		h.Y[i] = win.Top - (float64(i)+0.5)*ref.DY()
	}

	step := ref.DT().Normalize()
	for i := range h.Time {
		h.Time[i] = int32(i) * step.Interval
	}
	h.TimeUnits = TimeUnits(step, ref.T0())

	graph, err := cube.MarshalGraph(node)
	if err != nil {
		return h, err
	}
	h.Graph = graph
	return h, nil
}

// TimeUnits returns the CF units string of a time axis with step dt that
// starts at t0, such as "days since 2020-01-01T00:00:00". Weeks are
// expressed in days.
func TimeUnits(dt datetime.Duration, t0 datetime.DateTime) string {
	return dt.Normalize().Unit.String() + "s since " + t0.Format(datetime.Second)
}

// encodeHeader returns the prefix of a dense file and sets DataOffset.
func encodeHeader(h *DenseHeader) ([]byte, error) {
	// DataOffset is part of the header, so its width changes the length.
	// Iterate until the offset is stable.
	h.DataOffset = 0
	for range 4 {
		body, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		n := len(body)
		if pad := n % 8; pad != 0 {
			n += 8 - pad
		}
		off := int64(densePrefix + n)
		if off == h.DataOffset {
			out := make([]byte, 0, off)
			out = append(out, denseMagic[:]...)
			out = binary.LittleEndian.AppendUint64(out, uint64(n))
			out = append(out, body...)
			out = append(out, bytes.Repeat([]byte{' '}, n-len(body))...)
			return out, nil
		}
		h.DataOffset = off
	}
	return nil, errors.New("dense header offset did not converge")
}

// WriteDenseFile writes every chunk of node into a single file at path. An
// existing file is overwritten. Cells of chunks that fail are left NaN.
func WriteDenseFile(ctx context.Context, node cube.Node, path string, opts Options) (processor.Report, error) {
	f, header, err := createDense(ctx, node, path)
	if err != nil {
		return processor.Report{}, cube.ExportError("dense file", err)
	}

	w := &denseWriter{f: f, node: node, h: header}
	rep, applyErr := opts.processor().Apply(ctx, node, w.write)

	if err := f.Sync(); err != nil {
		applyErr = errors.Join(applyErr, cube.ExportError("dense file", err))
	}
	if err := f.Close(); err != nil {
		applyErr = errors.Join(applyErr, cube.ExportError("dense file", err))
	}
	return rep, applyErr
}

func createDense(ctx context.Context, node cube.Node, path string) (*os.File, DenseHeader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, DenseHeader{}, err
	}
	if fi, err := os.Stat(abs); err == nil {
		if fi.IsDir() {
			return nil, DenseHeader{}, fmt.Errorf("%w: %s", ErrIsDirectory, abs)
		}
		logging.Ctx(ctx).Info().Str("path", abs).Msg("Existing file will be overwritten for dense export")
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, DenseHeader{}, err
	}

	h, err := newDenseHeader(node)
	if err != nil {
		return nil, h, err
	}
	prefix, err := encodeHeader(&h)
	if err != nil {
		return nil, h, err
	}

	f, err := os.Create(abs)
	if err != nil {
		return nil, h, err
	}
	if _, err := f.Write(prefix); err != nil {
		_ = f.Close()
		return nil, h, err
	}
	cells := int64(len(h.Bands)) * int64(h.Dimensions.Time) * int64(h.Dimensions.Y) * int64(h.Dimensions.X)
	if err := fillNaN(f, h.DataOffset, cells*8); err != nil {
		_ = f.Close()
		return nil, h, err
	}

	logging.Ctx(ctx).Info().
		Str("path", abs).
		Str("cube_type", node.Type()).
		Int64("bytes", h.DataOffset+cells*8).
		Msg("Writing dense file")
	return f, h, nil
}

// fillNaN preallocates n bytes at off with NaN values.
func fillNaN(w io.WriterAt, off, n int64) error {
	block := make([]byte, 0, min(n, fillBlock))
	nan := math.Float64bits(math.NaN())
	for int64(len(block)) < int64(cap(block)) {
		block = binary.LittleEndian.AppendUint64(block, nan)
	}
	for n > 0 {
		m := min(n, int64(len(block)))
		if _, err := w.WriteAt(block[:m], off); err != nil {
			return err
		}
		off += m
		n -= m
	}
	return nil
}

type denseWriter struct {
	f    *os.File
	node cube.Node
	h    DenseHeader
}

// offset returns the file offset of cell (b, t, y, x), y counted from north.
func (w *denseWriter) offset(b int, t, y, x uint32) int64 {
	d := w.h.Dimensions
	cell := ((int64(b)*int64(d.Time)+int64(t))*int64(d.Y)+int64(y))*int64(d.X) + int64(x)
	return w.h.DataOffset + cell*8
}

// write is the chunk callback. Rows are encoded outside the lock and
// written under it.
func (w *denseWriter) write(id chunk.ID, buf *chunk.Buffer, mu *sync.Mutex) error {
	if buf.Empty() {
		return nil
	}
	lim, err := w.node.ChunkLimits(id)
	if err != nil {
		return err
	}
	if err := checkShape(buf, lim, len(w.h.Bands)); err != nil {
		return err
	}

	shape := lim.Shape()
	nt, ny, nx := shape[chunk.T], shape[chunk.Y], shape[chunk.X]
	rowBytes := int(nx) * 8
	type row struct {
		off  int64
		data []byte
	}
	rows := make([]row, 0, buf.Bands()*int(nt)*int(ny))
	raw := make([]byte, 0, buf.Bands()*int(nt)*int(ny)*rowBytes)
	for b := 0; b < buf.Bands(); b++ {
		for t := uint32(0); t < nt; t++ {
			start := len(raw)
			raw = putRowsNorthUp(raw, buf.Slice(b, t), ny, nx)
			// Row i of the flipped slice is chunk row ny-1-i.
			for i := uint32(0); i < ny; i++ {
				gy := w.h.Dimensions.Y - 1 - (lim.Low[chunk.Y] + ny - 1 - i)
				lo := start + int(i)*rowBytes
				rows = append(rows, row{
					off:  w.offset(b, lim.Low[chunk.T]+t, gy, lim.Low[chunk.X]),
					data: raw[lo : lo+rowBytes],
				})
			}
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, r := range rows {
		if _, err := w.f.WriteAt(r.data, r.off); err != nil {
			return err
		}
	}
	return nil
}

// Dense is a dense file loaded into memory.
type Dense struct {
	Header DenseHeader
	Data   []float64
}

// At returns the value of cell (b, t, y, x) where y counts rows from north.
func (d *Dense) At(b int, t, y, x uint32) float64 {
	dim := d.Header.Dimensions
	return d.Data[((uint64(b)*uint64(dim.Time)+uint64(t))*uint64(dim.Y)+uint64(y))*uint64(dim.X)+uint64(x)]
}

// ReadDenseHeader reads only the header of a dense file.
func ReadDenseHeader(path string) (DenseHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return DenseHeader{}, err
	}
	defer f.Close()
	return readHeader(f)
}

func readHeader(r io.Reader) (DenseHeader, error) {
	var h DenseHeader
	var prefix [densePrefix]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return h, fmt.Errorf("%w: %v", ErrNotDense, err)
	}
	if !bytes.Equal(prefix[:8], denseMagic[:]) {
		return h, ErrNotDense
	}
	n := binary.LittleEndian.Uint64(prefix[8:])
	if n > 1<<30 {
		return h, fmt.Errorf("%w: header of %d bytes", ErrNotDense, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return h, fmt.Errorf("%w: %v", ErrNotDense, err)
	}
	if err := json.Unmarshal(bytes.TrimRight(body, " "), &h); err != nil {
		return h, fmt.Errorf("%w: %v", ErrNotDense, err)
	}
	return h, nil
}

// ReadDense loads a dense file.
func ReadDense(path string) (*Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(h.DataOffset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	values, err := decodeFloats(data)
	if err != nil {
		return nil, err
	}
	want := uint64(len(h.Bands)) * uint64(h.Dimensions.Time) * uint64(h.Dimensions.Y) * uint64(h.Dimensions.X)
	if uint64(len(values)) != want {
		return nil, fmt.Errorf("%w: %d values, want %d", ErrNotDense, len(values), want)
	}
	return &Dense{Header: h, Data: values}, nil
}
