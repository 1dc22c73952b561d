// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package cube

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tomtom215/cubeflow/internal/chunk"
)

// TypeReduceTime is the cube_type of ReduceTime.
const TypeReduceTime = "reduce_time"

// Reducers understood by ReduceTime.
const (
	ReducerMin    = "min"
	ReducerMax    = "max"
	ReducerMean   = "mean"
	ReducerMedian = "median"
	ReducerSum    = "sum"
	ReducerProd   = "prod"
	ReducerCount  = "count"
	ReducerVar    = "var"
	ReducerSD     = "sd"
)

var knownReducers = map[string]bool{
	ReducerMin: true, ReducerMax: true, ReducerMean: true, ReducerMedian: true, ReducerSum: true,
	ReducerProd: true, ReducerCount: true, ReducerVar: true, ReducerSD: true,
}

// BandReducer applies one reducer to one input band. The output band is
// named "<band>_<reducer>".
type BandReducer struct {
	Reducer string
	Band    string
}

// ReduceTime collapses the time dimension of its input to a single slice.
// No-data values are ignored; cells without any value are NaN, except for
// count, which yields 0.
type ReduceTime struct {
	*Base
	in       Node
	inGrid   chunk.Grid
	reducers []BandReducer
	inBand   []int
}

// NewReduceTime reduces in over time with one reducer per output band.
func NewReduceTime(in Node, reducers []BandReducer) (*ReduceTime, error) {
	if len(reducers) == 0 {
		return nil, ConfigError(TypeReduceTime, errors.New("no reducers given"))
	}
	src := in.Bands()
	var bands chunk.Bands
	inBand := make([]int, len(reducers))
	for i, r := range reducers {
		if !knownReducers[r.Reducer] {
			return nil, ConfigError(TypeReduceTime, fmt.Errorf("unknown reducer %q", r.Reducer))
		}
		bi := src.Index(r.Band)
		if bi < 0 {
			return nil, ConfigError(TypeReduceTime, fmt.Errorf("band %q does not exist", r.Band))
		}
		inBand[i] = bi
		out := chunk.NewBand(r.Band + "_" + r.Reducer)
		if r.Reducer != ReducerCount {
			out.Unit = src.Get(bi).Unit
		}
		if err := bands.Add(out); err != nil {
			return nil, ConfigError(TypeReduceTime, err)
		}
	}

	ref := in.Reference()
	if _, err := ref.SetDT(ref.T1().Sub(ref.T0()).Add(1)); err != nil {
		return nil, ConfigError(TypeReduceTime, err)
	}
	inSize := in.ChunkSize()
	base, err := NewBase(TypeReduceTime, ref, chunk.Size{1, inSize[chunk.Y], inSize[chunk.X]}, bands)
	if err != nil {
		return nil, err
	}
	inGrid, err := chunk.NewGrid(in.Reference(), inSize)
	if err != nil {
		return nil, ConfigError(TypeReduceTime, err)
	}
	n := &ReduceTime{
		Base:     base,
		in:       in,
		inGrid:   inGrid,
		reducers: append([]BandReducer(nil), reducers...),
		inBand:   inBand,
	}
	Link(in, n)
	return n, nil
}

// ReadChunk implements Node.
func (r *ReduceTime) ReadChunk(ctx context.Context, id chunk.ID) (*chunk.Buffer, error) {
	out, err := r.NewChunkBuffer(id)
	if err != nil {
		return nil, err
	}
	size := out.Size()
	cells := int(size[chunk.Y]) * int(size[chunk.X])

	accs := make([]accumulator, len(r.reducers))
	for i, br := range r.reducers {
		accs[i] = newAccumulator(br.Reducer, cells)
	}

	pos := r.Grid().Position(id)
	for ti := uint32(0); ti < r.inGrid.Counts()[chunk.T]; ti++ {
		if err := ctx.Err(); err != nil {
			return nil, ChunkError(TypeReduceTime, id, err)
		}
		src, err := r.in.ReadChunk(ctx, r.inGrid.IDAt([3]uint32{ti, pos[chunk.Y], pos[chunk.X]}))
		if err != nil {
			return nil, ChunkError(TypeReduceTime, id, err)
		}
		if src.Empty() {
			continue
		}
		ss := src.Size()
		if ss[chunk.Y] != size[chunk.Y] || ss[chunk.X] != size[chunk.X] {
			return nil, ChunkError(TypeReduceTime, id, fmt.Errorf("input chunk shape %s does not match %s", ss, size))
		}
		for i, bi := range r.inBand {
			values := src.Band(bi)
			for t := 0; t < int(ss[chunk.T]); t++ {
				plane := values[t*cells : (t+1)*cells]
				for c, v := range plane {
					if !math.IsNaN(v) {
						accs[i].add(c, v)
					}
				}
			}
		}
	}

	for i, acc := range accs {
		band := out.Band(i)
		for c := range band {
			band[c] = acc.result(c)
		}
	}
	return out, nil
}

// Describe implements Node.
func (r *ReduceTime) Describe() Description {
	pairs := make([][2]string, len(r.reducers))
	for i, br := range r.reducers {
		pairs[i] = [2]string{br.Reducer, br.Band}
	}
	return Description{
		KeyType:         TypeReduceTime,
		"reducer_bands": pairs,
		KeyParent:       r.in.Describe(),
	}
}

func decodeReduceTime(d Description, reg *Registry) (Node, error) {
	var pairs [][2]string
	if err := d.Decode("reducer_bands", &pairs); err != nil {
		return nil, ConfigError("decode", err)
	}
	in, err := reg.DecodeParent(d)
	if err != nil {
		return nil, err
	}
	reducers := make([]BandReducer, len(pairs))
	for i, p := range pairs {
		reducers[i] = BandReducer{Reducer: p[0], Band: p[1]}
	}
	return NewReduceTime(in, reducers)
}

type accumulator interface {
	add(cell int, v float64)
	result(cell int) float64
}

func newAccumulator(reducer string, cells int) accumulator {
	switch reducer {
	case ReducerMedian:
		return &medianAcc{values: make([][]float64, cells)}
	case ReducerVar, ReducerSD:
		return &varianceAcc{n: make([]float64, cells), mean: make([]float64, cells), m2: make([]float64, cells), sd: reducer == ReducerSD}
	default:
		return newFoldAcc(reducer, cells)
	}
}

// foldAcc handles reducers that only need a running value and a count.
type foldAcc struct {
	reducer string
	value   []float64
	n       []float64
}

func newFoldAcc(reducer string, cells int) *foldAcc {
	return &foldAcc{reducer: reducer, value: make([]float64, cells), n: make([]float64, cells)}
}

func (a *foldAcc) add(c int, v float64) {
	if a.n[c] == 0 {
		a.n[c] = 1
		a.value[c] = v
		return
	}
	a.n[c]++
	switch a.reducer {
	case ReducerMin:
		a.value[c] = math.Min(a.value[c], v)
	case ReducerMax:
		a.value[c] = math.Max(a.value[c], v)
	case ReducerSum, ReducerMean:
		a.value[c] += v
	case ReducerProd:
		a.value[c] *= v
	}
}

func (a *foldAcc) result(c int) float64 {
	if a.reducer == ReducerCount {
		return a.n[c]
	}
	if a.n[c] == 0 {
		return math.NaN()
	}
	if a.reducer == ReducerMean {
		return a.value[c] / a.n[c]
	}
	return a.value[c]
}

// varianceAcc uses Welford's online algorithm and reports the sample
// variance.
type varianceAcc struct {
	n, mean, m2 []float64
	sd          bool
}

func (a *varianceAcc) add(c int, v float64) {
	a.n[c]++
	delta := v - a.mean[c]
	a.mean[c] += delta / a.n[c]
	a.m2[c] += delta * (v - a.mean[c])
}

func (a *varianceAcc) result(c int) float64 {
	if a.n[c] < 2 {
		return math.NaN()
	}
	v := a.m2[c] / (a.n[c] - 1)
	if a.sd {
		return math.Sqrt(v)
	}
	return v
}

type medianAcc struct {
	values [][]float64
}

func (a *medianAcc) add(c int, v float64) {
	a.values[c] = append(a.values[c], v)
}

func (a *medianAcc) result(c int) float64 {
	vs := a.values[c]
	if len(vs) == 0 {
		return math.NaN()
	}
	sort.Float64s(vs)
	mid := len(vs) / 2
	if len(vs)%2 == 1 {
		return vs[mid]
	}
	return (vs[mid-1] + vs[mid]) / 2
}
