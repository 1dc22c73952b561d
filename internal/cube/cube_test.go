// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package cube

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/datetime"
	"github.com/tomtom215/cubeflow/internal/spacetime"
)

func testView(t *testing.T, nt, ny, nx uint32) spacetime.View {
	t.Helper()
	t0 := datetime.MustParse("2020-01-01")
	ref, err := spacetime.NewReference("EPSG:3857",
		spacetime.Window{Left: 0, Right: float64(nx), Bottom: 0, Top: float64(ny)},
		nx, ny, t0, t0.Add(datetime.Days(int32(nt)-1)), datetime.Days(1))
	if err != nil {
		t.Fatalf("NewReference: %v", err)
	}
	return spacetime.View{Reference: ref, Aggregation: spacetime.AggregationMean}
}

func testDummy(t *testing.T) *Dummy {
	t.Helper()
	d, err := NewDummy(testView(t, 4, 4, 4), chunk.Size{2, 2, 2}, 3, 1.5)
	if err != nil {
		t.Fatalf("NewDummy: %v", err)
	}
	return d
}

func TestDummy_Geometry(t *testing.T) {
	t.Parallel()

	var n Node = testDummy(t)
	if n.CountChunks() != 8 {
		t.Fatalf("CountChunks() = %d, want 8", n.CountChunks())
	}
	l, err := n.ChunkLimits(0)
	if err != nil {
		t.Fatal(err)
	}
	if l.Low != [3]uint32{0, 0, 0} || l.High != [3]uint32{1, 1, 1} {
		t.Errorf("ChunkLimits(0) = %+v", l)
	}
	b, err := n.BoundsFromChunk(0)
	if err != nil {
		t.Fatal(err)
	}
	if b.Window.Right != 2 || b.Window.Top != 2 || b.T1.String() != "2020-01-02" {
		t.Errorf("BoundsFromChunk(0) = %+v", b)
	}

	_, err = n.ChunkLimits(8)
	if !IsKind(err, KindChunk) || !errors.Is(err, chunk.ErrChunkOutOfRange) {
		t.Errorf("ChunkLimits(8) error = %v", err)
	}
}

func TestDummy_ReadChunk(t *testing.T) {
	t.Parallel()

	d := testDummy(t)
	buf, err := d.ReadChunk(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Bands() != 3 || buf.Size() != (chunk.Size{2, 2, 2}) {
		t.Fatalf("shape = %d x %s", buf.Bands(), buf.Size())
	}
	for _, v := range buf.Data() {
		if v != 1.5 {
			t.Fatalf("value %g, want 1.5", v)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.ReadChunk(ctx, 0); !errors.Is(err, context.Canceled) || !IsKind(err, KindChunk) {
		t.Errorf("cancelled read error = %v", err)
	}
}

func TestNewDummy_ConfigErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewDummy(testView(t, 1, 1, 1), chunk.Size{0, 1, 1}, 1, 0); !IsKind(err, KindConfig) {
		t.Errorf("zero chunk size error = %v", err)
	}
	if _, err := NewDummy(testView(t, 1, 1, 1), chunk.Size{1, 1, 1}, 0, 0); !IsKind(err, KindConfig) {
		t.Errorf("zero bands error = %v", err)
	}
}

func TestBase_ReferenceIsCopied(t *testing.T) {
	t.Parallel()

	parent := testDummy(t)
	child, err := NewFillNodata(parent, 0)
	if err != nil {
		t.Fatal(err)
	}
	ref := child.Reference()
	if err := ref.SetNX(2); err != nil {
		t.Fatal(err)
	}
	if err := child.SetReference(ref); err != nil {
		t.Fatal(err)
	}
	if parent.Reference().NX() != 4 {
		t.Error("changing the child grid changed the parent")
	}
	if child.CountChunks() != 4 {
		t.Errorf("child CountChunks() = %d, want 4", child.CountChunks())
	}
	if err := child.SetChunkSize(chunk.Size{4, 4, 4}); err != nil || child.CountChunks() != 1 {
		t.Errorf("SetChunkSize: %v, %d chunks", err, child.CountChunks())
	}
}

func TestLinkAndLineage(t *testing.T) {
	t.Parallel()

	src := testDummy(t)
	sel, err := NewSelectBands(src, []string{"band3", "band1"})
	if err != nil {
		t.Fatal(err)
	}
	fill, err := NewFillNodata(sel, -1)
	if err != nil {
		t.Fatal(err)
	}

	if got := src.Children(); len(got) != 1 || got[0] != sel.ID() {
		t.Errorf("src children = %v, want [%d]", got, sel.ID())
	}
	if p := fill.Parents(); len(p) != 1 || p[0].ID() != sel.ID() {
		t.Errorf("fill parents = %v", p)
	}
	lineage := Lineage(fill)
	if len(lineage) != 2 || lineage[0].ID() != sel.ID() || lineage[1].ID() != src.ID() {
		t.Errorf("lineage has %d nodes", len(lineage))
	}
	if src.ID() == sel.ID() || sel.ID() == fill.ID() {
		t.Error("node ids are not unique")
	}
}

func TestSelectBands(t *testing.T) {
	t.Parallel()

	src, err := NewDummy(testView(t, 2, 2, 2), chunk.Size{2, 2, 2}, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	sel, err := NewSelectBands(src, []string{"band3", "band1"})
	if err != nil {
		t.Fatal(err)
	}
	if got := sel.Bands().Names(); len(got) != 2 || got[0] != "band3" || got[1] != "band1" {
		t.Errorf("bands = %v", got)
	}
	buf, err := sel.ReadChunk(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Bands() != 2 {
		t.Errorf("buffer bands = %d", buf.Bands())
	}

	if _, err := NewSelectBands(src, []string{"nir"}); !IsKind(err, KindConfig) {
		t.Errorf("unknown band error = %v", err)
	}
	if _, err := NewSelectBands(src, nil); !IsKind(err, KindConfig) {
		t.Errorf("empty selection error = %v", err)
	}
}

// timeNode holds the global time index in every cell, NaN at t == 1 for
// x == 0.
type timeNode struct {
	*Base
	fail bool
}

func newTimeNode(t *testing.T, view spacetime.View, size chunk.Size) *timeNode {
	t.Helper()
	bands, _ := chunk.NewBands(chunk.NewBand("t"))
	base, err := NewBase("time_index", view.Reference, size, bands)
	if err != nil {
		t.Fatal(err)
	}
	return &timeNode{Base: base}
}

func (n *timeNode) ReadChunk(_ context.Context, id chunk.ID) (*chunk.Buffer, error) {
	if n.fail {
		return nil, ChunkError("time_index", id, errors.New("boom"))
	}
	l, err := n.ChunkLimits(id)
	if err != nil {
		return nil, err
	}
	buf := chunk.NewBuffer(1, l.Shape())
	s := buf.Size()
	for t := uint32(0); t < s[chunk.T]; t++ {
		for y := uint32(0); y < s[chunk.Y]; y++ {
			for x := uint32(0); x < s[chunk.X]; x++ {
				v := float64(l.Low[chunk.T] + t)
				if l.Low[chunk.T]+t == 1 && l.Low[chunk.X]+x == 0 {
					v = math.NaN()
				}
				buf.Set(0, t, y, x, v)
			}
		}
	}
	return buf, nil
}

func (n *timeNode) Describe() Description { return Description{KeyType: "time_index"} }

func TestReduceTime(t *testing.T) {
	t.Parallel()

	// 5 time steps split into chunks of 2: t = 0, 1, 2, 3, 4
	src := newTimeNode(t, testView(t, 5, 2, 2), chunk.Size{2, 2, 1})
	red, err := NewReduceTime(src, []BandReducer{
		{ReducerMean, "t"}, {ReducerMedian, "t"}, {ReducerCount, "t"}, {ReducerMax, "t"},
		{ReducerSum, "t"}, {ReducerVar, "t"}, {ReducerSD, "t"}, {ReducerMin, "t"}, {ReducerProd, "t"},
	})
	if err != nil {
		t.Fatal(err)
	}
	ref := red.Reference()
	if ref.NT() != 1 || red.ChunkSize() != (chunk.Size{1, 2, 1}) || red.CountChunks() != 2 {
		t.Fatalf("reduced grid nt=%d chunk=%s count=%d", ref.NT(), red.ChunkSize(), red.CountChunks())
	}
	if red.Bands().Index("t_median") != 1 {
		t.Errorf("bands = %v", red.Bands().Names())
	}

	full := []float64{2, 2, 5, 4, 10, 2.5, math.Sqrt(2.5), 0, 0}
	// x == 0 lacks t == 1
	gap := []float64{2.25, 2.5, 4, 4, 9, 35.0 / 12, math.Sqrt(35.0 / 12), 0, 0}

	for id, want := range map[chunk.ID][]float64{0: gap, 1: full} {
		buf, err := red.ReadChunk(context.Background(), id)
		if err != nil {
			t.Fatalf("ReadChunk(%d): %v", id, err)
		}
		for b, w := range want {
			for _, v := range buf.Band(b) {
				if math.Abs(v-w) > 1e-12 {
					t.Errorf("chunk %d band %s = %g, want %g", id, red.Bands().Get(b).Name, v, w)
				}
			}
		}
	}

	src.fail = true
	if _, err := red.ReadChunk(context.Background(), 0); !IsKind(err, KindChunk) {
		t.Errorf("upstream failure error = %v", err)
	}
}

func TestReduceTime_ConfigErrors(t *testing.T) {
	t.Parallel()

	src := testDummy(t)
	tests := map[string][]BandReducer{
		"none":            nil,
		"unknown reducer": {{"mode", "band1"}},
		"unknown band":    {{ReducerMean, "nir"}},
		"duplicate":       {{ReducerMean, "band1"}, {ReducerMean, "band1"}},
	}
	for name, reducers := range tests {
		if _, err := NewReduceTime(src, reducers); !IsKind(err, KindConfig) {
			t.Errorf("%s: error = %v", name, err)
		}
	}
}

func TestFillNodata(t *testing.T) {
	t.Parallel()

	src := newTimeNode(t, testView(t, 2, 1, 2), chunk.Size{2, 1, 2})
	f, err := NewFillNodata(src, -9)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := f.ReadChunk(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if buf.At(0, 1, 0, 0) != -9 || buf.At(0, 1, 0, 1) != 1 {
		t.Errorf("filled values = %v", buf.Data())
	}
}

func TestReadChunk_ConcurrentDistinctIDs(t *testing.T) {
	t.Parallel()

	src := testDummy(t)
	sel, err := NewSelectBands(src, []string{"band2"})
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, sel.CountChunks())
	for id := chunk.ID(0); uint32(id) < sel.CountChunks(); id++ {
		wg.Add(1)
		go func(id chunk.ID) {
			defer wg.Done()
			if _, err := sel.ReadChunk(context.Background(), id); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
