// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package chunk

import (
	"errors"
	"math"
	"testing"
)

func TestNewBuffer_FilledWithNaN(t *testing.T) {
	t.Parallel()

	b := NewBuffer(2, Size{2, 3, 4})
	if b.Len() != 48 {
		t.Fatalf("Len() = %d, want 48", b.Len())
	}
	for i, v := range b.Data() {
		if !math.IsNaN(v) {
			t.Fatalf("value %d = %g, want NaN", i, v)
		}
	}
	if b.Empty() {
		t.Error("non-empty buffer reported empty")
	}
	if !NewBuffer(0, Size{2, 2, 2}).Empty() {
		t.Error("buffer without bands should be empty")
	}
}

func TestBuffer_Layout(t *testing.T) {
	t.Parallel()

	b := NewBuffer(2, Size{2, 2, 3})
	b.Set(1, 1, 0, 2, 42)
	if b.At(1, 1, 0, 2) != 42 {
		t.Fatal("At does not return the value stored by Set")
	}
	// band 1 starts after 12 values, t=1 after 6 more, x=2
	if b.Data()[12+6+2] != 42 {
		t.Error("values are not stored band-major")
	}
	if b.Band(1)[6+2] != 42 {
		t.Error("Band view does not share storage")
	}
	if s := b.Slice(1, 1); len(s) != 6 || s[2] != 42 {
		t.Errorf("Slice(1, 1) = %v", s)
	}
}

func TestBuffer_CloneAndEqual(t *testing.T) {
	t.Parallel()

	a := NewBuffer(1, Size{1, 2, 2})
	a.Set(0, 0, 0, 0, 1.5)
	c := a.Clone()
	if !a.Equal(c) {
		t.Fatal("clone differs, NaN should equal NaN")
	}
	c.Set(0, 0, 1, 1, 7)
	if a.Equal(c) {
		t.Error("buffers with different values compared equal")
	}
	if !math.IsNaN(a.At(0, 0, 1, 1)) {
		t.Error("mutating the clone changed the original")
	}
	if a.Equal(NewBuffer(1, Size{1, 1, 4})) {
		t.Error("buffers with different shapes compared equal")
	}
	var nilBuf *Buffer
	if a.Equal(nilBuf) || !nilBuf.Equal(nil) {
		t.Error("nil handling in Equal")
	}
}

func TestFromData(t *testing.T) {
	t.Parallel()

	b, err := FromData(1, Size{1, 1, 3}, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if b.At(0, 0, 0, 2) != 3 || b.Bytes() != 24 {
		t.Errorf("unexpected buffer %v", b.Data())
	}
	if _, err := FromData(2, Size{1, 1, 3}, []float64{1, 2, 3}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("error = %v, want ErrShapeMismatch", err)
	}
}

func TestBands(t *testing.T) {
	t.Parallel()

	bs, err := NewBands(NewBand("red"), NewBand("nir"))
	if err != nil {
		t.Fatal(err)
	}
	if bs.Count() != 2 || bs.Index("nir") != 1 || bs.Index("swir") != -1 || !bs.Has("red") {
		t.Errorf("unexpected lookup results for %v", bs.Names())
	}
	if err := bs.Add(NewBand("red")); !errors.Is(err, ErrDuplicateBand) {
		t.Errorf("duplicate add error = %v", err)
	}

	data, err := bs.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var back Bands
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatal(err)
	}
	if got, _ := back.ByName("nir"); got != bs.Get(1) {
		t.Errorf("round trip band = %+v", got)
	}
}
