// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

// Package cubetest provides cube nodes for tests of processors, caches and
// exports.
package cubetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/datetime"
	"github.com/tomtom215/cubeflow/internal/spacetime"
)

// TypeSource is the cube_type of Source.
const TypeSource = "test_source"

// ErrInjected is the cause of every failure injected by Source.
var ErrInjected = errors.New("injected chunk failure")

// View returns a daily view starting 2020-01-01 with unit-sized cells.
func View(tb testing.TB, nt, ny, nx uint32) spacetime.View {
	tb.Helper()
	t0 := datetime.MustParse("2020-01-01")
	ref, err := spacetime.NewReference("EPSG:3857",
		spacetime.Window{Left: 0, Right: float64(nx), Bottom: 0, Top: float64(ny)},
		nx, ny, t0, t0.Add(datetime.Days(int32(nt)-1)), datetime.Days(1))
	if err != nil {
		tb.Fatalf("cubetest: reference: %v", err)
	}
	return spacetime.View{Reference: ref}
}

// Source is a source cube whose chunk id is its value: every cell of chunk
// id holds float64(id) in band 0 and float64(id)+b*1000 in band b. It counts
// reads per chunk and fails reads of selected chunks.
type Source struct {
	*cube.Base
	view  spacetime.View
	fail  map[chunk.ID]bool
	delay time.Duration

	mu    sync.Mutex
	calls map[chunk.ID]int
}

// Option configures a Source.
type Option func(*Source)

// WithFailures makes reads of the given chunks fail with ErrInjected.
func WithFailures(ids ...chunk.ID) Option {
	return func(s *Source) {
		for _, id := range ids {
			s.fail[id] = true
		}
	}
}

// WithDelay makes every read sleep for d.
func WithDelay(d time.Duration) Option {
	return func(s *Source) { s.delay = d }
}

// NewSource returns a source over view.
func NewSource(view spacetime.View, size chunk.Size, nbands int, opts ...Option) (*Source, error) {
	var bands chunk.Bands
	for i := 0; i < nbands; i++ {
		if err := bands.Add(chunk.NewBand(fmt.Sprintf("b%d", i))); err != nil {
			return nil, err
		}
	}
	base, err := cube.NewBase(TypeSource, view.Reference, size, bands)
	if err != nil {
		return nil, err
	}
	s := &Source{Base: base, view: view, fail: make(map[chunk.ID]bool), calls: make(map[chunk.ID]int)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustSource is NewSource for tests.
func MustSource(tb testing.TB, view spacetime.View, size chunk.Size, nbands int, opts ...Option) *Source {
	tb.Helper()
	s, err := NewSource(view, size, nbands, opts...)
	if err != nil {
		tb.Fatalf("cubetest: source: %v", err)
	}
	return s
}

// Expected returns the buffer Source produces for chunk id.
func (s *Source) Expected(id chunk.ID) (*chunk.Buffer, error) {
	buf, err := s.NewChunkBuffer(id)
	if err != nil {
		return nil, err
	}
	for b := 0; b < buf.Bands(); b++ {
		band := buf.Band(b)
		for i := range band {
			band[i] = float64(id) + float64(b)*1000
		}
	}
	return buf, nil
}

// ReadChunk implements cube.Node.
func (s *Source) ReadChunk(ctx context.Context, id chunk.ID) (*chunk.Buffer, error) {
	s.mu.Lock()
	s.calls[id]++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, cube.ChunkError(TypeSource, id, ctx.Err())
		}
	}
	if s.fail[id] {
		return nil, cube.ChunkError(TypeSource, id, ErrInjected)
	}
	return s.Expected(id)
}

// Calls returns how often chunk id was read.
func (s *Source) Calls(id chunk.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

// TotalCalls returns the number of reads of all chunks.
func (s *Source) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Describe implements cube.Node.
func (s *Source) Describe() cube.Description {
	fail := make([]uint32, 0, len(s.fail))
	for id := range s.fail {
		fail = append(fail, uint32(id))
	}
	return cube.Description{
		cube.KeyType: TypeSource,
		"view":       s.view,
		"chunk_size": s.ChunkSize(),
		"nbands":     s.Bands().Count(),
		"fail":       fail,
		"delay_ms":   s.delay.Milliseconds(),
	}
}

// Register adds the Source constructor to r.
func Register(r *cube.Registry) {
	r.Register(TypeSource, func(d cube.Description, _ *cube.Registry) (cube.Node, error) {
		var (
			view    spacetime.View
			size    chunk.Size
			nbands  int
			fail    []uint32
			delayMS int64
		)
		for key, target := range map[string]any{"view": &view, "chunk_size": &size, "nbands": &nbands, "fail": &fail, "delay_ms": &delayMS} {
			if err := d.Decode(key, target); err != nil {
				return nil, err
			}
		}
		ids := make([]chunk.ID, len(fail))
		for i, id := range fail {
			ids[i] = chunk.ID(id)
		}
		return NewSource(view, size, nbands, WithFailures(ids...), WithDelay(time.Duration(delayMS)*time.Millisecond))
	})
}
