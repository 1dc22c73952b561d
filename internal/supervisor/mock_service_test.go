// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// mockService runs until canceled, optionally failing its first starts.
type mockService struct {
	name       string
	startCount atomic.Int32
	failures   atomic.Int32
}

func newMockService(name string, failures int32) *mockService {
	m := &mockService{name: name}
	m.failures.Store(failures)
	return m
}

func (m *mockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)
	if m.failures.Add(-1) >= 0 {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) starts() int32 { return m.startCount.Load() }

func (m *mockService) String() string { return m.name }
