// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestGenerateRunID(t *testing.T) {
	t.Parallel()

	id1 := GenerateRunID()
	id2 := GenerateRunID()

	if len(id1) != 8 {
		t.Errorf("expected 8-character run ID, got %q", id1)
	}
	if id1 == id2 {
		t.Error("expected unique run IDs")
	}
}

func TestGenerateRequestID(t *testing.T) {
	t.Parallel()

	id := GenerateRequestID()
	if len(id) != 36 { // UUID format
		t.Errorf("expected 36-character request ID, got %d", len(id))
	}
}

func TestRunIDContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if id := RunIDFromContext(ctx); id != "" {
		t.Errorf("expected empty run ID, got %s", id)
	}

	ctx = ContextWithRunID(ctx, "run-123")
	if id := RunIDFromContext(ctx); id != "run-123" {
		t.Errorf("expected 'run-123', got '%s'", id)
	}
}

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	ctx := ContextWithRequestID(context.Background(), "req-456")
	if id := RequestIDFromContext(ctx); id != "req-456" {
		t.Errorf("expected 'req-456', got '%s'", id)
	}
}

func TestCtx_AddsContextFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRunID(ctx, "abc12345")
	ctx = ContextWithRequestID(ctx, "req-1")

	Ctx(ctx).Info().Uint32("chunk_id", 7).Msg("Chunk done")

	out := buf.String()
	for _, want := range []string{`"run_id":"abc12345"`, `"request_id":"req-1"`, `"chunk_id":7`, `"message":"Chunk done"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestCtx_WithoutFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))

	Ctx(ctx).Info().Msg("plain")

	if strings.Contains(buf.String(), "run_id") || strings.Contains(buf.String(), "request_id") {
		t.Errorf("unexpected context fields in %s", buf.String())
	}
}

func TestLoggerFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { SetLogger(prev) })

	l := LoggerFromContext(context.Background())
	l.Info().Msg("global")

	if !strings.Contains(buf.String(), "global") {
		t.Errorf("expected global logger output, got %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { SetLogger(prev) })

	l := WithComponent("fscache")
	l.Info().Msg("opened")

	if !strings.Contains(buf.String(), `"component":"fscache"`) {
		t.Errorf("expected component field, got %s", buf.String())
	}
}
