// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/cubeflow/internal/logging"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	tree := NewSupervisorTree(quietLogger(), TreeConfig{})

	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want %+v", tree.config, DefaultTreeConfig())
	}

	custom := NewSupervisorTree(quietLogger(), TreeConfig{FailureBackoff: time.Second})
	if custom.config.FailureBackoff != time.Second || custom.config.FailureThreshold != 5 {
		t.Errorf("config = %+v", custom.config)
	}
}

func TestSupervisorTree_StartsBothLayers(t *testing.T) {
	tree := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	worker := newMockService("chunk-worker-test", 0)
	server := newMockService("http-server", 0)
	tree.AddTransportService(worker)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for (worker.starts() == 0 || server.starts() == 0) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if worker.starts() == 0 || server.starts() == 0 {
		t.Fatalf("starts: worker %d, server %d", worker.starts(), server.starts())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestSupervisorTree_RestartsFailingWorker(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewSlogHandlerWithLogger(logging.NewTestLogger(&buf)))

	tree := NewSupervisorTree(logger, TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	worker := newMockService("chunk-worker-flaky", 2)
	server := newMockService("http-server", 0)
	tree.AddTransportService(worker)
	tree.AddAPIService(server)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(time.Second)
	for worker.starts() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-errCh

	if worker.starts() < 3 {
		t.Errorf("worker started %d times, want at least 3", worker.starts())
	}
	if server.starts() != 1 {
		t.Errorf("api service started %d times, want 1", server.starts())
	}
	if !strings.Contains(buf.String(), "chunk-worker-flaky") {
		t.Errorf("failure of the worker not logged:\n%s", buf.String())
	}
}
