// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cubeflow/internal/chunk"
)

func startEmbedded(t *testing.T, jetStream bool) *EmbeddedServer {
	t.Helper()
	cfg := DefaultServerConfig()
	cfg.Port = -1
	if jetStream {
		cfg.JetStream = true
		cfg.StoreDir = t.TempDir()
	}
	srv, err := NewEmbeddedServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	require.True(t, srv.IsRunning())
	return srv
}

func TestEmbeddedServerRequiresStoreForJetStream(t *testing.T) {
	_, err := NewEmbeddedServer(ServerConfig{Host: "127.0.0.1", Port: -1, JetStream: true})
	require.Error(t, err)
}

func TestNATSTransportRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	srv := startEmbedded(t, false)

	cfg := DefaultNATSConfig(srv.ClientURL())
	cfg.CloseTimeout = 5 * time.Second
	tr, err := NewNATSTransport(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	startWorker(t, tr, newRegistry(), "nats-worker")

	src := newSource(t)
	bufs, calls, rep, err := collect(t, NewCoordinator(tr, 2, nil), src)
	require.NoError(t, err)
	require.True(t, rep.OK(), "failures: %v", rep.Err())
	for id := chunk.ID(0); id < 18; id++ {
		require.Equal(t, 1, calls[id])
		want, err := src.Expected(id)
		require.NoError(t, err)
		require.True(t, want.Equal(bufs[id]))
	}
}

func TestEnsureTaskStream(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	srv := startEmbedded(t, true)
	cfg := DefaultNATSConfig(srv.ClientURL())
	cfg.JetStream = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, ensureTaskStream(ctx, cfg))
	require.NoError(t, ensureTaskStream(ctx, cfg), "second call updates the existing stream")
}
