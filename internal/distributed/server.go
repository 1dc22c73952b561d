// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/cubeflow/internal/logging"
)

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host string
	// Port -1 picks a free port.
	Port       int
	JetStream  bool
	StoreDir   string
	MaxPayload int32
}

// DefaultServerConfig listens on localhost:4222 without JetStream.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:       "127.0.0.1",
		Port:       4222,
		MaxPayload: 8 * 1024 * 1024,
	}
}

// EmbeddedServer is a NATS server running inside this process.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts a server and waits until it accepts clients.
func NewEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	if cfg.JetStream && cfg.StoreDir == "" {
		return nil, errors.New("embedded NATS: JetStream requires a store directory")
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = 8 * 1024 * 1024
	}
	opts := &server.Options{
		ServerName: "cubeflow",
		Host:       cfg.Host,
		Port:       cfg.Port,
		JetStream:  cfg.JetStream,
		StoreDir:   cfg.StoreDir,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: cfg.MaxPayload,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("NATS server not ready within timeout")
	}

	s := &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}
	logging.Info().
		Str("component", "distributed").
		Str("url", s.clientURL).
		Bool("jetstream", cfg.JetStream).
		Msg("Embedded NATS server started")
	return s, nil
}

// ClientURL returns the URL clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// IsRunning reports whether the server is running.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Shutdown stops the server and waits for it unless ctx ends first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
