// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultNATSImage matches the nats-server version embedded in cubeflow.
	DefaultNATSImage = "nats:2.12-alpine"

	// DefaultNATSPort is the client port.
	DefaultNATSPort = "4222"
)

// NATSContainer is a running NATS server for tests.
type NATSContainer struct {
	testcontainers.Container
	URL string
}

// NATSOption configures the NATS container.
type NATSOption func(*natsConfig)

type natsConfig struct {
	image        string
	jetStream    bool
	startTimeout time.Duration
}

// WithNATSImage sets a custom NATS Docker image.
func WithNATSImage(image string) NATSOption {
	return func(c *natsConfig) {
		c.image = image
	}
}

// WithoutJetStream starts a core NATS server.
func WithoutJetStream() NATSOption {
	return func(c *natsConfig) {
		c.jetStream = false
	}
}

// WithNATSStartTimeout sets the timeout for waiting for NATS to start.
func WithNATSStartTimeout(timeout time.Duration) NATSOption {
	return func(c *natsConfig) {
		c.startTimeout = timeout
	}
}

// NewNATSContainer starts a NATS server, with JetStream unless disabled.
//
//	nc, err := NewNATSContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer CleanupContainer(t, ctx, nc.Container)
//	tr, err := distributed.NewNATSTransport(ctx, distributed.DefaultNATSConfig(nc.URL), nil)
func NewNATSContainer(ctx context.Context, opts ...NATSOption) (*NATSContainer, error) {
	cfg := &natsConfig{
		image:        DefaultNATSImage,
		jetStream:    true,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	cmd := []string{"--port", DefaultNATSPort}
	if cfg.jetStream {
		cmd = append(cmd, "-js", "--store_dir", "/data")
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultNATSPort + "/tcp"},
		Cmd:          cmd,
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultNATSPort+"/tcp"),
			wait.ForLog("Server is ready"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultNATSPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &NATSContainer{
		Container: container,
		URL:       fmt.Sprintf("nats://%s:%s", host, port.Port()),
	}, nil
}
