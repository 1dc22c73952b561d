// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tomtom215/cubeflow/internal/config"
	"github.com/tomtom215/cubeflow/internal/distributed"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/processor"
)

// Broker is an open connection to the task transport, plus the embedded
// server behind it when one was started.
type Broker struct {
	Transport *distributed.Transport
	Server    *distributed.EmbeddedServer
	URL       string
}

// Close closes the transport and stops the embedded server.
func (b *Broker) Close(ctx context.Context) error {
	var errs []error
	if b.Transport != nil {
		if err := b.Transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}
	if b.Server != nil {
		if err := b.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop embedded NATS: %w", err))
		}
	}
	return errors.Join(errs...)
}

// natsConfig maps transport settings onto the NATS transport options.
func natsConfig(cfg config.TransportConfig, url string) distributed.NATSConfig {
	nc := distributed.DefaultNATSConfig(url)
	nc.TaskTopic = cfg.TaskTopic
	nc.QueueGroup = cfg.QueueGroup
	nc.DurableName = cfg.QueueGroup
	nc.JetStream = cfg.JetStream
	if cfg.AckWait > 0 {
		nc.AckWaitTimeout = cfg.AckWait
	}
	return nc
}

// serverConfig maps transport settings onto the embedded server options.
func serverConfig(cfg config.TransportConfig) distributed.ServerConfig {
	sc := distributed.DefaultServerConfig()
	if cfg.EmbeddedHost != "" {
		sc.Host = cfg.EmbeddedHost
	}
	if cfg.EmbeddedPort != 0 {
		sc.Port = cfg.EmbeddedPort
	}
	sc.JetStream = cfg.JetStream
	sc.StoreDir = cfg.StoreDir
	if sc.JetStream && sc.StoreDir == "" {
		sc.StoreDir = filepath.Join("data", "nats")
	}
	return sc
}

// OpenTransport connects to the broker named by cfg. With Embedded set a
// NATS server is started in this process first and cfg.URL is ignored.
func OpenTransport(ctx context.Context, cfg config.TransportConfig) (*Broker, error) {
	b := &Broker{URL: cfg.URL}
	if cfg.Embedded {
		srv, err := distributed.NewEmbeddedServer(serverConfig(cfg))
		if err != nil {
			return nil, err
		}
		b.Server = srv
		b.URL = srv.ClientURL()
	}

	t, err := distributed.NewNATSTransport(ctx, natsConfig(cfg, b.URL), logging.NewWatermillAdapter())
	if err != nil {
		_ = b.Close(ctx)
		return nil, fmt.Errorf("connect to %s: %w", b.URL, err)
	}
	b.Transport = t

	logging.Info().
		Str("component", "engine").
		Str("url", b.URL).
		Bool("embedded", cfg.Embedded).
		Bool("jetstream", cfg.JetStream).
		Msg("Task transport connected")
	return b, nil
}

// NewCoordinator builds the distributed processor over b.
func NewCoordinator(b *Broker, cfg config.TransportConfig, threads int, progress processor.ProgressFactory) *distributed.Coordinator {
	c := distributed.NewCoordinator(b.Transport, threads, progress)
	c.TaskTopic = cfg.TaskTopic
	c.ResultPrefix = cfg.ResultPrefix
	c.Timeout = cfg.Timeout
	c.Breaker = distributed.NewBreaker(distributed.BreakerConfig{
		Name:             "task-publisher",
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	})
	return c
}

// NewWorker builds a chunk worker consuming tasks from b.
func (rt *Runtime) NewWorker(b *Broker, cfg config.TransportConfig, id string, concurrency int) *distributed.Worker {
	return distributed.NewWorker(distributed.WorkerConfig{
		ID:             id,
		TaskTopic:      cfg.TaskTopic,
		ResultPrefix:   cfg.ResultPrefix,
		Concurrency:    concurrency,
		GraphCacheSize: cfg.GraphCacheSize,
	}, rt.Registry, b.Transport)
}
