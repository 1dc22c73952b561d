// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/cubeflow/internal/api"
	"github.com/tomtom215/cubeflow/internal/config"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/distributed"
	"github.com/tomtom215/cubeflow/internal/engine"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/metrics"
	"github.com/tomtom215/cubeflow/internal/supervisor"
	"github.com/tomtom215/cubeflow/internal/supervisor/services"
	"github.com/tomtom215/cubeflow/internal/version"
)

// errChunksFailed marks a run that finished with failed chunks.
var errChunksFailed = errors.New("chunks failed")

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Fields: map[string]string{"mode": cfg.Job.Mode},
	})
	metrics.SetAppInfo(version.String(), runtime.Version(), cfg.Job.Mode)

	logging.Info().
		Str("version", version.String()).
		Str("git", version.GitDesc).
		Str("strategy", cfg.Processor.Strategy).
		Msg("Starting cubeflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	switch cfg.Job.Mode {
	case config.ModeWorker:
		err = runWorker(ctx, cfg)
	default:
		err = runJob(ctx, cfg)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("cubeflow failed")
		cancel()
		os.Exit(1)
	}
	logging.Info().Msg("cubeflow stopped")
}

// runJob evaluates the configured graph once.
func runJob(ctx context.Context, cfg *config.Config) error {
	rt, err := engine.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRuntime(rt, cfg)

	node, err := rt.LoadGraph(cfg.Job.GraphPath)
	if err != nil {
		return err
	}
	defer closeGraph(node)

	logging.Info().
		Str("graph", cfg.Job.GraphPath).
		Str("cube_type", node.Type()).
		Uint32("chunks", node.CountChunks()).
		Str("output", cfg.Job.OutputPath).
		Str("format", cfg.Job.Format).
		Msg("Graph loaded")

	if cfg.Server.Enabled {
		h := api.NewHandler(api.Info{Mode: cfg.Job.Mode, WorkerID: rt.WorkerID, Strategy: rt.Processor.Name()}, rt.History)
		h.SetGraph(node)
		if b := rt.Broker(); b != nil && b.Server != nil {
			h.AddCheck("embedded_nats", serverCheck(b.Server))
		}

		tree := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
		tree.AddAPIService(services.NewHTTPServerService(api.NewServer(cfg.Server, h), cfg.Server.ShutdownTimeout))

		treeCtx, stopTree := context.WithCancel(ctx)
		errCh := tree.ServeBackground(treeCtx)
		defer func() {
			stopTree()
			waitTree(tree, errCh)
		}()
	}

	report, err := rt.Export(ctx, node, cfg.Job)
	if err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d of %d, first: %w", errChunksFailed, len(report.Failed), report.Total, report.Failed[0].Err)
	}
	return nil
}

// runWorker serves chunk tasks until ctx is canceled.
func runWorker(ctx context.Context, cfg *config.Config) error {
	rt, err := engine.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRuntime(rt, cfg)

	// A distributed runtime already holds a connection.
	b := rt.Broker()
	if b == nil {
		if b, err = engine.OpenTransport(ctx, cfg.Transport); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := b.Close(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Error closing transport")
			}
		}()
	}

	concurrency := cfg.Transport.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	worker := rt.NewWorker(b, cfg.Transport, rt.WorkerID, concurrency)

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddTransportService(worker)
	logging.Info().Str("service", worker.String()).Int("concurrency", concurrency).Msg("Chunk worker added to supervisor tree")

	if cfg.Server.Enabled {
		h := api.NewHandler(api.Info{Mode: cfg.Job.Mode, WorkerID: rt.WorkerID}, nil)
		h.AddCheck("subscription", workerCheck(worker))
		if b.Server != nil {
			h.AddCheck("embedded_nats", serverCheck(b.Server))
		}
		tree.AddAPIService(services.NewHTTPServerService(api.NewServer(cfg.Server, h), cfg.Server.ShutdownTimeout))
	}

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	waitTree(tree, errCh)
	return nil
}

// waitTree drains the supervisor error channel and reports services that
// did not stop within the shutdown timeout.
func waitTree(tree *supervisor.SupervisorTree, errCh <-chan error) {
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}
	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
}

func workerCheck(w *distributed.Worker) api.HealthCheck {
	return func(context.Context) error {
		select {
		case <-w.Ready():
			return nil
		default:
			return errors.New("not subscribed to task topic")
		}
	}
}

func serverCheck(s *distributed.EmbeddedServer) api.HealthCheck {
	return func(context.Context) error {
		if !s.IsRunning() {
			return errors.New("embedded NATS server stopped")
		}
		return nil
	}
}

func closeRuntime(rt *engine.Runtime, cfg *config.Config) {
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		logging.Error().Err(err).Msg("Error closing runtime")
	}
}

// closeGraph releases nodes holding resources, such as cache indexes.
func closeGraph(root cube.Node) {
	for _, n := range append([]cube.Node{root}, cube.Lineage(root)...) {
		if c, ok := n.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logging.Warn().Err(err).Str("cube_type", n.Type()).Msg("Error closing node")
			}
		}
	}
}
