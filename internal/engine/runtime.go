// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tomtom215/cubeflow/internal/config"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/fscache"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/processor"
)

// ErrNoProcessor is returned by New for an unknown processor strategy.
var ErrNoProcessor = errors.New("unknown processor strategy")

// Runtime is the evaluation context of one process.
type Runtime struct {
	// Processor is used when a caller does not pass one.
	Processor processor.Processor

	// Progress creates the reporter of each run.
	Progress processor.ProgressFactory

	// Registry rebuilds graphs from descriptions.
	Registry *cube.Registry

	// WorkerID is the identity of this process in cache paths and on the
	// transport.
	WorkerID string

	// History keeps the reports of recent runs.
	History *History

	broker *Broker
}

// New builds the runtime described by cfg. With the distributed strategy
// the transport is opened here and closed by Close.
func New(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	wid, err := fscache.ResolveWorkerID(cfg.Cache.WorkerID)
	if err != nil {
		return nil, cube.ConfigError("engine", err)
	}

	rt := &Runtime{
		Progress: NewProgress(cfg.Processor),
		Registry: NewRegistry(cfg.Cache, wid),
		WorkerID: wid,
		History:  NewHistory(cfg.Server.RecentRuns),
	}

	threads := cfg.Processor.EffectiveThreads()
	switch cfg.Processor.Strategy {
	case processor.StrategySequential:
		rt.Processor = processor.NewSequential(rt.Progress)
	case processor.StrategyPool:
		rt.Processor = processor.NewPool(threads, rt.Progress)
	case processor.StrategyDistributed:
		b, err := OpenTransport(ctx, cfg.Transport)
		if err != nil {
			return nil, err
		}
		rt.broker = b
		rt.Processor = NewCoordinator(b, cfg.Transport, threads, rt.Progress)
	default:
		return nil, cube.ConfigError("engine", fmt.Errorf("%w: %q", ErrNoProcessor, cfg.Processor.Strategy))
	}

	logging.Info().
		Str("component", "engine").
		Str("strategy", rt.Processor.Name()).
		Int("threads", rt.Processor.MaxThreads()).
		Str("worker_id", wid).
		Strs("cube_types", rt.Registry.Types()).
		Msg("Runtime ready")
	return rt, nil
}

// NewProgress returns the progress factory selected by cfg.
func NewProgress(cfg config.ProcessorConfig) processor.ProgressFactory {
	switch cfg.Progress {
	case config.ProgressNone:
		return processor.NewNoProgress
	case config.ProgressMetrics:
		return processor.Multi(processor.NewMetricsProgress, processor.LogProgressFactory(cfg.ProgressInterval))
	default:
		return processor.LogProgressFactory(cfg.ProgressInterval)
	}
}

// NewRegistry returns the operator registry with the disk cache node
// registered. Cache nodes decoded without a path use cfg.Root.
func NewRegistry(cfg config.CacheConfig, workerID string) *cube.Registry {
	r := cube.NewRegistry()
	fscache.Register(r, fscache.Options{
		Root:         cfg.Root,
		MaxSizeBytes: cfg.MaxSizeBytes,
		WorkerID:     workerID,
		Index:        cfg.Index,
	})
	return r
}

// Broker returns the transport opened by New, or nil.
func (rt *Runtime) Broker() *Broker {
	return rt.broker
}

// LoadGraph reads a graph document from path and rebuilds it.
func (rt *Runtime) LoadGraph(path string) (cube.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cube.ConfigError("load graph", err)
	}
	return cube.UnmarshalGraph(rt.Registry, data)
}

// Close releases the transport, if any.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.broker == nil {
		return nil
	}
	return rt.broker.Close(ctx)
}
