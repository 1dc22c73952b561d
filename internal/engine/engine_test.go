// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package engine

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/config"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/cube/cubetest"
	"github.com/tomtom215/cubeflow/internal/export"
	"github.com/tomtom215/cubeflow/internal/fscache"
	"github.com/tomtom215/cubeflow/internal/processor"
)

func testConfig(t *testing.T, strategy string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Processor.Strategy = strategy
	cfg.Processor.Threads = 3
	cfg.Processor.Progress = config.ProgressNone
	cfg.Cache.Root = t.TempDir()
	cfg.Cache.WorkerID = "engine-test"
	return cfg
}

func newRuntime(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	rt, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	cubetest.Register(rt.Registry)
	return rt
}

func TestNew_Strategies(t *testing.T) {
	tests := []struct {
		strategy string
		threads  int
	}{
		{processor.StrategySequential, 1},
		{processor.StrategyPool, 3},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			rt := newRuntime(t, testConfig(t, tt.strategy))
			if rt.Processor.Name() != tt.strategy {
				t.Errorf("Processor.Name() = %q, want %q", rt.Processor.Name(), tt.strategy)
			}
			if rt.Processor.MaxThreads() != tt.threads {
				t.Errorf("MaxThreads() = %d, want %d", rt.Processor.MaxThreads(), tt.threads)
			}
			if rt.WorkerID != "engine-test" {
				t.Errorf("WorkerID = %q", rt.WorkerID)
			}
			if rt.Broker() != nil {
				t.Error("local strategy opened a transport")
			}
		})
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := New(context.Background(), testConfig(t, "mapreduce"))
	if !cube.IsKind(err, cube.KindConfig) {
		t.Fatalf("New() error = %v, want config error", err)
	}
}

func TestNewProgress(t *testing.T) {
	none := NewProgress(config.ProcessorConfig{Progress: config.ProgressNone})("pool")
	if _, ok := none.(processor.NoProgress); !ok {
		t.Errorf("none: got %T", none)
	}

	logged := NewProgress(config.ProcessorConfig{Progress: config.ProgressLog, ProgressInterval: time.Second})("pool")
	if _, ok := logged.(*processor.LogProgress); !ok {
		t.Errorf("log: got %T", logged)
	}

	// metrics fans out to the gauge and the log
	p := NewProgress(config.ProcessorConfig{Progress: config.ProgressMetrics})("pool")
	if _, ok := p.(*processor.LogProgress); ok {
		t.Errorf("metrics: got %T", p)
	}
	p.Set(0.5)
	p.Finalize()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(config.CacheConfig{Root: t.TempDir(), Index: fscache.IndexMemory}, "w1")
	types := r.Types()
	for _, want := range []string{cube.TypeDummy, fscache.TypeFSCache} {
		if !slices.Contains(types, want) {
			t.Errorf("Types() = %v, missing %q", types, want)
		}
	}
}

func TestLoadGraph(t *testing.T) {
	rt := newRuntime(t, testConfig(t, processor.StrategySequential))

	src := cubetest.MustSource(t, cubetest.View(t, 2, 4, 4), chunk.Size{1, 2, 2}, 1)
	cached, err := fscache.New(src, fscache.Options{Root: t.TempDir(), WorkerID: "w1"})
	if err != nil {
		t.Fatalf("fscache.New() error = %v", err)
	}
	t.Cleanup(func() { _ = cached.Close() })

	data, err := cube.MarshalGraph(cached)
	if err != nil {
		t.Fatalf("MarshalGraph() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	node, err := rt.LoadGraph(path)
	if err != nil {
		t.Fatalf("LoadGraph() error = %v", err)
	}
	if node.Type() != fscache.TypeFSCache {
		t.Errorf("root type = %q", node.Type())
	}
	if node.CountChunks() != cached.CountChunks() {
		t.Errorf("CountChunks() = %d, want %d", node.CountChunks(), cached.CountChunks())
	}
	c, ok := node.(*fscache.Node)
	if !ok {
		t.Fatalf("root is %T", node)
	}
	defer c.Close()
	if c.WorkerID() != rt.WorkerID {
		t.Errorf("decoded cache worker id = %q, want %q", c.WorkerID(), rt.WorkerID)
	}

	if _, err := rt.LoadGraph(filepath.Join(t.TempDir(), "missing.json")); !cube.IsKind(err, cube.KindConfig) {
		t.Errorf("LoadGraph(missing) error = %v, want config error", err)
	}
}

func TestExportDense_UsesRuntimeProcessor(t *testing.T) {
	rt := newRuntime(t, testConfig(t, processor.StrategyPool))
	src := cubetest.MustSource(t, cubetest.View(t, 3, 4, 5), chunk.Size{2, 2, 3}, 2)
	path := filepath.Join(t.TempDir(), "cube.dense")

	rep, err := rt.ExportDense(context.Background(), src, path, nil)
	if err != nil {
		t.Fatalf("ExportDense() error = %v", err)
	}
	if rep.Strategy != processor.StrategyPool || !rep.OK() {
		t.Fatalf("report = %+v", rep)
	}

	d, err := export.ReadDense(path)
	if err != nil {
		t.Fatalf("ReadDense() error = %v", err)
	}
	for i, v := range d.Data {
		if math.IsNaN(v) {
			t.Fatalf("cell %d not written", i)
		}
	}

	runs := rt.History.Recent(0)
	if len(runs) != 1 || runs[0].RunID != rep.RunID || runs[0].Format != export.FormatDense {
		t.Fatalf("history = %+v", runs)
	}
	if runs[0].CubeType != cubetest.TypeSource || runs[0].Output != path {
		t.Errorf("record = %+v", runs[0])
	}
}

func TestExport_RecordsFailures(t *testing.T) {
	rt := newRuntime(t, testConfig(t, processor.StrategyPool))
	src := cubetest.MustSource(t, cubetest.View(t, 2, 4, 4), chunk.Size{1, 2, 2}, 1, cubetest.WithFailures(3))
	job := config.JobConfig{Format: export.FormatChunkDir, OutputPath: t.TempDir(), Compress: true}

	rep, err := rt.Export(context.Background(), src, job)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if got := rep.FailedIDs(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("FailedIDs() = %v, want [3]", got)
	}

	rec, ok := rt.History.Get(rep.RunID)
	if !ok {
		t.Fatalf("run %s not recorded", rep.RunID)
	}
	if len(rec.Failed) != 1 || rec.Failed[0].ChunkID != 3 || rec.Failed[0].Error == "" {
		t.Errorf("Failed = %+v", rec.Failed)
	}
	if rec.Succeeded != rec.Total-1 {
		t.Errorf("Succeeded = %d of %d", rec.Succeeded, rec.Total)
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	rt := newRuntime(t, testConfig(t, processor.StrategySequential))
	src := cubetest.MustSource(t, cubetest.View(t, 1, 2, 2), chunk.Size{1, 2, 2}, 1)

	_, err := rt.Export(context.Background(), src, config.JobConfig{Format: "netcdf", OutputPath: t.TempDir()})
	if !cube.IsKind(err, cube.KindExport) {
		t.Fatalf("Export() error = %v, want export error", err)
	}
}

func TestDistributedRuntime(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	cfg := testConfig(t, processor.StrategyDistributed)
	cfg.Transport.Embedded = true
	cfg.Transport.EmbeddedPort = -1
	cfg.Transport.Timeout = 30 * time.Second
	rt := newRuntime(t, cfg)

	if rt.Broker() == nil || rt.Broker().Server == nil {
		t.Fatal("embedded broker not started")
	}
	if rt.Processor.Name() != processor.StrategyDistributed {
		t.Fatalf("Processor.Name() = %q", rt.Processor.Name())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := rt.NewWorker(rt.Broker(), cfg.Transport, rt.WorkerID, 2)
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()
	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("worker stopped: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("worker not ready")
	}

	src := cubetest.MustSource(t, cubetest.View(t, 2, 4, 4), chunk.Size{1, 2, 2}, 2)
	path := filepath.Join(t.TempDir(), "cube.dense")
	rep, err := rt.ExportDense(ctx, src, path, nil)
	if err != nil {
		t.Fatalf("ExportDense() error = %v", err)
	}
	if !rep.OK() || rep.Total != 8 {
		t.Fatalf("report = %+v, err = %v", rep, rep.Err())
	}

	d, err := export.ReadDense(path)
	if err != nil {
		t.Fatalf("ReadDense() error = %v", err)
	}
	// Band 1 of every cell is its chunk id plus 1000.
	for _, v := range d.Data[len(d.Data)/2:] {
		if v < 1000 || v >= 1008 {
			t.Fatalf("band 1 value %v out of range", v)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Error("worker did not stop")
	}
}
