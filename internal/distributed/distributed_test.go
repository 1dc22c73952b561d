// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package distributed

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/cube/cubetest"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/processor"
)

func newSource(t *testing.T, opts ...cubetest.Option) *cubetest.Source {
	t.Helper()
	return cubetest.MustSource(t, cubetest.View(t, 4, 6, 6), chunk.Size{2, 2, 2}, 2, opts...)
}

func newRegistry() *cube.Registry {
	reg := cube.NewRegistry()
	cubetest.Register(reg)
	return reg
}

// startWorker runs a worker until the test ends and waits for its
// subscription.
func startWorker(t *testing.T, tr *Transport, reg *cube.Registry, id string) *Worker {
	t.Helper()
	w := NewWorker(WorkerConfig{ID: id}, reg, tr)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not subscribe")
	}
	return w
}

func newTransport(t *testing.T) *Transport {
	t.Helper()
	tr := NewChannelTransport(nil)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

// collect applies p to node and returns every delivered buffer.
func collect(t *testing.T, p processor.Processor, node cube.Node) (map[chunk.ID]*chunk.Buffer, map[chunk.ID]int, processor.Report, error) {
	t.Helper()
	bufs := make(map[chunk.ID]*chunk.Buffer)
	calls := make(map[chunk.ID]int)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	rep, err := p.Apply(ctx, node, func(id chunk.ID, buf *chunk.Buffer, mu *sync.Mutex) error {
		mu.Lock()
		defer mu.Unlock()
		bufs[id] = buf
		calls[id]++
		return nil
	})
	return bufs, calls, rep, err
}

func TestCoordinatorProcessesEveryChunk(t *testing.T) {
	tr := newTransport(t)
	startWorker(t, tr, newRegistry(), "w1")

	src := newSource(t)
	coord := NewCoordinator(tr, 4, nil)
	require.Equal(t, processor.StrategyDistributed, coord.Name())
	require.Equal(t, 4, coord.MaxThreads())

	bufs, calls, rep, err := collect(t, coord, src)
	require.NoError(t, err)
	require.True(t, rep.OK(), "failures: %v", rep.Err())
	require.EqualValues(t, 18, rep.Succeeded)
	require.Len(t, bufs, 18)

	for id := chunk.ID(0); id < 18; id++ {
		require.Equal(t, 1, calls[id], "chunk %d", id)
		want, err := src.Expected(id)
		require.NoError(t, err)
		require.True(t, want.Equal(bufs[id]), "chunk %d content", id)
	}
	require.Zero(t, src.TotalCalls(), "chunks are computed by the worker")
}

func TestCoordinatorIgnoresDuplicateResults(t *testing.T) {
	tr := newTransport(t)
	reg := newRegistry()
	// gochannel delivers every task to both workers.
	startWorker(t, tr, reg, "w1")
	startWorker(t, tr, reg, "w2")

	_, calls, rep, err := collect(t, NewCoordinator(tr, 2, nil), newSource(t))
	require.NoError(t, err)
	require.True(t, rep.OK())
	require.Len(t, calls, 18)
	for id, n := range calls {
		require.Equal(t, 1, n, "chunk %d delivered %d times", id, n)
	}
}

func TestCoordinatorIsolatesRemoteFailures(t *testing.T) {
	tr := newTransport(t)
	startWorker(t, tr, newRegistry(), "w1")

	bufs, _, rep, err := collect(t, NewCoordinator(tr, 2, nil), newSource(t, cubetest.WithFailures(2, 9)))
	require.NoError(t, err)

	failed := rep.FailedIDs()
	slices.Sort(failed)
	require.Equal(t, []chunk.ID{2, 9}, failed)
	require.EqualValues(t, 16, rep.Succeeded)
	require.Len(t, bufs, 16)
	for _, f := range rep.Failed {
		require.ErrorIs(t, f.Err, ErrRemote)
		require.True(t, cube.IsKind(f.Err, cube.KindChunk))
	}
}

func TestCoordinatorUnknownCubeType(t *testing.T) {
	tr := newTransport(t)
	startWorker(t, tr, cube.NewRegistry(), "w1")

	_, _, rep, err := collect(t, NewCoordinator(tr, 1, nil), newSource(t))
	require.NoError(t, err)
	require.Len(t, rep.Failed, 18)
	require.ErrorContains(t, rep.Failed[0].Err, cubetest.TypeSource)
}

func TestCoordinatorTimeoutWithoutWorkers(t *testing.T) {
	tr := newTransport(t)
	coord := NewCoordinator(tr, 1, nil)
	coord.Timeout = 100 * time.Millisecond

	_, _, rep, err := collect(t, coord, newSource(t))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, rep.Failed, 18)
	require.ErrorIs(t, rep.Failed[0].Err, ErrNotAccounted)
	require.Zero(t, rep.Succeeded)
}

type failingPublisher struct {
	mu    sync.Mutex
	calls int
}

func (p *failingPublisher) Publish(string, ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return errors.New("broker unavailable")
}

func (p *failingPublisher) Close() error { return nil }

func TestCoordinatorBreakerOpens(t *testing.T) {
	tr := newTransport(t)
	pub := &failingPublisher{}
	cfg := DefaultBreakerConfig("test-publisher")
	cfg.FailureThreshold = 3
	cfg.Timeout = time.Minute

	coord := NewCoordinator(tr, 1, nil)
	coord.Publisher = pub
	coord.Breaker = NewBreaker(cfg)

	_, _, rep, err := collect(t, coord, newSource(t))
	require.NoError(t, err, "publish failures are chunk failures")
	require.Len(t, rep.Failed, 18)
	require.Equal(t, 3, pub.calls, "open breaker stops calling the broker")
	require.Equal(t, gobreaker.StateOpen, coord.Breaker.State())
	require.ErrorIs(t, rep.Failed[17].Err, gobreaker.ErrOpenState)
}

func TestCoordinatorCallbackErrors(t *testing.T) {
	tr := newTransport(t)
	startWorker(t, tr, newRegistry(), "w1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	rep, err := NewCoordinator(tr, 3, nil).Apply(ctx, newSource(t), func(id chunk.ID, _ *chunk.Buffer, _ *sync.Mutex) error {
		switch id {
		case 4:
			return errors.New("disk full")
		case 5:
			panic("boom")
		}
		return nil
	})
	require.NoError(t, err)
	failed := rep.FailedIDs()
	slices.Sort(failed)
	require.Equal(t, []chunk.ID{4, 5}, failed)
	require.EqualValues(t, 16, rep.Succeeded)
}

func TestWorkerExecuteCachesGraphs(t *testing.T) {
	tr := newTransport(t)
	w := NewWorker(WorkerConfig{ID: "w1"}, newRegistry(), tr)
	src := newSource(t)
	graph, err := cube.MarshalGraph(src)
	require.NoError(t, err)

	for _, id := range []chunk.ID{0, 7, 7} {
		res := w.Execute(context.Background(), Task{RunID: "r1", ChunkID: id, Graph: graph})
		require.NoError(t, res.Err())
		require.Equal(t, "w1", res.Worker)
		buf, err := res.Buffer()
		require.NoError(t, err)
		want, err := src.Expected(id)
		require.NoError(t, err)
		require.True(t, want.Equal(buf))
	}
	require.Equal(t, 1, w.CachedGraphs())

	res := w.Execute(context.Background(), Task{RunID: "r1", ChunkID: 0, Graph: []byte(`{"version":"0.3.2","cube":{"cube_type":"nope"}}`)})
	require.ErrorIs(t, res.Err(), ErrRemote)
	require.Equal(t, 1, w.CachedGraphs())

	res = w.Execute(context.Background(), Task{RunID: "r1", ChunkID: 99, Graph: graph})
	require.Error(t, res.Err(), "out of range chunk")
}

func TestWorkerLogsChunkFailureWithRunID(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })

	w := NewWorker(WorkerConfig{ID: "w1"}, newRegistry(), newTransport(t))
	graph, err := cube.MarshalGraph(newSource(t))
	require.NoError(t, err)

	res := w.Execute(context.Background(), Task{RunID: "run-log", ChunkID: 99, Graph: graph})
	require.Error(t, res.Err())

	out := buf.String()
	require.Contains(t, out, `"run_id":"run-log"`)
	require.Contains(t, out, `"worker_id":"w1"`)
	require.Contains(t, out, `"chunk_id":99`)
}

func TestWorkerGraphCacheBounded(t *testing.T) {
	tr := newTransport(t)
	w := NewWorker(WorkerConfig{ID: "w1", GraphCacheSize: 2}, newRegistry(), tr)

	for nt := uint32(1); nt <= 3; nt++ {
		src := cubetest.MustSource(t, cubetest.View(t, nt, 2, 2), chunk.Size{1, 2, 2}, 1)
		graph, err := cube.MarshalGraph(src)
		require.NoError(t, err)
		res := w.Execute(context.Background(), Task{RunID: "r", ChunkID: 0, Graph: graph})
		require.NoError(t, res.Err())
	}
	require.LessOrEqual(t, w.CachedGraphs(), 2)
}

func TestMessageDecoding(t *testing.T) {
	_, err := decodeTask([]byte(`{"run_id":""}`))
	require.ErrorIs(t, err, ErrInvalidMessage)
	_, err = decodeTask([]byte(`not json`))
	require.ErrorIs(t, err, ErrInvalidMessage)
	_, err = decodeResult([]byte(`[]`))
	require.ErrorIs(t, err, ErrInvalidMessage)

	require.Equal(t, "cubeflow.results.abc", ResultTopic(DefaultResultPrefix, "abc"))
	require.NoError(t, (&Result{}).Err())
}
