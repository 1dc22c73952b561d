// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package distributed

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/metrics"
)

// DefaultGraphCacheSize is the number of decoded graphs a worker keeps.
const DefaultGraphCacheSize = 8

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	ID           string
	TaskTopic    string
	ResultPrefix string

	// Concurrency bounds tasks processed at once. Transports that wait for
	// an ack before delivering the next message process one at a time
	// regardless.
	Concurrency    int
	GraphCacheSize int
}

// Worker consumes tasks and publishes results. It implements
// suture.Service.
type Worker struct {
	cfg        WorkerConfig
	registry   *cube.Registry
	subscriber message.Subscriber
	publisher  message.Publisher
	logger     zerolog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu     sync.Mutex
	graphs map[uint64]cube.Node
}

// NewWorker returns a worker reading tasks from t and rebuilding graphs
// with registry.
func NewWorker(cfg WorkerConfig, registry *cube.Registry, t *Transport) *Worker {
	if cfg.ID == "" {
		cfg.ID = watermill.NewShortUUID()
	}
	if cfg.TaskTopic == "" {
		cfg.TaskTopic = DefaultTaskTopic
	}
	if cfg.ResultPrefix == "" {
		cfg.ResultPrefix = DefaultResultPrefix
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.GraphCacheSize < 1 {
		cfg.GraphCacheSize = DefaultGraphCacheSize
	}
	return &Worker{
		cfg:        cfg,
		registry:   registry,
		subscriber: t.TaskSubscriber,
		publisher:  t.ResultPublisher,
		logger: logging.With().
			Str("component", "distributed").
			Str("worker_id", cfg.ID).
			Logger(),
		ready:  make(chan struct{}),
		graphs: make(map[uint64]cube.Node),
	}
}

// Ready is closed once the first subscription is established.
func (w *Worker) Ready() <-chan struct{} { return w.ready }

// ID returns the worker id.
func (w *Worker) ID() string { return w.cfg.ID }

// String implements fmt.Stringer for suture logs.
func (w *Worker) String() string { return "chunk-worker-" + w.cfg.ID }

// Serve implements suture.Service. It returns when ctx ends or the
// subscription closes.
func (w *Worker) Serve(ctx context.Context) error {
	msgs, err := w.subscriber.Subscribe(ctx, w.cfg.TaskTopic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", w.cfg.TaskTopic, err)
	}
	w.readyOnce.Do(func() { close(w.ready) })
	w.logger.Info().Str("topic", w.cfg.TaskTopic).Int("concurrency", w.cfg.Concurrency).Msg("Worker started")
	defer w.closeGraphs()

	var wg sync.WaitGroup
	defer wg.Wait()
	sem := make(chan struct{}, w.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				msg.Nack()
				return ctx.Err()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				w.handle(ctx, msg)
			}()
		}
	}
}

// handle processes one task message. The message is acked once a result is
// published, and nacked when publishing fails so it can be redelivered.
func (w *Worker) handle(ctx context.Context, msg *message.Message) {
	start := time.Now()
	task, err := decodeTask(msg.Payload)
	if err != nil {
		w.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable task")
		msg.Ack()
		return
	}

	res := w.Execute(ctx, task)
	if err := w.publish(res); err != nil {
		w.logger.Error().Err(err).Uint32("chunk_id", uint32(task.ChunkID)).Str("run_id", task.RunID).Msg("Result publish failed")
		msg.Nack()
		return
	}
	msg.Ack()
	metrics.RecordTaskConsumed(time.Since(start))
}

// Execute computes the chunk requested by task. Errors are carried in the
// result.
func (w *Worker) Execute(ctx context.Context, task Task) Result {
	res := Result{RunID: task.RunID, ChunkID: task.ChunkID, Worker: w.cfg.ID}
	ctx = logging.ContextWithRunID(ctx, task.RunID)

	node, err := w.graph(task.Graph)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	buf, err := node.ReadChunk(ctx, task.ChunkID)
	if err != nil {
		logger := logging.CtxWith(ctx).
			Str("component", "distributed").
			Str("worker_id", w.cfg.ID).
			Logger()
		logger.Error().Err(err).Uint32("chunk_id", uint32(task.ChunkID)).Msg("Chunk failed")
		res.Error = err.Error()
		return res
	}
	payload, err := chunk.Marshal(buf)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Payload = payload
	return res
}

func (w *Worker) publish(res Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetaRunID, res.RunID)
	msg.Metadata.Set(MetaChunkID, strconv.FormatUint(uint64(res.ChunkID), 10))
	msg.Metadata.Set(MetaWorker, w.cfg.ID)
	return w.publisher.Publish(ResultTopic(w.cfg.ResultPrefix, res.RunID), msg)
}

// graph returns the decoded graph document, decoding it on first use.
func (w *Worker) graph(doc []byte) (cube.Node, error) {
	key := xxhash.Sum64(doc)

	w.mu.Lock()
	defer w.mu.Unlock()
	if n, ok := w.graphs[key]; ok {
		return n, nil
	}
	n, err := cube.UnmarshalGraph(w.registry, doc)
	if err != nil {
		return nil, err
	}
	if len(w.graphs) >= w.cfg.GraphCacheSize {
		w.closeGraphsLocked()
	}
	w.graphs[key] = n
	w.logger.Debug().Str("cube_type", n.Type()).Uint64("graph_hash", key).Msg("Graph decoded")
	return n, nil
}

// CachedGraphs returns the number of decoded graphs held.
func (w *Worker) CachedGraphs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.graphs)
}

func (w *Worker) closeGraphs() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeGraphsLocked()
}

// closeGraphsLocked drops all graphs, closing nodes that hold resources.
func (w *Worker) closeGraphsLocked() {
	for key, root := range w.graphs {
		nodes := append([]cube.Node{root}, cube.Lineage(root)...)
		for _, n := range nodes {
			if c, ok := n.(io.Closer); ok {
				if err := c.Close(); err != nil {
					w.logger.Warn().Err(err).Str("cube_type", n.Type()).Msg("Closing graph node failed")
				}
			}
		}
		delete(w.graphs, key)
	}
}
