// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package distributed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/metrics"
	"github.com/tomtom215/cubeflow/internal/processor"
)

// ErrNotAccounted is recorded for chunks without a result when a run ends.
var ErrNotAccounted = errors.New("no result received")

// Coordinator distributes chunks to workers. It implements
// processor.Processor.
type Coordinator struct {
	Publisher    message.Publisher
	Subscriber   message.Subscriber
	TaskTopic    string
	ResultPrefix string

	// Threads bounds concurrent callbacks on the coordinator.
	Threads  int
	Progress processor.ProgressFactory
	Breaker  *Breaker

	// Timeout bounds a whole Apply call when positive.
	Timeout time.Duration
}

// NewCoordinator returns a coordinator using t with default topics.
func NewCoordinator(t *Transport, threads int, progress processor.ProgressFactory) *Coordinator {
	return &Coordinator{
		Publisher:    t.TaskPublisher,
		Subscriber:   t.ResultSubscriber,
		TaskTopic:    DefaultTaskTopic,
		ResultPrefix: DefaultResultPrefix,
		Threads:      threads,
		Progress:     progress,
		Breaker:      NewBreaker(DefaultBreakerConfig("task-publisher")),
	}
}

// Name implements processor.Processor.
func (c *Coordinator) Name() string { return processor.StrategyDistributed }

// MaxThreads implements processor.Processor.
func (c *Coordinator) MaxThreads() int {
	if c.Threads < 1 {
		return 1
	}
	return c.Threads
}

// Apply implements processor.Processor. Chunk failures are listed in the
// Report; the error is non-nil only if the graph cannot be sent or ctx ends
// before every chunk is accounted for.
func (c *Coordinator) Apply(ctx context.Context, node cube.Node, fn processor.ChunkFunc) (processor.Report, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	run, ctx := processor.StartRun(ctx, processor.StrategyDistributed, node, fn, c.Progress)
	log := logging.Ctx(ctx)

	graph, err := cube.MarshalGraph(node)
	if err != nil {
		return run.Finish(), cube.ConfigError("describe graph", err)
	}

	subCtx, cancelSub := context.WithCancel(ctx)
	defer cancelSub()
	topic := ResultTopic(c.resultPrefix(), run.ID())
	results, err := c.Subscriber.Subscribe(subCtx, topic)
	if err != nil {
		return run.Finish(), fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	total := run.Total()
	pending := make(map[chunk.ID]time.Time, total)
	for id := chunk.ID(0); uint32(id) < total; id++ {
		published := time.Now()
		if err := c.publish(run.ID(), id, graph); err != nil {
			run.Complete(id, time.Since(published), cube.ChunkError("publish", id, err))
			continue
		}
		pending[id] = published
	}
	log.Debug().Int("published", len(pending)).Str("result_topic", topic).Msg("Tasks published")

	var g errgroup.Group
	g.SetLimit(c.MaxThreads())

	var runErr error
	for len(pending) > 0 && runErr == nil {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		case msg, ok := <-results:
			if !ok {
				runErr = fmt.Errorf("result subscription closed: %w", ErrNotAccounted)
				break
			}
			msg.Ack()
			res, err := decodeResult(msg.Payload)
			if err != nil {
				log.Warn().Err(err).Msg("Dropping undecodable result")
				continue
			}
			published, ok := pending[res.ChunkID]
			if res.RunID != run.ID() || !ok {
				metrics.RecordResult("duplicate")
				log.Debug().Uint32("chunk_id", uint32(res.ChunkID)).Str("worker", res.Worker).Msg("Ignoring duplicate result")
				continue
			}
			delete(pending, res.ChunkID)
			g.Go(func() error {
				c.complete(run, res, time.Since(published))
				return nil
			})
		}
	}
	_ = g.Wait()

	for id, published := range pending {
		run.Complete(id, time.Since(published), cube.ChunkError("collect", id, errors.Join(ErrNotAccounted, runErr)))
	}
	return run.Finish(), runErr
}

func (c *Coordinator) resultPrefix() string {
	if c.ResultPrefix == "" {
		return DefaultResultPrefix
	}
	return c.ResultPrefix
}

func (c *Coordinator) taskTopic() string {
	if c.TaskTopic == "" {
		return DefaultTaskTopic
	}
	return c.TaskTopic
}

func (c *Coordinator) publish(runID string, id chunk.ID, graph []byte) error {
	payload, err := json.Marshal(Task{RunID: runID, ChunkID: id, Graph: graph})
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetaRunID, runID)
	msg.Metadata.Set(MetaChunkID, strconv.FormatUint(uint64(id), 10))

	err = guard(c.Breaker, func() error {
		return c.Publisher.Publish(c.taskTopic(), msg)
	})
	if err != nil {
		return err
	}
	metrics.RecordTaskPublished()
	return nil
}

// complete hands one result to the callback and records it.
func (c *Coordinator) complete(run *processor.Run, res Result, elapsed time.Duration) {
	id := res.ChunkID
	if err := res.Err(); err != nil {
		metrics.RecordResult("error")
		run.Complete(id, elapsed, cube.ChunkError("remote", id, err))
		return
	}
	buf, err := res.Buffer()
	if err != nil {
		metrics.RecordResult("corrupt")
		run.Complete(id, elapsed, cube.ChunkError("decode", id, err))
		return
	}
	metrics.RecordResult("ok")
	run.Complete(id, elapsed, deliver(run, id, buf))
}

func deliver(run *processor.Run, id chunk.ID, buf *chunk.Buffer) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = cube.ChunkError("consume", id, fmt.Errorf("panic: %v", p))
		}
	}()
	return run.Deliver(id, buf)
}
