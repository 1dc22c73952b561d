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

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/cubeflow/internal/logging"
)

// Transport bundles the publishers and subscribers of both directions.
type Transport struct {
	TaskPublisher    message.Publisher
	TaskSubscriber   message.Subscriber
	ResultPublisher  message.Publisher
	ResultSubscriber message.Subscriber

	closers []func() error
}

// Close closes every publisher and subscriber once.
func (t *Transport) Close() error {
	var errs []error
	for _, c := range t.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	t.closers = nil
	return errors.Join(errs...)
}

// NewChannelTransport returns an in-process transport. All four roles share
// one gochannel pub/sub.
func NewChannelTransport(logger watermill.LoggerAdapter) *Transport {
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1024}, logger)
	return &Transport{
		TaskPublisher:    ch,
		TaskSubscriber:   ch,
		ResultPublisher:  ch,
		ResultSubscriber: ch,
		closers:          []func() error{ch.Close},
	}
}

// NATSConfig configures NewNATSTransport.
type NATSConfig struct {
	URL              string
	TaskTopic        string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration

	// JetStream stores tasks in StreamName until a worker takes them.
	JetStream   bool
	StreamName  string
	DurableName string
	MaxAge      time.Duration
}

// DefaultNATSConfig returns defaults for a server at url.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:              url,
		TaskTopic:        DefaultTaskTopic,
		QueueGroup:       "cubeflow-workers",
		SubscribersCount: 1,
		AckWaitTimeout:   5 * time.Minute,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StreamName:       "CUBEFLOW_TASKS",
		DurableName:      "cubeflow-workers",
		MaxAge:           24 * time.Hour,
	}
}

func (c NATSConfig) natsOptions(logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(c.MaxReconnects),
		natsgo.ReconnectWait(c.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}
}

// NewNATSTransport connects to NATS. Tasks are load balanced over the queue
// group; results are plain core NATS subjects.
func NewNATSTransport(ctx context.Context, cfg NATSConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}
	if cfg.TaskTopic == "" {
		cfg.TaskTopic = DefaultTaskTopic
	}
	if cfg.SubscribersCount < 1 {
		cfg.SubscribersCount = 1
	}
	if cfg.JetStream {
		if err := ensureTaskStream(ctx, cfg); err != nil {
			return nil, err
		}
	}

	t := &Transport{}
	fail := func(err error) (*Transport, error) {
		_ = t.Close()
		return nil, err
	}

	taskJS := wmNats.JetStreamConfig{Disabled: true}
	if cfg.JetStream {
		taskJS = wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // Stream is created by ensureTaskStream
			AckAsync:      false,
			DurablePrefix: cfg.DurableName,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(cfg.StreamName),
				natsgo.AckWait(cfg.AckWaitTimeout),
				natsgo.DeliverAll(),
			},
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		}
	}
	coreNATS := wmNats.JetStreamConfig{Disabled: true}

	taskPub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: cfg.natsOptions(logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   taskJS,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("create task publisher: %w", err))
	}
	t.TaskPublisher = taskPub
	t.closers = append(t.closers, taskPub.Close)

	taskSub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      cfg.natsOptions(logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        taskJS,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("create task subscriber: %w", err))
	}
	t.TaskSubscriber = taskSub
	t.closers = append(t.closers, taskSub.Close)

	resultPub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: cfg.natsOptions(logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   coreNATS,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("create result publisher: %w", err))
	}
	t.ResultPublisher = resultPub
	t.closers = append(t.closers, resultPub.Close)

	resultSub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      cfg.natsOptions(logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        coreNATS,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("create result subscriber: %w", err))
	}
	t.ResultSubscriber = resultSub
	t.closers = append(t.closers, resultSub.Close)

	logging.Info().
		Str("component", "distributed").
		Str("url", cfg.URL).
		Str("task_topic", cfg.TaskTopic).
		Bool("jetstream", cfg.JetStream).
		Msg("NATS transport ready")
	return t, nil
}

// ensureTaskStream creates or updates the JetStream stream holding tasks.
func ensureTaskStream(ctx context.Context, cfg NATSConfig) error {
	nc, err := natsgo.Connect(cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{cfg.TaskTopic},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    cfg.MaxAge,
		Storage:   jetstream.FileStorage,
		Discard:   jetstream.DiscardOld,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}
	return nil
}
