// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package config

import (
	"runtime"
	"time"
)

// Process modes.
const (
	ModeRun         = "run"
	ModeCoordinator = "coordinator"
	ModeWorker      = "worker"
)

// Progress reporters.
const (
	ProgressNone    = "none"
	ProgressLog     = "log"
	ProgressMetrics = "metrics"
)

// Config holds all configuration of a cubeflow process.
type Config struct {
	Processor ProcessorConfig `koanf:"processor"`
	Cache     CacheConfig     `koanf:"cache"`
	Transport TransportConfig `koanf:"transport"`
	Job       JobConfig       `koanf:"job"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ProcessorConfig selects the default chunk processor.
//
// Environment Variables:
//   - PROCESSOR_STRATEGY: sequential, pool, distributed (default: pool)
//   - PROCESSOR_THREADS: worker goroutines, 0 = number of CPUs (default: 0)
//   - PROCESSOR_PROGRESS: none, log, metrics (default: log)
//   - PROCESSOR_PROGRESS_INTERVAL: minimum time between progress log lines (default: 2s)
type ProcessorConfig struct {
	Strategy         string        `koanf:"strategy" validate:"oneof=sequential pool distributed"`
	Threads          int           `koanf:"threads" validate:"gte=0,lte=4096"`
	Progress         string        `koanf:"progress" validate:"oneof=none log metrics"`
	ProgressInterval time.Duration `koanf:"progress_interval" validate:"gte=0"`
}

// EffectiveThreads resolves Threads = 0 to the number of CPUs.
func (p ProcessorConfig) EffectiveThreads() int {
	if p.Threads > 0 {
		return p.Threads
	}
	return runtime.NumCPU()
}

// CacheConfig configures the disk chunk cache node. An empty Root disables
// caching nodes built from configuration.
//
// Environment Variables:
//   - CACHE_ROOT: cache directory
//   - CACHE_MAX_SIZE_BYTES: budget per worker directory, 0 for unbounded (default: 1GiB)
//   - CACHE_INDEX: memory or badger (default: memory)
//   - CUBEFLOW_WORKER_ID: worker identity; WORKER_ID is honored when unset
type CacheConfig struct {
	Root         string `koanf:"root"`
	MaxSizeBytes int64  `koanf:"max_size_bytes" validate:"gte=0"`
	WorkerID     string `koanf:"worker_id"`
	Index        string `koanf:"index" validate:"oneof=memory badger"`
}

// TransportConfig configures the distributed strategy.
//
// Environment Variables:
//   - NATS_URL: broker URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: start an in-process broker (default: false)
//   - NATS_EMBEDDED_HOST, NATS_EMBEDDED_PORT: listen address of the embedded broker
//   - NATS_STORE_DIR: JetStream storage of the embedded broker
//   - NATS_JETSTREAM: deliver tasks through a JetStream stream (default: false)
//   - NATS_TASK_TOPIC, NATS_RESULT_PREFIX, NATS_QUEUE_GROUP
//   - DISTRIBUTED_TIMEOUT: bound on one distributed run, 0 = none
//   - WORKER_CONCURRENCY: chunks a worker computes at once, 0 = number of CPUs
//   - WORKER_GRAPH_CACHE: decoded graphs a worker keeps (default: 8)
type TransportConfig struct {
	URL          string        `koanf:"url"`
	Embedded     bool          `koanf:"embedded"`
	EmbeddedHost string        `koanf:"embedded_host"`
	EmbeddedPort int           `koanf:"embedded_port" validate:"gte=-1,lte=65535"`
	StoreDir     string        `koanf:"store_dir"`
	JetStream    bool          `koanf:"jetstream"`
	TaskTopic    string        `koanf:"task_topic" validate:"required,topic"`
	ResultPrefix string        `koanf:"result_prefix" validate:"required,topic"`
	QueueGroup   string        `koanf:"queue_group" validate:"required,topic"`
	AckWait      time.Duration `koanf:"ack_wait" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gte=0"`

	WorkerConcurrency int `koanf:"worker_concurrency" validate:"gte=0"`
	GraphCacheSize    int `koanf:"graph_cache_size" validate:"gte=1"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker guarding task publishing.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests" validate:"gte=1"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gte=1"`
}

// JobConfig describes what a run or coordinator process does.
//
// Environment Variables:
//   - CUBEFLOW_MODE: run, coordinator, worker (default: run)
//   - GRAPH_PATH: JSON graph document to evaluate
//   - OUTPUT_PATH: export destination
//   - EXPORT_FORMAT: chunkdir or dense (default: dense)
//   - EXPORT_COMPRESS: zstd-compress chunk directory slices (default: false)
type JobConfig struct {
	Mode       string `koanf:"mode" validate:"oneof=run coordinator worker"`
	GraphPath  string `koanf:"graph_path"`
	OutputPath string `koanf:"output_path"`
	Format     string `koanf:"format" validate:"oneof=chunkdir dense"`
	Compress   bool   `koanf:"compress"`
}

// ServerConfig configures the status HTTP API.
//
// Environment Variables:
//   - HTTP_ENABLED: serve the status API (default: true)
//   - HTTP_ADDR: listen address (default: 127.0.0.1:8642)
//   - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW: per client rate limit
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Addr            string        `koanf:"addr" validate:"omitempty,hostname_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RecentRuns      int           `koanf:"recent_runs" validate:"gte=1,lte=10000"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`

	// Format is the output format: json or console.
	// JSON is recommended for production (structured, machine-parseable).
	// Console is human-readable for development.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in that order of precedence.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
