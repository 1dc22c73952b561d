// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"cubeflow.yaml",
	"cubeflow.yml",
	"/etc/cubeflow/config.yaml",
	"/etc/cubeflow/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Worker identity variables. The first is preferred; the second is accepted
// for deployments that already set it.
const (
	WorkerIDEnvVar       = "CUBEFLOW_WORKER_ID"
	LegacyWorkerIDEnvVar = "WORKER_ID"
)

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Processor: ProcessorConfig{
			Strategy:         "pool",
			Threads:          0, // 0 = runtime.NumCPU()
			Progress:         ProgressLog,
			ProgressInterval: 2 * time.Second,
		},
		Cache: CacheConfig{
			Root:         "",
			MaxSizeBytes: 1 << 30, // 1GB
			WorkerID:     "",      // Resolved from the environment or generated
			Index:        "memory",
		},
		Transport: TransportConfig{
			URL:               "nats://127.0.0.1:4222",
			Embedded:          false,
			EmbeddedHost:      "127.0.0.1",
			EmbeddedPort:      4222,
			StoreDir:          "",
			JetStream:         false,
			TaskTopic:         "cubeflow.tasks",
			ResultPrefix:      "cubeflow.results",
			QueueGroup:        "cubeflow-workers",
			AckWait:           5 * time.Minute,
			Timeout:           0, // No bound on a distributed run
			WorkerConcurrency: 0, // 0 = runtime.NumCPU()
			GraphCacheSize:    8,
			Breaker: BreakerConfig{
				MaxRequests:      3,
				Interval:         30 * time.Second,
				Timeout:          10 * time.Second,
				FailureThreshold: 5,
			},
		},
		Job: JobConfig{
			Mode:   ModeRun,
			Format: "dense",
		},
		Server: ServerConfig{
			Enabled:         true,
			Addr:            "127.0.0.1:8642",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			RecentRuns:      50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the default configuration.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration using Koanf with layered sources.
//
// Loading order (later sources override earlier):
//  1. Struct defaults
//  2. Config file (cubeflow.yaml, or the path in CONFIG_PATH)
//  3. Environment variables
//
// The configuration is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := applyLegacyWorkerID(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default locations.
// Returns empty string if no config file is found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyLegacyWorkerID sets cache.worker_id from WORKER_ID when neither the
// preferred variable nor a config file chose one.
func applyLegacyWorkerID(k *koanf.Koanf) error {
	if os.Getenv(WorkerIDEnvVar) != "" || k.String("cache.worker_id") != "" {
		return nil
	}
	id := strings.TrimSpace(os.Getenv(LegacyWorkerIDEnvVar))
	if id == "" {
		return nil
	}
	if err := k.Set("cache.worker_id", id); err != nil {
		return fmt.Errorf("failed to set cache.worker_id: %w", err)
	}
	return nil
}

// envMappings maps environment variable names (lower case) to config keys.
var envMappings = map[string]string{
	// Processor
	"processor_strategy":          "processor.strategy",
	"processor_threads":           "processor.threads",
	"processor_progress":          "processor.progress",
	"processor_progress_interval": "processor.progress_interval",

	// Cache
	"cache_root":           "cache.root",
	"cache_max_size_bytes": "cache.max_size_bytes",
	"cache_index":          "cache.index",
	"cubeflow_worker_id":   "cache.worker_id",

	// Transport
	"nats_url":                       "transport.url",
	"nats_embedded":                  "transport.embedded",
	"nats_embedded_host":             "transport.embedded_host",
	"nats_embedded_port":             "transport.embedded_port",
	"nats_store_dir":                 "transport.store_dir",
	"nats_jetstream":                 "transport.jetstream",
	"nats_task_topic":                "transport.task_topic",
	"nats_result_prefix":             "transport.result_prefix",
	"nats_queue_group":               "transport.queue_group",
	"nats_ack_wait":                  "transport.ack_wait",
	"distributed_timeout":            "transport.timeout",
	"worker_concurrency":             "transport.worker_concurrency",
	"worker_graph_cache":             "transport.graph_cache_size",
	"circuit_breaker_max_requests":   "transport.breaker.max_requests",
	"circuit_breaker_interval":       "transport.breaker.interval",
	"circuit_breaker_timeout":        "transport.breaker.timeout",
	"circuit_breaker_fail_threshold": "transport.breaker.failure_threshold",

	// Job
	"cubeflow_mode":   "job.mode",
	"graph_path":      "job.graph_path",
	"output_path":     "job.output_path",
	"export_format":   "job.format",
	"export_compress": "job.compress",

	// Status API
	"http_enabled":          "server.enabled",
	"http_addr":             "server.addr",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"recent_runs":           "server.recent_runs",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to config keys.
// Unmapped variables return "" and are ignored by koanf.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
