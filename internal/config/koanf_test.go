// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Processor.Strategy != "pool" {
		t.Errorf("Processor.Strategy = %q, want pool", cfg.Processor.Strategy)
	}
	if cfg.Processor.ProgressInterval != 2*time.Second {
		t.Errorf("Processor.ProgressInterval = %v, want 2s", cfg.Processor.ProgressInterval)
	}
	if cfg.Cache.MaxSizeBytes != 1<<30 {
		t.Errorf("Cache.MaxSizeBytes = %d, want 1GB", cfg.Cache.MaxSizeBytes)
	}
	if cfg.Cache.Index != "memory" {
		t.Errorf("Cache.Index = %q, want memory", cfg.Cache.Index)
	}
	if cfg.Transport.URL != "nats://127.0.0.1:4222" {
		t.Errorf("Transport.URL = %q", cfg.Transport.URL)
	}
	if cfg.Transport.TaskTopic != "cubeflow.tasks" || cfg.Transport.ResultPrefix != "cubeflow.results" {
		t.Errorf("topics = %q/%q", cfg.Transport.TaskTopic, cfg.Transport.ResultPrefix)
	}
	if cfg.Transport.Breaker.FailureThreshold != 5 {
		t.Errorf("Breaker.FailureThreshold = %d, want 5", cfg.Transport.Breaker.FailureThreshold)
	}
	if cfg.Job.Mode != ModeRun || cfg.Job.Format != "dense" {
		t.Errorf("Job = %+v", cfg.Job)
	}
	if cfg.Server.Addr != "127.0.0.1:8642" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PROCESSOR_STRATEGY", "processor.strategy"},
		{"PROCESSOR_THREADS", "processor.threads"},
		{"CACHE_ROOT", "cache.root"},
		{"CUBEFLOW_WORKER_ID", "cache.worker_id"},
		{"NATS_URL", "transport.url"},
		{"NATS_EMBEDDED", "transport.embedded"},
		{"CIRCUIT_BREAKER_TIMEOUT", "transport.breaker.timeout"},
		{"CUBEFLOW_MODE", "job.mode"},
		{"GRAPH_PATH", "job.graph_path"},
		{"HTTP_ADDR", "server.addr"},
		{"LOG_LEVEL", "logging.level"},
		{"log_format", "logging.format"},

		// The legacy variable is handled separately.
		{"WORKER_ID", ""},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// setJob sets the variables a run process needs to pass validation.
func setJob(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GRAPH_PATH", "graph.json")
	t.Setenv("OUTPUT_PATH", "out.dense")
}

func TestLoadWithKoanf_EnvOverridesDefaults(t *testing.T) {
	setJob(t)
	t.Setenv("PROCESSOR_STRATEGY", "sequential")
	t.Setenv("PROCESSOR_THREADS", "3")
	t.Setenv("PROCESSOR_PROGRESS_INTERVAL", "500ms")
	t.Setenv("CACHE_ROOT", "/tmp/cubes")
	t.Setenv("CACHE_INDEX", "badger")
	t.Setenv("EXPORT_COMPRESS", "true")
	t.Setenv("HTTP_ENABLED", "false")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Processor.Strategy != "sequential" || cfg.Processor.Threads != 3 {
		t.Errorf("Processor = %+v", cfg.Processor)
	}
	if cfg.Processor.ProgressInterval != 500*time.Millisecond {
		t.Errorf("ProgressInterval = %v, want 500ms", cfg.Processor.ProgressInterval)
	}
	if cfg.Cache.Root != "/tmp/cubes" || cfg.Cache.Index != "badger" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if !cfg.Job.Compress || cfg.Job.GraphPath != "graph.json" {
		t.Errorf("Job = %+v", cfg.Job)
	}
	if cfg.Server.Enabled {
		t.Error("Server.Enabled = true, want false")
	}
}

func TestLoadWithKoanf_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubeflow.yaml")
	content := `
processor:
  strategy: distributed
  threads: 2
transport:
  url: nats://broker:4222
  timeout: 5m
job:
  mode: coordinator
  graph_path: from-file.json
  output_path: out
  format: chunkdir
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Job.Mode != ModeCoordinator || cfg.Job.Format != "chunkdir" || cfg.Job.GraphPath != "from-file.json" {
		t.Errorf("Job = %+v", cfg.Job)
	}
	if cfg.Transport.URL != "nats://broker:4222" || cfg.Transport.Timeout != 5*time.Minute {
		t.Errorf("Transport = %+v", cfg.Transport)
	}
	// Untouched defaults survive the file layer.
	if cfg.Transport.TaskTopic != "cubeflow.tasks" {
		t.Errorf("TaskTopic = %q", cfg.Transport.TaskTopic)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, env should override file", cfg.Logging.Level)
	}
}

func TestLoadWithKoanf_WorkerID(t *testing.T) {
	tests := []struct {
		name    string
		primary string
		legacy  string
		want    string
	}{
		{"none", "", "", ""},
		{"primary", "alpha", "", "alpha"},
		{"legacy", "", "beta", "beta"},
		{"primary wins", "alpha", "beta", "alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setJob(t)
			t.Setenv(WorkerIDEnvVar, tt.primary)
			t.Setenv(LegacyWorkerIDEnvVar, tt.legacy)

			cfg, err := LoadWithKoanf()
			if err != nil {
				t.Fatalf("LoadWithKoanf() error = %v", err)
			}
			if cfg.Cache.WorkerID != tt.want {
				t.Errorf("Cache.WorkerID = %q, want %q", cfg.Cache.WorkerID, tt.want)
			}
		})
	}
}

func TestLoadWithKoanf_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("processor: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	if _, err := LoadWithKoanf(); err == nil {
		t.Error("LoadWithKoanf() error = nil, want parse error")
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}

	t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty for missing file", got)
	}
}
