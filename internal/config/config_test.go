// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package config

import (
	"runtime"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Job.GraphPath = "graph.json"
	cfg.Job.OutputPath = "out.dense"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with job", func(*Config) {}, ""},
		{"worker needs no job", func(c *Config) {
			c.Job = JobConfig{Mode: ModeWorker, Format: "dense"}
		}, ""},
		{"run without graph", func(c *Config) { c.Job.GraphPath = "" }, "GRAPH_PATH"},
		{"run without output", func(c *Config) { c.Job.OutputPath = "" }, "OUTPUT_PATH"},
		{"unknown strategy", func(c *Config) { c.Processor.Strategy = "gpu" }, "processor.strategy"},
		{"negative threads", func(c *Config) { c.Processor.Threads = -2 }, "processor.threads"},
		{"unknown index", func(c *Config) { c.Cache.Index = "sqlite" }, "cache.index"},
		{"unknown mode", func(c *Config) { c.Job.Mode = "serve" }, "job.mode"},
		{"unknown format", func(c *Config) { c.Job.Format = "netcdf" }, "job.format"},
		{"wildcard topic", func(c *Config) { c.Transport.TaskTopic = "cubeflow.>" }, "transport.task_topic"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad addr", func(c *Config) { c.Server.Addr = "localhost" }, "server.addr"},
		{"server without addr", func(c *Config) { c.Server.Addr = "" }, "HTTP_ADDR"},
		{"coordinator needs distributed", func(c *Config) { c.Job.Mode = ModeCoordinator }, "processor.strategy=distributed"},
		{"coordinator", func(c *Config) {
			c.Job.Mode = ModeCoordinator
			c.Processor.Strategy = "distributed"
		}, ""},
		{"distributed with bad url", func(c *Config) {
			c.Processor.Strategy = "distributed"
			c.Transport.URL = "http://broker:4222"
		}, "NATS_URL"},
		{"embedded ignores url", func(c *Config) {
			c.Processor.Strategy = "distributed"
			c.Transport.URL = ""
			c.Transport.Embedded = true
		}, ""},
		{"pool ignores url", func(c *Config) { c.Transport.URL = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEffectiveThreads(t *testing.T) {
	if got := (ProcessorConfig{Threads: 6}).EffectiveThreads(); got != 6 {
		t.Errorf("EffectiveThreads() = %d, want 6", got)
	}
	if got := (ProcessorConfig{}).EffectiveThreads(); got != runtime.NumCPU() {
		t.Errorf("EffectiveThreads() = %d, want NumCPU", got)
	}
}

func TestUsesTransport(t *testing.T) {
	cfg := validConfig()
	if cfg.UsesTransport() {
		t.Error("pool run should not use the transport")
	}
	cfg.Job.Mode = ModeWorker
	if !cfg.UsesTransport() {
		t.Error("worker should use the transport")
	}
}
