// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

// Package main is the entry point of the cubeflow binary.
//
// cubeflow evaluates a cube graph stored as JSON chunk by chunk and writes the
// result to disk. The process mode comes from configuration (CUBEFLOW_MODE):
//
//   - run: load GRAPH_PATH, export it to OUTPUT_PATH with the configured
//     processor (sequential or pool), then exit.
//   - coordinator: like run, but chunks are computed by worker processes
//     reached over NATS (PROCESSOR_STRATEGY=distributed).
//   - worker: consume chunk tasks from NATS until SIGINT or SIGTERM.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables
//   - Config file (CONFIG_PATH, ./cubeflow.yaml or /etc/cubeflow/config.yaml)
//   - Built-in defaults
//
// # Example Usage
//
// Single process, all cores:
//
//	GRAPH_PATH=ndvi.json OUTPUT_PATH=ndvi.dense ./cubeflow
//
// Coordinator with an embedded broker and two workers on other hosts:
//
//	CUBEFLOW_MODE=coordinator PROCESSOR_STRATEGY=distributed NATS_EMBEDDED=true \
//	  NATS_EMBEDDED_HOST=0.0.0.0 GRAPH_PATH=ndvi.json OUTPUT_PATH=out/ EXPORT_FORMAT=chunkdir ./cubeflow
//
//	CUBEFLOW_MODE=worker NATS_URL=nats://coordinator:4222 CACHE_ROOT=/var/cache/cubeflow ./cubeflow
//
// # Exit Codes
//
// 0 when every chunk was written, 1 otherwise. Chunks that failed in pool or
// distributed runs are listed in the log and at /api/v1/runs.
package main
