// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

/*
Package config provides configuration management for cubeflow processes.

Configuration is layered with koanf. Later sources override earlier ones:

 1. Struct defaults (defaultConfig)
 2. A YAML file: the path in CONFIG_PATH, else cubeflow.yaml, cubeflow.yml,
    /etc/cubeflow/config.yaml or /etc/cubeflow/config.yml
 3. Environment variables

# Configuration Structure

  - ProcessorConfig: default chunk processor (strategy, threads, progress)
  - CacheConfig: disk chunk cache (root, budget, index, worker identity)
  - TransportConfig: NATS broker, topics and circuit breaker of the
    distributed strategy
  - JobConfig: process mode, graph document and export destination
  - ServerConfig: status HTTP API
  - LoggingConfig: log level, format and caller information

# Example File

	processor:
	  strategy: pool
	  threads: 8
	cache:
	  root: /var/cache/cubeflow
	  max_size_bytes: 10737418240
	  index: badger
	job:
	  mode: run
	  graph_path: ndvi.json
	  output_path: out/ndvi.dense

# Worker Identity

The cache directory of a process is named by its worker id. CUBEFLOW_WORKER_ID
overrides the file; WORKER_ID is used when neither sets one. Without any of
them a random id is generated when the cache node is created.

# Validation

Field constraints are declared with validate tags and checked through the
validation package. Rules spanning sections, such as a coordinator requiring
the distributed strategy, are checked by Validate.
*/
package config
