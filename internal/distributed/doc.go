// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

/*
Package distributed processes the chunks of a cube on worker processes
connected through a Watermill pub/sub transport.

# Roles

The Coordinator implements processor.Processor. For each Apply it serializes
the cube graph, publishes one Task per chunk id to the task topic and waits
on a per-run result topic until every id is accounted for. Callbacks run on
the coordinator under the per-run mutex, exactly once per chunk: duplicate
results (redeliveries, two workers racing on the same task) are dropped.

A Worker is a suture.Service. It consumes tasks, rebuilds the graph through
a cube.Registry (decoded graphs are kept, keyed by an xxhash of their JSON),
reads the requested chunk locally and publishes the encoded buffer or the
error message back to the run's result topic.

# Transports

  - NewChannelTransport: in-process gochannel pub/sub, for tests and single
    process deployments. Every subscriber receives every message.
  - NewNATSTransport: NATS through watermill-nats. Workers share tasks via a
    queue group; tasks may go through a JetStream stream so they survive
    until a worker is available. Results always use core NATS.

EmbeddedServer starts a NATS server inside the process for single host
setups.

# Failures

A failed chunk (publish rejected by the circuit breaker, error reported by a
worker, undecodable payload) is logged and listed in the Report; the run
continues. Workers that disappear are not detected; bound the run with a
context deadline or Coordinator.Timeout.
*/
package distributed
