// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

/*
Package engine assembles the runtime a cubeflow process evaluates graphs with.

A Runtime holds the default chunk processor, the progress factory handed to
it, and the registry used to rebuild graphs from JSON. It is built once from
configuration and passed to whatever needs it; nothing in cubeflow keeps a
process-wide default processor.

	rt, err := engine.New(ctx, cfg)
	if err != nil {
	    return err
	}
	defer rt.Close(ctx)

	node, err := rt.LoadGraph(cfg.Job.GraphPath)
	report, err := rt.ExportDense(ctx, node, cfg.Job.OutputPath, nil)

With the distributed strategy, New connects to NATS (starting an embedded
server first when configured) and the processor is a distributed.Coordinator.
OpenTransport is also used by worker processes, which share the same
transport settings.

Every export run is recorded in a bounded History that the status API serves.
*/
package engine
