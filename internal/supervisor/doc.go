// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

/*
Package supervisor runs the long-lived services of a worker process under a
suture v4 tree.

	cubeflow (root)
	├── transport-layer
	│   └── chunk-worker-<id>     distributed.Worker
	└── api-layer
	    └── http-server           services.HTTPServerService

Services that return an error are restarted with suture's backoff. Events
are logged through sutureslog over the zerolog slog handler:

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddTransportService(worker)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err := tree.Serve(ctx)

Run and coordinator processes serve only the api layer, in the background
while their export runs.
*/
package supervisor
