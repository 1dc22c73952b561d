// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

/*
Package api provides the read-only status HTTP API of a cubeflow process.

# Endpoints

	GET /healthz              version, mode, uptime and registered checks
	GET /metrics              Prometheus metrics
	GET /api/v1/graph         the graph being evaluated, with its view
	GET /api/v1/runs          recent runs, newest first (?limit=n)
	GET /api/v1/runs/{runID}  one run

Responses under /api/v1 use the APIResponse envelope:

	{"success": true, "data": ..., "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 0}}

/api/v1 is rate limited per client IP with go-chi/httprate and counted in
api_requests_total. Every response carries X-Request-ID, which is also the
request_id of the request's log lines.
*/
package api
