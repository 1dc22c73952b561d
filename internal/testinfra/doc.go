// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

//go:build integration

// Package testinfra provides Docker based test infrastructure using
// testcontainers-go.
//
// All files carry the integration build tag:
//
//	go test -tags integration ./internal/testinfra/...
//
// Tests skip themselves when Docker is unavailable or with -short.
//
// # NATS
//
// NewNATSContainer starts a NATS server with JetStream and returns its client
// URL, so the distributed transport can be tested against a real broker in a
// separate process rather than the embedded one.
package testinfra
