// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

// Package services adapts blocking servers to the suture.Service interface.
// Chunk workers implement suture.Service themselves and need no wrapper.
package services
