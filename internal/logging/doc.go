// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

// Package logging provides centralized zerolog-based structured logging for Cubeflow.
//
// JSON output is the default and is meant for log shippers. Console output
// is available for interactive runs.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Fields: map[string]string{"worker_id": id},
//	})
//
//	logging.Info().Str("graph", path).Msg("Starting export")
//	logging.Error().Err(err).Uint32("chunk_id", id).Msg("Chunk failed")
//
// # Run Context
//
// Every processor run gets a short run id. ContextWithRunID stores it and
// Ctx returns a logger carrying it, so chunk logs from a coordinator and its
// workers can be joined on run_id. HTTP requests carry request_id the same way.
//
//	ctx = logging.ContextWithRunID(ctx, logging.GenerateRunID())
//	logging.Ctx(ctx).Debug().Msg("chunk read")
//
// # Adapters
//
// NewSlogLogger bridges log/slog to zerolog for the suture supervisor tree.
// NewWatermillAdapter does the same for watermill publishers and
// subscribers. Both honour the global level.
//
// # Configuration
//
// Config is filled from the logging section of the application config
// (LOG_LEVEL, LOG_FORMAT, LOG_CALLER).
package logging
