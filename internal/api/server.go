// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/cubeflow/internal/config"
)

// NewServer returns the HTTP server of the status API. It is started by the
// supervisor.
func NewServer(cfg config.ServerConfig, h *Handler) *http.Server {
	mw := DefaultMiddlewareConfig()
	mw.RateLimitRequests = cfg.RateLimitReqs
	mw.RateLimitWindow = cfg.RateLimitWindow

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(h, NewMiddleware(mw)),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
