// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter returns the chi router of the status API.
func NewRouter(h *Handler, mw *Middleware) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	// Probes and scrapes are not rate limited.
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(Metrics)

		r.Get("/graph", h.Graph)
		r.Get("/runs", h.Runs)
		r.Get("/runs/{runID}", h.Run)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Not found")
	})
	return r
}
