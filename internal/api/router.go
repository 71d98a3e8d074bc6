// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/keeper/internal/metrics"
)

// RouterConfig holds middleware configuration for the HTTP surface.
type RouterConfig struct {
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
}

// DefaultRouterConfig returns the default middleware configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CORSAllowedOrigins: []string{"*"},
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

// Router wires handlers and middleware into an http.Handler.
type Router struct {
	handler *Handler
	config  RouterConfig
}

// NewRouter creates a router for the given handler.
func NewRouter(handler *Handler, config RouterConfig) *Router {
	return &Router{handler: handler, config: config}
}

// prometheusMetrics records request counts and latency per endpoint.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		metrics.RecordAPIRequest(r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// Setup configures all HTTP routes using the Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Applied to ALL routes in order.
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.config.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	// Health gets permissive rate limiting so monitors can poll freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/", router.handler.Health)
	})

	r.Route("/api/v1/backup", func(r chi.Router) {
		r.Use(httprate.Limit(
			router.config.RateLimitRequests,
			router.config.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
		r.Use(prometheusMetrics)

		r.Get("/schedule", router.handler.GetSchedule)
		r.Put("/schedule", router.handler.PutSchedule)
		r.Post("/run", router.handler.RunBackup)
		r.Get("/history", router.handler.GetHistory)
		r.Get("/progress", router.handler.GetProgress)
		r.Get("/list", router.handler.ListBackups)
	})

	r.Route("/api/v1/restore", func(r chi.Router) {
		r.Use(httprate.Limit(
			router.config.RateLimitRequests,
			router.config.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
		r.Use(prometheusMetrics)

		r.Post("/preview", router.handler.PreviewRestore)
		r.Post("/", router.handler.Restore)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
