// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

// Package api exposes the engine over HTTP: assessment intake, response
// scoring, quiz generation, catalog loading, health, and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/adaptix-learn/adaptix/internal/engine"
	"github.com/adaptix-learn/adaptix/internal/repository"
)

// RouterConfig tunes the HTTP middleware stack.
type RouterConfig struct {
	RequestsPerMinute  int
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
}

// NewRouter wires the chi mux: request-id and correlation middleware,
// CORS, per-IP rate limiting, and the API routes.
func NewRouter(cfg RouterConfig, eng *engine.Engine, repo repository.Repository, log zerolog.Logger) http.Handler {
	h := &handlers{engine: eng, repo: repo, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlationMiddleware)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	if cfg.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.RequestsPerMinute, time.Minute))
	}

	r.Get("/health", h.health)
	r.Get("/ready", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/assessment", h.processAssessment)
		r.Post("/response", h.recordResponse)
		r.Post("/quiz", h.generateQuiz)
		r.Post("/items", h.putItem)
		r.Get("/learners/{learnerID}", h.getProfile)
	})

	return r
}
