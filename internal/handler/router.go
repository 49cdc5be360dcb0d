// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the admin HTTP API.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/ocms-langsync/internal/middleware"
)

// Handlers bundles the route handlers wired by NewRouter.
type Handlers struct {
	Health    *HealthHandler
	Languages *LanguagesHandler
	Documents *DocumentsHandler
	Ops       *OpsHandler
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// AdminToken guards /api. Empty disables authentication.
	AdminToken string
	// RequestTimeout bounds each request. Zero means 30 seconds.
	RequestTimeout time.Duration
	// RateLimit is the per-IP request rate on /api. Zero means 20/s.
	RateLimit float64
}

// NewRouter builds the chi router.
func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/health/live", h.Health.Liveness)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.AdminToken))
		r.Use(middleware.NewRateLimiter(cfg.RateLimit, int(cfg.RateLimit)*2).Middleware())

		if h.Languages != nil {
			r.Get("/languages", h.Languages.List)
			r.Post("/languages", h.Languages.Create)
			r.Route("/languages/{id}", func(r chi.Router) {
				r.Get("/", h.Languages.Get)
				r.Delete("/", h.Languages.Delete)
				r.Post("/activate", h.Languages.Activate)
				r.Post("/deactivate", h.Languages.Deactivate)
				r.Post("/default", h.Languages.SetDefault)
			})
		}

		if h.Documents != nil {
			r.Route("/documents/{kind}", func(r chi.Router) {
				r.Post("/", h.Documents.Create)
				r.Delete("/{id}", h.Documents.Delete)
				r.Get("/{id}/translations", h.Documents.Translations)
				r.Put("/{id}/base", h.Documents.EditBase)
				r.Put("/{id}/translations/{languageID}", h.Documents.EditTranslation)
			})
		}

		if h.Ops != nil {
			r.Post("/reconcile", h.Ops.Reconcile)
			r.Get("/reconcile/runs", h.Ops.Runs)
			r.Get("/jobs", h.Ops.Jobs)
			r.Post("/jobs/{source}/{name}/trigger", h.Ops.TriggerJob)
			r.Put("/jobs/{source}/{name}/schedule", h.Ops.UpdateSchedule)
			r.Delete("/jobs/{source}/{name}/schedule", h.Ops.ResetSchedule)
			r.Get("/events", h.Ops.Events)
		}
	})

	return r
}
