// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/olegiv/ocms-langsync/internal/cache"
	"github.com/olegiv/ocms-langsync/internal/reconcile"
	"github.com/olegiv/ocms-langsync/internal/taskqueue"
	"github.com/olegiv/ocms-langsync/internal/version"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	db         *sql.DB
	cache      *cache.LanguageCache
	pool       *taskqueue.Pool
	reconciler *reconcile.Reconciler
	version    version.Info
	startTime  time.Time
}

// NewHealthHandler creates a new health handler. cache, pool and reconciler may be nil.
func NewHealthHandler(db *sql.DB, languageCache *cache.LanguageCache, pool *taskqueue.Pool, reconciler *reconcile.Reconciler, info version.Info) *HealthHandler {
	return &HealthHandler{
		db:         db,
		cache:      languageCache,
		pool:       pool,
		reconciler: reconciler,
		version:    info,
		startTime:  time.Now(),
	}
}

// HealthStatus represents the overall health status.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Queue     *taskqueue.Stats `json:"queue,omitempty"`
	Cache     *cache.Stats     `json:"language_cache,omitempty"`
	Reconcile *ReconcileState  `json:"reconcile,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// ReconcileState reports whether a pass is running in this process.
type ReconcileState struct {
	Running bool `json:"running"`
}

// SystemInfo contains system-level information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	NumCPU       int    `json:"num_cpus"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbCheck := h.checkDatabase(r.Context())
	defaultCheck := h.checkDefaultLanguage(r.Context())

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version.Version,
		Checks: map[string]Check{
			"database":         dbCheck,
			"default_language": defaultCheck,
		},
	}
	if dbCheck.Status != "healthy" || defaultCheck.Status != "healthy" {
		status.Status = "degraded"
	}

	if h.pool != nil {
		stats := h.pool.Stats()
		status.Queue = &stats
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		status.Cache = &stats
	}
	if h.reconciler != nil {
		status.Reconcile = &ReconcileState{Running: h.reconciler.Running()}
	}
	if queryBool(r, "verbose") {
		status.System = &SystemInfo{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
		}
	}

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		return Check{Status: "unhealthy", Message: "database unreachable"}
	}
	return Check{Status: "healthy", Latency: time.Since(start).String()}
}

func (h *HealthHandler) checkDefaultLanguage(ctx context.Context) Check {
	if h.cache == nil {
		return Check{Status: "healthy", Message: "not checked"}
	}
	lang, err := h.cache.GetDefault(ctx)
	if err != nil {
		return Check{Status: "unhealthy", Message: "no default language"}
	}
	return Check{Status: "healthy", Message: lang.Code}
}
