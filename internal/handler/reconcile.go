// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-langsync/internal/reconcile"
	"github.com/olegiv/ocms-langsync/internal/scheduler"
	"github.com/olegiv/ocms-langsync/internal/service"
)

// OpsHandler serves reconcile runs, scheduled jobs and the event log.
type OpsHandler struct {
	reconciler *reconcile.Reconciler
	jobs       *scheduler.Registry
	events     *service.EventService
	logger     *slog.Logger
}

// NewOpsHandler creates an operations handler.
func NewOpsHandler(reconciler *reconcile.Reconciler, jobs *scheduler.Registry, events *service.EventService, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{reconciler: reconciler, jobs: jobs, events: events, logger: logger}
}

// Reconcile handles POST /api/reconcile. By default the pass is started in
// the background through the job registry; ?wait=1 runs it inline and
// returns the summary.
func (h *OpsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if queryBool(r, "wait") {
		summary, err := h.reconciler.RunOnce(r.Context())
		if errors.Is(err, reconcile.ErrRunInProgress) {
			writeJSONError(w, http.StatusConflict, "RUN_IN_PROGRESS", err.Error())
			return
		}
		if err != nil {
			writeAppError(w, r, h.logger, err)
			return
		}
		writeJSONSuccess(w, http.StatusOK, map[string]any{"summary": summary})
		return
	}

	if err := h.jobs.TriggerNow(scheduler.SourceCore, scheduler.JobReconcile); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusAccepted, map[string]any{"status": "started"})
}

// Runs handles GET /api/reconcile/runs.
func (h *OpsHandler) Runs(w http.ResponseWriter, r *http.Request) {
	runs, err := h.reconciler.Runs(r.Context(), queryLimit(r, 20, 200))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{
		"runs":    runs,
		"running": h.reconciler.Running(),
	})
}

// Jobs handles GET /api/jobs.
func (h *OpsHandler) Jobs(w http.ResponseWriter, _ *http.Request) {
	writeJSONSuccess(w, http.StatusOK, map[string]any{"jobs": h.jobs.List()})
}

// TriggerJob handles POST /api/jobs/{source}/{name}/trigger.
func (h *OpsHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.TriggerNow(chi.URLParam(r, "source"), chi.URLParam(r, "name")); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusAccepted, nil)
}

// scheduleRequest is the body of PUT /api/jobs/{source}/{name}/schedule.
type scheduleRequest struct {
	Schedule string `json:"schedule"`
}

// UpdateSchedule handles PUT /api/jobs/{source}/{name}/schedule.
func (h *OpsHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.jobs.UpdateSchedule(chi.URLParam(r, "source"), chi.URLParam(r, "name"), req.Schedule); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{"jobs": h.jobs.List()})
}

// ResetSchedule handles DELETE /api/jobs/{source}/{name}/schedule.
func (h *OpsHandler) ResetSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.ResetSchedule(chi.URLParam(r, "source"), chi.URLParam(r, "name")); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{"jobs": h.jobs.List()})
}

// Events handles GET /api/events.
func (h *OpsHandler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.RecentEvents(r.Context(), queryLimit(r, 50, 500))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{"events": events})
}
