// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/ocms-langsync/internal/language"
)

// apiActor is recorded as created_by/updated_by for admin API changes.
const apiActor = "admin-api"

// LanguagesHandler serves the language registry.
type LanguagesHandler struct {
	registry *language.Registry
	logger   *slog.Logger
}

// NewLanguagesHandler creates a languages handler.
func NewLanguagesHandler(registry *language.Registry, logger *slog.Logger) *LanguagesHandler {
	return &LanguagesHandler{registry: registry, logger: logger}
}

// List handles GET /api/languages.
func (h *LanguagesHandler) List(w http.ResponseWriter, r *http.Request) {
	langs, err := h.registry.List(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{"languages": langs})
}

// Get handles GET /api/languages/{id}.
func (h *LanguagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	lang, err := h.registry.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{"language": lang})
}

// createLanguageRequest is the body of POST /api/languages.
type createLanguageRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
	Position   *int64 `json:"position"`
	Active     bool   `json:"active"`
}

// Create handles POST /api/languages.
func (h *LanguagesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLanguageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lang, err := h.registry.Create(r.Context(), language.CreateParams{
		Code:       req.Code,
		Name:       req.Name,
		NativeName: req.NativeName,
		Position:   req.Position,
		Active:     req.Active,
		CreatedBy:  apiActor,
	})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusCreated, map[string]any{"language": lang})
}

// Activate handles POST /api/languages/{id}/activate. The back-fill runs in
// the background.
func (h *LanguagesHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles POST /api/languages/{id}/deactivate.
func (h *LanguagesHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *LanguagesHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	lang, err := h.registry.SetActive(r.Context(), id, active, apiActor)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{"language": lang})
}

// SetDefault handles POST /api/languages/{id}/default.
func (h *LanguagesHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	lang, err := h.registry.SetDefault(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{"language": lang})
}

// Delete handles DELETE /api/languages/{id}.
func (h *LanguagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.registry.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, nil)
}
