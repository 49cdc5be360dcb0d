// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/service"
)

// DocumentsHandler exposes the editor write path.
type DocumentsHandler struct {
	translations *service.TranslationService
	logger       *slog.Logger
}

// NewDocumentsHandler creates a documents handler.
func NewDocumentsHandler(translations *service.TranslationService, logger *slog.Logger) *DocumentsHandler {
	return &DocumentsHandler{translations: translations, logger: logger}
}

// authorRequest is the body of POST /api/documents/{kind}.
type authorRequest struct {
	ParentID int64                  `json:"parent_id"`
	Base     model.Fields           `json:"base"`
	Explicit map[int64]model.Fields `json:"explicit"`
}

// Create handles POST /api/documents/{kind}.
func (h *DocumentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req authorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc, err := h.translations.AuthorDocument(r.Context(), chi.URLParam(r, "kind"), service.AuthorParams{
		ParentID: req.ParentID,
		Base:     req.Base,
		Explicit: req.Explicit,
	})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusCreated, map[string]any{
		"document":     doc.Document,
		"translations": doc.Translations,
	})
}

// Translations handles GET /api/documents/{kind}/{id}/translations.
func (h *DocumentsHandler) Translations(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	rows, err := h.translations.Translations(r.Context(), chi.URLParam(r, "kind"), id)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{"translations": rows})
}

// editRequest is the body of the edit endpoints.
type editRequest struct {
	Fields       model.Fields `json:"fields"`
	ReassertSync bool         `json:"reassert_sync"`
}

// EditBase handles PUT /api/documents/{kind}/{id}/base. Propagation failures
// are returned in the body alongside a 200.
func (h *DocumentsHandler) EditBase(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req editRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	row, res, err := h.translations.EditBase(r.Context(), chi.URLParam(r, "kind"), id, req.Fields)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{
		"translation": row,
		"propagation": res,
	})
}

// EditTranslation handles PUT /api/documents/{kind}/{id}/translations/{languageID}.
func (h *DocumentsHandler) EditTranslation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	languageID, ok := parseIDParam(w, r, "languageID")
	if !ok {
		return
	}
	var req editRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	row, err := h.translations.EditTranslation(r.Context(), chi.URLParam(r, "kind"), id, languageID, req.Fields, req.ReassertSync)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, map[string]any{"translation": row})
}

// Delete handles DELETE /api/documents/{kind}/{id}.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.translations.DeleteDocument(r.Context(), chi.URLParam(r, "kind"), id); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, nil)
}
