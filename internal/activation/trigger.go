// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package activation back-fills translation rows for a newly active language.
package activation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-langsync/internal/apperr"
	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/propagation"
	"github.com/olegiv/ocms-langsync/internal/service"
	"github.com/olegiv/ocms-langsync/internal/taskqueue"
	"github.com/olegiv/ocms-langsync/internal/translation"
)

// DocumentFailure records a document that could not be back-filled.
type DocumentFailure struct {
	Kind       string `json:"kind"`
	DocumentID int64  `json:"document_id"`
	Error      string `json:"error"`
}

// Report summarises one back-fill.
type Report struct {
	LanguageID int64             `json:"language_id"`
	Documents  int               `json:"documents"`
	Created    int               `json:"created"`   // rows materialised from base
	Refreshed  int               `json:"refreshed"` // existing synced rows rewritten
	Failed     int               `json:"failed"`
	Failures   []DocumentFailure `json:"failures,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

func (r *Report) fail(kind string, documentID int64, err error) {
	r.Failed++
	r.Failures = append(r.Failures, DocumentFailure{Kind: kind, DocumentID: documentID, Error: err.Error()})
}

// Trigger implements language.ActivationNotifier.
type Trigger struct {
	catalogue *translation.Catalogue
	engine    *propagation.Engine
	base      translation.BaseLanguageResolver
	pool      *taskqueue.Pool
	events    *service.EventService
	logger    *slog.Logger
}

// NewTrigger creates an activation trigger. Notify needs pool; events may be nil.
func NewTrigger(catalogue *translation.Catalogue, engine *propagation.Engine, base translation.BaseLanguageResolver,
	pool *taskqueue.Pool, events *service.EventService, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		catalogue: catalogue,
		engine:    engine,
		base:      base,
		pool:      pool,
		events:    events,
		logger:    logger.With("category", model.EventCategoryActivation),
	}
}

// Notify schedules OnLanguageActivated on the task pool and returns at once.
func (t *Trigger) Notify(_ context.Context, languageID int64) error {
	if t.pool == nil {
		return taskqueue.ErrNotRunning
	}
	return t.pool.Submit(taskqueue.Task{
		Name: fmt.Sprintf("activate-language:%d", languageID),
		Run: func(ctx context.Context) error {
			_, err := t.OnLanguageActivated(ctx, languageID)
			return err
		},
	})
}

// OnLanguageActivated makes sure every live document has a row for
// languageID and refreshes synced rows from base. Document failures are
// counted and logged; they never undo the activation.
func (t *Trigger) OnLanguageActivated(ctx context.Context, languageID int64) (Report, error) {
	start := time.Now()
	report := Report{LanguageID: languageID}

	baseID, err := t.base.DefaultLanguageID(ctx)
	if err != nil {
		return report, err
	}
	if baseID == languageID {
		return report, nil
	}

	for _, adapter := range t.catalogue.All() {
		ids, err := adapter.ListDocumentIDs(ctx)
		if err != nil {
			t.logger.Error("listing documents for back-fill failed", "kind", adapter.Kind(), "error", err)
			report.fail(adapter.Kind(), 0, err)
			continue
		}

		for _, docID := range ids {
			t.backfill(ctx, adapter, docID, languageID, &report)

			for _, nested := range adapter.Nested() {
				childIDs, err := nested.ListChildIDs(ctx, docID)
				if err != nil {
					t.logger.Warn("listing sub-records for back-fill failed",
						"kind", nested.Adapter.Kind(), "parent_id", docID, "error", err)
					report.fail(nested.Adapter.Kind(), docID, err)
					continue
				}
				for _, childID := range childIDs {
					t.backfill(ctx, nested.Adapter, childID, languageID, &report)
				}
			}
		}
	}

	report.Duration = time.Since(start)
	t.finish(ctx, report)
	return report, nil
}

func (t *Trigger) backfill(ctx context.Context, adapter translation.Adapter, documentID, languageID int64, report *Report) {
	report.Documents++

	base, err := adapter.GetBaseTranslation(ctx, documentID)
	if err != nil {
		t.logger.Warn("document has no base translation, skipping back-fill",
			"kind", adapter.Kind(), "document_id", documentID, "error", err)
		report.fail(adapter.Kind(), documentID, err)
		return
	}

	_, err = adapter.GetTranslation(ctx, documentID, languageID)
	switch {
	case apperr.IsKind(err, apperr.KindNotFound):
		_, err = adapter.CreateTranslation(ctx, documentID, languageID, base.Fields, true)
		if err != nil && !apperr.IsKind(err, apperr.KindConflict) {
			t.logger.Warn("back-fill row creation failed",
				"kind", adapter.Kind(), "document_id", documentID, "language_id", languageID, "error", err)
			report.fail(adapter.Kind(), documentID, err)
			return
		}
		if err == nil {
			report.Created++
			return
		}
		// Created concurrently; fall through to the refresh.
	case err != nil:
		report.fail(adapter.Kind(), documentID, err)
		return
	}

	wrote, err := t.engine.PropagateRow(ctx, adapter.Kind(), documentID, languageID)
	if err != nil {
		t.logger.Warn("back-fill refresh failed",
			"kind", adapter.Kind(), "document_id", documentID, "language_id", languageID, "error", err)
		report.fail(adapter.Kind(), documentID, err)
		return
	}
	if wrote {
		report.Refreshed++
	}
}

func (t *Trigger) finish(ctx context.Context, report Report) {
	attrs := []any{
		"language_id", report.LanguageID,
		"documents", report.Documents,
		"created", report.Created,
		"refreshed", report.Refreshed,
		"failed", report.Failed,
		"duration", report.Duration,
	}
	if report.Failed > 0 {
		// Warnings reach the event log through the slog handler.
		t.logger.Warn("language back-fill finished with failures", attrs...)
		return
	}

	t.logger.Info("language back-fill finished", attrs...)
	if t.events != nil {
		_ = t.events.LogActivationEvent(ctx, model.EventLevelInfo, "language back-fill finished", map[string]any{
			"language_id": report.LanguageID,
			"documents":   report.Documents,
			"created":     report.Created,
			"refreshed":   report.Refreshed,
		})
	}
}
