// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package propagation copies base-language content into synced translations.
package propagation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/taskqueue"
	"github.com/olegiv/ocms-langsync/internal/translation"
)

// Engine fans base content out to synced rows. It is kind-agnostic.
type Engine struct {
	catalogue *translation.Catalogue
	pool      *taskqueue.Pool
	logger    *slog.Logger
}

// NewEngine creates a propagation engine.
func NewEngine(catalogue *translation.Catalogue, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalogue: catalogue,
		logger:    logger.With("category", model.EventCategoryPropagation),
	}
}

// SetPool enables Enqueue.
func (e *Engine) SetPool(pool *taskqueue.Pool) {
	e.pool = pool
}

// Propagate writes fields into every synced row of the document and then
// refreshes each nested sub-record from its own base row. Fields absent from
// fields keep their current value. A row failure never stops the batch; the
// returned error is a partial failure when any row failed.
func (e *Engine) Propagate(ctx context.Context, kind string, documentID int64, fields model.Fields) (Result, error) {
	adapter, err := e.catalogue.Get(kind)
	if err != nil {
		return Result{Kind: kind, DocumentID: documentID}, err
	}

	res := e.propagateDocument(ctx, adapter, documentID, fields)
	e.report(res)
	return res, res.Err()
}

// PropagateFromBase reads the document's current base row and propagates it.
func (e *Engine) PropagateFromBase(ctx context.Context, kind string, documentID int64) (Result, error) {
	adapter, err := e.catalogue.Get(kind)
	if err != nil {
		return Result{Kind: kind, DocumentID: documentID}, err
	}

	base, err := adapter.GetBaseTranslation(ctx, documentID)
	if err != nil {
		return Result{Kind: kind, DocumentID: documentID}, fmt.Errorf("reading base %s %d: %w", kind, documentID, err)
	}

	res := e.propagateDocument(ctx, adapter, documentID, base.Fields)
	e.report(res)
	return res, res.Err()
}

// PropagateRow refreshes one row from base. It reports whether the row was
// written; diverged and already-equal rows are left alone.
func (e *Engine) PropagateRow(ctx context.Context, kind string, documentID, languageID int64) (bool, error) {
	adapter, err := e.catalogue.Get(kind)
	if err != nil {
		return false, err
	}

	base, err := adapter.GetBaseTranslation(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("reading base %s %d: %w", kind, documentID, err)
	}
	if base.LanguageID == languageID {
		return false, nil
	}

	row, err := adapter.GetTranslation(ctx, documentID, languageID)
	if err != nil {
		return false, err
	}
	if !row.IsSynced {
		return false, nil
	}

	target := merged(row.Fields, base.Fields, adapter.Fields())
	if row.Fields.EqualOn(target, adapter.Fields()) {
		return false, nil
	}
	return adapter.UpsertTranslationContent(ctx, documentID, languageID, target)
}

// Enqueue runs PropagateFromBase on the task pool and returns immediately.
// The base row is read when the task runs, not when it is queued.
func (e *Engine) Enqueue(kind string, documentID int64) error {
	if e.pool == nil {
		return taskqueue.ErrNotRunning
	}
	return e.pool.Submit(taskqueue.Task{
		Name: fmt.Sprintf("propagate:%s:%d", kind, documentID),
		Run: func(ctx context.Context) error {
			_, err := e.PropagateFromBase(ctx, kind, documentID)
			return err
		},
	})
}

func (e *Engine) propagateDocument(ctx context.Context, adapter translation.Adapter, documentID int64, fields model.Fields) Result {
	res := e.propagateRows(ctx, adapter, documentID, fields)

	for _, nested := range adapter.Nested() {
		childIDs, err := nested.ListChildIDs(ctx, documentID)
		if err != nil {
			res.fail(nested.Adapter.Kind(), documentID, 0, err)
			continue
		}
		for _, childID := range childIDs {
			base, err := nested.Adapter.GetBaseTranslation(ctx, childID)
			if err != nil {
				res.fail(nested.Adapter.Kind(), childID, 0, fmt.Errorf("reading base row: %w", err))
				continue
			}
			res.Merge(e.propagateRows(ctx, nested.Adapter, childID, base.Fields))
		}
	}

	return res
}

// propagateRows handles one document's own rows. Rows are independent, so a
// failure is recorded and the loop moves on.
func (e *Engine) propagateRows(ctx context.Context, adapter translation.Adapter, documentID int64, fields model.Fields) Result {
	res := Result{Kind: adapter.Kind(), DocumentID: documentID}
	names := adapter.Fields()

	rows, err := adapter.ListSyncedTranslations(ctx, documentID)
	if err != nil {
		res.fail(adapter.Kind(), documentID, 0, err)
		return res
	}

	for _, row := range rows {
		target := merged(row.Fields, fields, names)
		if row.Fields.EqualOn(target, names) {
			res.Unchanged++
			continue
		}

		wrote, err := adapter.UpsertTranslationContent(ctx, documentID, row.LanguageID, target)
		switch {
		case err != nil:
			res.fail(adapter.Kind(), documentID, row.LanguageID, err)
			e.logger.Warn("translation row not propagated",
				"kind", adapter.Kind(),
				"document_id", documentID,
				"language_id", row.LanguageID,
				"error", err)
		case !wrote:
			res.Skipped++
		default:
			res.Succeeded++
		}
	}

	return res
}

func (e *Engine) report(res Result) {
	if res.Failed > 0 {
		e.logger.Warn("propagation partially failed",
			"kind", res.Kind,
			"document_id", res.DocumentID,
			"succeeded", res.Succeeded,
			"failed", res.Failed)
		return
	}
	e.logger.Debug("propagation finished",
		"kind", res.Kind,
		"document_id", res.DocumentID,
		"succeeded", res.Succeeded,
		"unchanged", res.Unchanged,
		"skipped", res.Skipped)
}

// merged overlays the translatable values present in base onto current.
func merged(current, base model.Fields, names []string) model.Fields {
	out := current.Pick(names)
	for _, n := range names {
		if v, ok := base[n]; ok {
			out[n] = v
		}
	}
	return out
}
