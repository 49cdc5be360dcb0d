// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package reconcile re-synchronises synced translations that drifted from base
// and creates the rows an active language is still missing.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-langsync/internal/apperr"
	"github.com/olegiv/ocms-langsync/internal/lock"
	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/propagation"
	"github.com/olegiv/ocms-langsync/internal/service"
	"github.com/olegiv/ocms-langsync/internal/store"
	"github.com/olegiv/ocms-langsync/internal/translation"
)

// ErrRunInProgress is returned when another pass holds the run guard.
var ErrRunInProgress = errors.New("reconcile run already in progress")

const lockKey = "reconcile"

// Summary describes one pass.
type Summary struct {
	RunID       string        `json:"run_id"`
	Scanned     int           `json:"scanned"`   // documents, sub-records included
	Corrected   int           `json:"corrected"` // rows rewritten
	Created     int           `json:"created"`   // missing rows materialised from base
	Unchanged   int           `json:"unchanged"`
	Failed      int           `json:"failed"`
	Interrupted bool          `json:"interrupted"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// LanguageLister returns live languages. language.Registry implements it.
type LanguageLister interface {
	List(ctx context.Context, includeInactive bool) ([]store.Language, error)
}

// Reconciler is the periodic consistency backstop. One pass runs at a time.
type Reconciler struct {
	catalogue *translation.Catalogue
	engine    *propagation.Engine
	languages LanguageLister
	queries   *store.Queries
	events    *service.EventService
	logger    *slog.Logger

	locker  lock.Locker
	lockTTL time.Duration
	running atomic.Bool
	now     func() time.Time
}

// New creates a reconciler guarded by an in-process flag.
func New(db *sql.DB, catalogue *translation.Catalogue, engine *propagation.Engine, languages LanguageLister,
	events *service.EventService, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		catalogue: catalogue,
		engine:    engine,
		languages: languages,
		queries:   store.New(db),
		events:    events,
		logger:    logger.With("category", model.EventCategoryReconcile),
		now:       time.Now,
	}
}

// SetLocker adds a leased lock so that only one instance reconciles at a time.
func (r *Reconciler) SetLocker(l lock.Locker, ttl time.Duration) {
	r.locker = l
	r.lockTTL = ttl
}

// Running reports whether a pass is in flight in this process.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// RunOnce scans every document, creates synced rows for active languages that
// lack one and rewrites drifted synced rows. A document failure is counted and
// skipped. Cancelling ctx stops the pass between
// documents, never inside one.
func (r *Reconciler) RunOnce(ctx context.Context) (Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug("reconcile skipped, previous pass still running")
		return Summary{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	if r.locker != nil {
		lease, ok, err := r.locker.TryAcquire(ctx, lockKey, r.lockTTL)
		if err != nil {
			return Summary{}, err
		}
		if !ok {
			r.logger.Debug("reconcile skipped, another instance holds the lock")
			return Summary{}, ErrRunInProgress
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("failed to release reconcile lock", "error", err)
			}
		}()
		defer r.keepAlive(lease)()
	}

	summary := Summary{RunID: uuid.NewString(), StartedAt: r.now()}
	work := context.WithoutCancel(ctx)

	if err := r.queries.CreateReconcileRun(work, summary.RunID, summary.StartedAt); err != nil {
		r.logger.Warn("failed to record reconcile run", "run_id", summary.RunID, "error", err)
	}

	plan := r.planFill(work)

scan:
	for _, adapter := range r.catalogue.All() {
		ids, err := adapter.ListDocumentIDs(work)
		if err != nil {
			r.logger.Warn("listing documents failed", "kind", adapter.Kind(), "error", err)
			summary.Failed++
			continue
		}

		for _, docID := range ids {
			if ctx.Err() != nil {
				summary.Interrupted = true
				break scan
			}
			r.reconcileDocument(work, adapter, docID, plan, &summary)
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	r.finish(work, summary)
	return summary, nil
}

func (r *Reconciler) reconcileDocument(ctx context.Context, adapter translation.Adapter, documentID int64, plan fillPlan, summary *Summary) {
	summary.Scanned++
	r.fillMissing(ctx, adapter, documentID, plan, summary)
	for _, nested := range adapter.Nested() {
		ids, err := nested.ListChildIDs(ctx, documentID)
		if err != nil {
			continue
		}
		summary.Scanned += len(ids)
		for _, id := range ids {
			r.fillMissing(ctx, nested.Adapter, id, plan, summary)
		}
	}

	res, err := r.engine.PropagateFromBase(ctx, adapter.Kind(), documentID)
	summary.Corrected += res.Succeeded
	summary.Unchanged += res.Unchanged
	switch {
	case err == nil:
	case apperr.IsKind(err, apperr.KindPartialFailure):
		summary.Failed += res.Failed
	default:
		// Typically a document whose base row has not been written yet.
		r.logger.Debug("document skipped", "kind", adapter.Kind(), "document_id", documentID, "error", err)
		summary.Failed++
	}
}

// fillPlan holds the base language and the active languages every
// document must have a row for.
type fillPlan struct {
	baseID    int64
	languages []int64
}

func (r *Reconciler) planFill(ctx context.Context) fillPlan {
	var t fillPlan
	if r.languages == nil {
		return t
	}
	langs, err := r.languages.List(ctx, false)
	if err != nil {
		r.logger.Warn("listing active languages failed, missing rows are not created", "error", err)
		return t
	}
	for _, l := range langs {
		if l.IsDefault {
			t.baseID = l.ID
			continue
		}
		t.languages = append(t.languages, l.ID)
	}
	if t.baseID == 0 {
		t.languages = nil
	}
	return t
}

// fillMissing creates a synced copy of the base row for every target language
// the document has no row for. A document without a base row is left to the
// propagation step, which reports it.
func (r *Reconciler) fillMissing(ctx context.Context, adapter translation.Adapter, documentID int64, plan fillPlan, summary *Summary) {
	if len(plan.languages) == 0 {
		return
	}
	rows, err := adapter.ListTranslations(ctx, documentID)
	if err != nil {
		r.logger.Debug("listing rows failed", "kind", adapter.Kind(), "document_id", documentID, "error", err)
		return
	}

	have := make(map[int64]model.Translation, len(rows))
	for _, row := range rows {
		have[row.LanguageID] = row
	}
	base, ok := have[plan.baseID]
	if !ok {
		return
	}

	for _, langID := range plan.languages {
		if _, ok := have[langID]; ok {
			continue
		}
		_, err := adapter.CreateTranslation(ctx, documentID, langID, base.Fields, true)
		switch {
		case err == nil:
			summary.Created++
		case apperr.IsKind(err, apperr.KindConflict):
			// Created concurrently by a back-fill.
		default:
			r.logger.Warn("creating missing row failed",
				"kind", adapter.Kind(), "document_id", documentID, "language_id", langID, "error", err)
			summary.Failed++
		}
	}
}

// keepAlive renews lease every third of its TTL until the returned stop
// function is called.
func (r *Reconciler) keepAlive(lease lock.Lease) (stop func()) {
	interval := r.lockTTL / 3
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				err := lease.Extend(context.Background(), r.lockTTL)
				if err == nil {
					continue
				}
				r.logger.Warn("failed to renew reconcile lock", "error", err)
				if errors.Is(err, lock.ErrLeaseLost) {
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (r *Reconciler) finish(ctx context.Context, summary Summary) {
	status := store.RunStatusCompleted
	if summary.Interrupted {
		status = store.RunStatusInterrupted
	}

	if err := r.queries.FinishReconcileRun(ctx, store.FinishReconcileRunParams{
		RunID:      summary.RunID,
		Status:     status,
		Scanned:    int64(summary.Scanned),
		Corrected:  int64(summary.Corrected),
		Created:    int64(summary.Created),
		Failed:     int64(summary.Failed),
		FinishedAt: r.now(),
	}); err != nil {
		r.logger.Warn("failed to finish reconcile run", "run_id", summary.RunID, "error", err)
	}

	attrs := []any{
		"run_id", summary.RunID,
		"scanned", summary.Scanned,
		"corrected", summary.Corrected,
		"created", summary.Created,
		"failed", summary.Failed,
		"interrupted", summary.Interrupted,
		"duration", summary.Duration,
	}
	switch {
	case summary.Failed > 0 || summary.Interrupted:
		r.logger.Warn("reconcile pass finished with problems", attrs...)
	case summary.Corrected > 0 || summary.Created > 0:
		r.logger.Info("reconcile pass corrected drift", attrs...)
		if r.events != nil {
			_ = r.events.LogReconcileEvent(ctx, model.EventLevelInfo, "reconcile pass corrected drift", map[string]any{
				"run_id":    summary.RunID,
				"scanned":   summary.Scanned,
				"corrected": summary.Corrected,
				"created":   summary.Created,
			})
		}
	default:
		r.logger.Info("reconcile pass finished", attrs...)
	}
}

// Runs returns recent passes, newest first.
func (r *Reconciler) Runs(ctx context.Context, limit int64) ([]store.ReconcileRun, error) {
	return r.queries.ListReconcileRuns(ctx, limit)
}
