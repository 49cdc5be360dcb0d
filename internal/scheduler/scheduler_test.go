// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-langsync/internal/apperr"
	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/propagation"
	"github.com/olegiv/ocms-langsync/internal/reconcile"
	"github.com/olegiv/ocms-langsync/internal/service"
	"github.com/olegiv/ocms-langsync/internal/store"
	"github.com/olegiv/ocms-langsync/internal/testutil"
	"github.com/olegiv/ocms-langsync/internal/translation"
)

type fixture struct {
	db     *sql.DB
	cat    *translation.Catalogue
	langs  testutil.Languages
	events *service.EventService
	sched  *Scheduler
}

func newFixture(t *testing.T, cfg Config) fixture {
	t.Helper()
	db := testutil.TestDB(t)
	langs := testutil.SeedLanguages(t, db, "ko", "en")
	q := store.New(db)
	cat, err := translation.NewCatalogue(q, testutil.DefaultLanguageResolver{Queries: q}, translation.DefaultKinds())
	require.NoError(t, err)

	logger := testutil.TestLoggerSilent()
	events := service.NewEventService(db, logger)
	rec := reconcile.New(db, cat, propagation.NewEngine(cat, logger), testutil.DefaultLanguageResolver{Queries: q}, events, logger)
	sched := New(NewRegistry(db, logger), rec, events, cfg, logger)
	return fixture{db: db, cat: cat, langs: langs, events: events, sched: sched}
}

func (f fixture) stop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f.sched.Stop(ctx)
}

func TestStartRegistersBuiltInJobs(t *testing.T) {
	f := newFixture(t, Config{ReconcileSchedule: "@every 1h"})
	require.NoError(t, f.sched.Start())
	defer f.stop(t)

	jobs := f.sched.Registry().List()
	require.Len(t, jobs, 2)

	assert.Equal(t, JobEventCleanup, jobs[0].Name)
	assert.Equal(t, cleanupSchedule, jobs[0].Schedule)
	assert.Equal(t, JobReconcile, jobs[1].Name)
	assert.Equal(t, "@every 1h", jobs[1].Schedule)
	for _, job := range jobs {
		assert.Equal(t, SourceCore, job.Source)
		assert.True(t, job.CanTrigger)
		assert.False(t, job.NextRun.IsZero())
	}
}

func TestStartHonoursPersistedOverride(t *testing.T) {
	f := newFixture(t, Config{ReconcileSchedule: "@every 1h"})
	require.NoError(t, store.New(f.db).UpsertSchedulerOverride(context.Background(), store.UpsertSchedulerOverrideParams{
		Source:           SourceCore,
		Name:             JobReconcile,
		OverrideSchedule: "@every 5m",
	}))

	require.NoError(t, f.sched.Start())
	defer f.stop(t)

	for _, job := range f.sched.Registry().List() {
		if job.Name == JobReconcile {
			assert.Equal(t, "@every 5m", job.Schedule)
			assert.True(t, job.IsOverridden)
		}
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	f := newFixture(t, Config{ReconcileSchedule: "every now and then"})
	err := f.sched.Start()
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidOperation))
}

func TestTriggerReconcileCorrectsDrift(t *testing.T) {
	f := newFixture(t, Config{ReconcileSchedule: "@every 1h"})
	ctx := context.Background()

	adapter, err := f.cat.Get(model.KindBrochure)
	require.NoError(t, err)
	docID := testutil.CreateDocument(t, f.db, model.KindBrochure, 0)
	_, err = adapter.CreateTranslation(ctx, docID, f.langs.ID(t, "ko"), model.Fields{model.FieldTitle: "안내"}, false)
	require.NoError(t, err)
	_, err = adapter.CreateTranslation(ctx, docID, f.langs.ID(t, "en"), model.Fields{model.FieldTitle: "stale"}, true)
	require.NoError(t, err)

	require.NoError(t, f.sched.Start())
	require.NoError(t, f.sched.Registry().TriggerNow(SourceCore, JobReconcile))

	// Stop cancels in-flight passes, so wait for this one to finish first.
	q := store.New(f.db)
	require.Eventually(t, func() bool {
		runs, err := q.ListReconcileRuns(ctx, 10)
		return err == nil && len(runs) == 1 && runs[0].Status == store.RunStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	f.stop(t)

	row, err := adapter.GetTranslation(ctx, docID, f.langs.ID(t, "en"))
	require.NoError(t, err)
	assert.Equal(t, "안내", row.Fields[model.FieldTitle])
}

func TestCleanupDeletesExpiredEvents(t *testing.T) {
	f := newFixture(t, Config{ReconcileSchedule: "@every 1h", EventRetention: 24 * time.Hour})
	ctx := context.Background()
	q := store.New(f.db)

	for _, age := range []time.Duration{72 * time.Hour, time.Minute} {
		_, err := q.CreateEvent(ctx, store.CreateEventParams{
			Level:     model.EventLevelInfo,
			Category:  model.EventCategorySystem,
			Message:   "aged " + age.String(),
			Metadata:  "{}",
			CreatedAt: time.Now().Add(-age),
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.sched.Start())
	require.NoError(t, f.sched.Registry().TriggerNow(SourceCore, JobEventCleanup))
	f.stop(t)

	remaining, err := f.events.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "aged 1m0s", remaining[0].Message)
}

func TestStopWithoutStart(t *testing.T) {
	f := newFixture(t, Config{ReconcileSchedule: "@every 1h"})
	f.stop(t)
}
