// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package reconcile

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-langsync/internal/lock"
	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/propagation"
	"github.com/olegiv/ocms-langsync/internal/store"
	"github.com/olegiv/ocms-langsync/internal/testutil"
	"github.com/olegiv/ocms-langsync/internal/translation"
)

type env struct {
	db    *sql.DB
	cat   *translation.Catalogue
	langs testutil.Languages
	rec   *Reconciler
}

func newEnv(t *testing.T) env {
	t.Helper()
	db := testutil.TestDB(t)
	langs := testutil.SeedLanguages(t, db, "ko", "en", "ja", "zh")
	q := store.New(db)
	cat, err := translation.NewCatalogue(q, testutil.DefaultLanguageResolver{Queries: q}, translation.DefaultKinds())
	require.NoError(t, err)
	logger := testutil.TestLoggerSilent()
	rec := New(db, cat, propagation.NewEngine(cat, logger), testutil.DefaultLanguageResolver{Queries: q}, nil, logger)
	return env{db: db, cat: cat, langs: langs, rec: rec}
}

func (e env) adapter(t *testing.T, kind string) translation.Adapter {
	t.Helper()
	a, err := e.cat.Get(kind)
	require.NoError(t, err)
	return a
}

// seed creates a document whose en/ja rows are synced and zh row is diverged.
func (e env) seed(t *testing.T, kind string, title string) int64 {
	t.Helper()
	ctx := context.Background()
	a := e.adapter(t, kind)
	docID := testutil.CreateDocument(t, e.db, kind, 0)
	fields := model.Fields{model.FieldTitle: title}

	_, err := a.CreateTranslation(ctx, docID, e.langs.ID(t, "ko"), fields, false)
	require.NoError(t, err)
	for _, code := range []string{"en", "ja"} {
		_, err = a.CreateTranslation(ctx, docID, e.langs.ID(t, code), fields, true)
		require.NoError(t, err)
	}
	_, err = a.CreateTranslation(ctx, docID, e.langs.ID(t, "zh"), model.Fields{model.FieldTitle: "编辑"}, false)
	require.NoError(t, err)
	return docID
}

// drift rewrites a row behind the engine's back, as a missed propagation would leave it.
func (e env) drift(t *testing.T, table string, docID, langID int64, title string) {
	t.Helper()
	_, err := e.db.Exec(`UPDATE `+table+` SET title = ? WHERE document_id = ? AND language_id = ?`,
		title, docID, langID)
	require.NoError(t, err)
}

func (e env) title(t *testing.T, kind string, docID int64, code string) string {
	t.Helper()
	row, err := e.adapter(t, kind).GetTranslation(context.Background(), docID, e.langs.ID(t, code))
	require.NoError(t, err)
	return row.Fields[model.FieldTitle]
}

func TestRunOnce_Convergence(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	brochure := e.seed(t, model.KindBrochure, "브로슈어")
	news := e.seed(t, model.KindNews, "뉴스")

	e.drift(t, "brochure_translations", brochure, e.langs.ID(t, "en"), "stale")
	e.drift(t, "news_translations", news, e.langs.ID(t, "ja"), "stale")

	summary, err := e.rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 2, summary.Corrected)
	assert.Equal(t, 2, summary.Unchanged)
	assert.Zero(t, summary.Created)
	assert.Zero(t, summary.Failed)
	assert.False(t, summary.Interrupted)
	assert.NotEmpty(t, summary.RunID)

	assert.Equal(t, "브로슈어", e.title(t, model.KindBrochure, brochure, "en"))
	assert.Equal(t, "뉴스", e.title(t, model.KindNews, news, "ja"))

	// Converged: the next pass corrects nothing.
	again, err := e.rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Corrected)

	runs, err := e.rec.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, store.RunStatusCompleted, runs[1].Status)
	assert.Equal(t, int64(2), runs[1].Corrected)
	assert.True(t, runs[1].FinishedAt.Valid)
}

func TestRunOnce_DivergenceFreeze(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	docID := e.seed(t, model.KindIR, "IR 자료")

	_, err := e.rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "编辑", e.title(t, model.KindIR, docID, "zh"))
}

func TestRunOnce_ReassertedSync(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	docID := e.seed(t, model.KindIR, "IR 자료")
	zh := e.langs.ID(t, "zh")

	_, err := e.adapter(t, model.KindIR).UpdateTranslation(ctx, docID, zh, model.Fields{model.FieldTitle: "编辑"}, true)
	require.NoError(t, err)

	summary, err := e.rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Corrected)
	assert.Equal(t, "IR 자료", e.title(t, model.KindIR, docID, "zh"))
}

func TestRunOnce_SkipsBrokenDocuments(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.CreateDocument(t, e.db, model.KindBrochure, 0) // no base row
	good := e.seed(t, model.KindBrochure, "정상")
	e.drift(t, "brochure_translations", good, e.langs.ID(t, "en"), "stale")

	summary, err := e.rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Corrected)
	assert.Equal(t, "정상", e.title(t, model.KindBrochure, good, "en"))
}

func TestRunOnce_NestedSubRecords(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	meeting := e.seed(t, model.KindShareholdersMeeting, "주주총회")

	vote := testutil.CreateDocument(t, e.db, model.KindVoteResult, meeting)
	a := e.adapter(t, model.KindVoteResult)
	_, err := a.CreateTranslation(ctx, vote, e.langs.ID(t, "ko"), model.Fields{model.FieldTitle: "의안"}, false)
	require.NoError(t, err)
	_, err = a.CreateTranslation(ctx, vote, e.langs.ID(t, "en"), model.Fields{model.FieldTitle: "stale"}, true)
	require.NoError(t, err)

	summary, err := e.rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.Corrected)
	assert.Equal(t, 2, summary.Created, "ja and zh rows of the vote result")
	assert.Equal(t, "의안", e.title(t, model.KindVoteResult, vote, "en"))
	assert.Equal(t, "의안", e.title(t, model.KindVoteResult, vote, "zh"))
}

func TestRunOnce_OverlapGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.rec.running.Store(true)
	_, err := e.rec.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)
	e.rec.running.Store(false)

	locker := lock.NewMemoryLocker()
	e.rec.SetLocker(locker, time.Minute)
	held, ok, err := locker.TryAcquire(ctx, lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = e.rec.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.False(t, e.rec.Running())

	require.NoError(t, held.Release(ctx))
	_, err = e.rec.RunOnce(ctx)
	assert.NoError(t, err)

	// The lease is released after the pass.
	_, ok, err = locker.TryAcquire(ctx, lockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunOnce_Interrupted(t *testing.T) {
	e := newEnv(t)
	e.seed(t, model.KindBrochure, "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := e.rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Zero(t, summary.Scanned)

	runs, err := e.rec.Runs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunStatusInterrupted, runs[0].Status)
}

func TestRunOnce_CreatesMissingRows(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := store.New(e.db)
	ja := e.langs.ID(t, "ja")

	// ja was activated while nothing listened, so its rows were never back-filled.
	docID := e.seed(t, model.KindNews, "뉴스")
	_, err := e.db.Exec(`DELETE FROM news_translations WHERE document_id = ? AND language_id = ?`, docID, ja)
	require.NoError(t, err)

	_, err = q.SetLanguageActive(ctx, store.SetLanguageActiveParams{ID: e.langs.ID(t, "zh"), IsActive: false, UpdatedAt: time.Now()})
	require.NoError(t, err)
	bare := testutil.CreateDocument(t, e.db, model.KindNews, 0)
	_, err = e.adapter(t, model.KindNews).CreateTranslation(ctx, bare, e.langs.ID(t, "ko"), model.Fields{model.FieldTitle: "새 글"}, false)
	require.NoError(t, err)

	summary, err := e.rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Created, "ja for both documents and en for the bare one")
	assert.Zero(t, summary.Failed)

	row, err := e.adapter(t, model.KindNews).GetTranslation(ctx, docID, ja)
	require.NoError(t, err)
	assert.True(t, row.IsSynced)
	assert.Equal(t, "뉴스", row.Fields[model.FieldTitle])

	_, err = e.adapter(t, model.KindNews).GetTranslation(ctx, bare, e.langs.ID(t, "zh"))
	assert.Error(t, err, "inactive languages are not filled")

	runs, err := e.rec.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(3), runs[0].Created)

	again, err := e.rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Created)
}

func TestRunOnce_RenewsLease(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	locker := lock.NewMemoryLocker()
	ttl := 300 * time.Millisecond
	e.rec.SetLocker(locker, ttl)

	lease, ok, err := locker.TryAcquire(ctx, lockKey, ttl)
	require.NoError(t, err)
	require.True(t, ok)

	stop := e.rec.keepAlive(lease)
	time.Sleep(3 * ttl)
	_, ok, err = locker.TryAcquire(ctx, lockKey, ttl)
	require.NoError(t, err)
	assert.False(t, ok, "a renewed lease outlives its TTL")

	stop()
	require.NoError(t, lease.Release(ctx))
	_, ok, err = locker.TryAcquire(ctx, lockKey, ttl)
	require.NoError(t, err)
	assert.True(t, ok)
}
