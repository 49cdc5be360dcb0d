// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package language

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-langsync/internal/apperr"
	"github.com/olegiv/ocms-langsync/internal/cache"
	"github.com/olegiv/ocms-langsync/internal/store"
	"github.com/olegiv/ocms-langsync/internal/testutil"
)

type recordingNotifier struct {
	mu  sync.Mutex
	ids []int64
}

func (n *recordingNotifier) Notify(_ context.Context, id int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, id)
	return nil
}

func (n *recordingNotifier) calls() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.ids...)
}

type recordingRebaser struct {
	mu       sync.Mutex
	changing []int64
	changed  []int64
	fail     error
}

func (h *recordingRebaser) DefaultChanging(_ context.Context, q *store.Queries, id int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if q == nil {
		return errors.New("no transaction")
	}
	h.changing = append(h.changing, id)
	return h.fail
}

func (h *recordingRebaser) DefaultChanged(_ context.Context, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changed = append(h.changed, id)
}

func newRegistry(t *testing.T) (*Registry, *recordingNotifier, *sql.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	c := cache.NewLanguageCache(store.New(db), 0)
	r := NewRegistry(db, c, nil, testutil.TestLoggerSilent())
	n := &recordingNotifier{}
	r.SetActivationNotifier(n)
	return r, n, db
}

func bootstrap(t *testing.T, r *Registry) {
	t.Helper()
	require.NoError(t, r.Bootstrap(context.Background(), []string{"ko", "en", "ja", "zh"}, "ko"))
}

func countDefaults(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	n, err := store.New(db).CountDefaultLanguages(context.Background())
	require.NoError(t, err)
	return n
}

func TestCanonicalCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"en", "en", false},
		{" EN ", "en", false},
		{"zh_Hant", "zh-hant", false},
		{"pt-BR", "pt-br", false},
		{"", "", true},
		{"not a code", "", true},
		{"und", "", true},
	}

	for _, tt := range tests {
		got, err := CanonicalCode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "CanonicalCode(%q)", tt.in)
			assert.True(t, apperr.IsKind(err, apperr.KindInvalidOperation))
			continue
		}
		require.NoError(t, err, "CanonicalCode(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestBootstrap_Idempotent(t *testing.T) {
	r, n, db := newRegistry(t)
	ctx := context.Background()

	bootstrap(t, r)
	bootstrap(t, r)

	all, err := r.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "ko", all[0].Code)
	assert.True(t, all[0].IsDefault)
	assert.Equal(t, int64(1), countDefaults(t, db))

	// Only the first run creates languages; the default needs no back-fill.
	assert.Len(t, n.calls(), 3)
}

func TestBootstrap_CorrectsDefault(t *testing.T) {
	r, _, db := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)

	require.NoError(t, r.Bootstrap(ctx, []string{"ko", "en", "ja", "zh"}, "en"))

	def, err := r.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, "en", def.Code)
	assert.Equal(t, int64(1), countDefaults(t, db))

	err = r.Bootstrap(ctx, []string{"ko"}, "fr")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidOperation))
}

func TestBootstrap_RestoresDeleted(t *testing.T) {
	r, n, _ := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)

	zh, err := store.New(r.db).GetLanguageByCode(ctx, "zh")
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, zh.ID))

	active, err := r.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	before := len(n.calls())
	bootstrap(t, r)

	got, err := r.Get(ctx, zh.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, []int64{zh.ID}, n.calls()[before:])
}

func TestCreate(t *testing.T) {
	r, n, _ := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)
	before := len(n.calls())

	lang, err := r.Create(ctx, CreateParams{Code: "DE", Active: false, CreatedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "de", lang.Code)
	assert.Equal(t, "German", lang.Name)
	assert.False(t, lang.IsDefault)
	assert.False(t, lang.IsActive)
	assert.Equal(t, int64(4), lang.Position)
	assert.Len(t, n.calls(), before, "inactive language must not trigger a back-fill")

	_, err = r.Create(ctx, CreateParams{Code: "de"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	fr, err := r.Create(ctx, CreateParams{Code: "fr", Name: "French (FR)", Active: true})
	require.NoError(t, err)
	assert.Equal(t, "French (FR)", fr.Name)
	assert.Equal(t, []int64{fr.ID}, n.calls()[before:])
}

func TestCreate_ConflictWithDeleted(t *testing.T) {
	r, _, _ := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)

	de, err := r.Create(ctx, CreateParams{Code: "de"})
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, de.ID))

	_, err = r.Create(ctx, CreateParams{Code: "de"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestSetActive(t *testing.T) {
	r, n, _ := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)
	ja := mustCode(t, r, "ja")
	before := len(n.calls())

	lang, err := r.SetActive(ctx, ja.ID, false, "admin")
	require.NoError(t, err)
	assert.False(t, lang.IsActive)

	// false→false is a no-op.
	_, err = r.SetActive(ctx, ja.ID, false, "admin")
	require.NoError(t, err)
	assert.Len(t, n.calls(), before)

	lang, err = r.SetActive(ctx, ja.ID, true, "admin")
	require.NoError(t, err)
	assert.True(t, lang.IsActive)
	assert.Equal(t, []int64{ja.ID}, n.calls()[before:])

	// true→true does not notify again.
	_, err = r.SetActive(ctx, ja.ID, true, "admin")
	require.NoError(t, err)
	assert.Len(t, n.calls(), before+1)

	_, err = r.SetActive(ctx, 9999, true, "admin")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSetActive_DefaultCannotBeDeactivated(t *testing.T) {
	r, _, _ := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)

	def, err := r.Default(ctx)
	require.NoError(t, err)

	_, err = r.SetActive(ctx, def.ID, false, "admin")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidOperation))

	got, err := r.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestSetDefault(t *testing.T) {
	r, _, db := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)
	en := mustCode(t, r, "en")
	ja := mustCode(t, r, "ja")

	lang, err := r.SetDefault(ctx, en.ID)
	require.NoError(t, err)
	assert.True(t, lang.IsDefault)
	assert.Equal(t, int64(1), countDefaults(t, db))

	id, err := r.DefaultLanguageID(ctx)
	require.NoError(t, err)
	assert.Equal(t, en.ID, id)

	_, err = r.SetActive(ctx, ja.ID, false, "")
	require.NoError(t, err)
	_, err = r.SetDefault(ctx, ja.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidOperation))

	_, err = r.SetDefault(ctx, 9999)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Equal(t, int64(1), countDefaults(t, db))
}

func TestSetDefault_NotifiesRebaser(t *testing.T) {
	r, _, _ := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)
	h := &recordingRebaser{}
	r.SetDefaultChangeHandler(h)
	en := mustCode(t, r, "en")

	_, err := r.SetDefault(ctx, en.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{en.ID}, h.changing)
	assert.Equal(t, []int64{en.ID}, h.changed)

	// Already the default: nothing moves.
	_, err = r.SetDefault(ctx, en.ID)
	require.NoError(t, err)
	assert.Len(t, h.changing, 1)
}

func TestSetDefault_RebaserFailureRollsBack(t *testing.T) {
	r, _, db := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)
	h := &recordingRebaser{fail: errors.New("rows locked")}
	r.SetDefaultChangeHandler(h)
	en := mustCode(t, r, "en")

	_, err := r.SetDefault(ctx, en.ID)
	require.Error(t, err)
	assert.Empty(t, h.changed)

	def, err := r.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ko", def.Code)
	assert.Equal(t, int64(1), countDefaults(t, db))
}

func TestBootstrap_CorrectionNotifiesRebaser(t *testing.T) {
	r, _, _ := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)
	h := &recordingRebaser{}
	r.SetDefaultChangeHandler(h)

	bootstrap(t, r)
	assert.Empty(t, h.changing, "a correct default is left alone")

	require.NoError(t, r.Bootstrap(ctx, []string{"ko", "en", "ja", "zh"}, "en"))
	en := mustCode(t, r, "en")
	assert.Equal(t, []int64{en.ID}, h.changing)
	assert.Equal(t, []int64{en.ID}, h.changed)
}

func TestDelete(t *testing.T) {
	r, _, _ := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)

	def, err := r.Default(ctx)
	require.NoError(t, err)
	assert.True(t, apperr.IsKind(r.Delete(ctx, def.ID), apperr.KindInvalidOperation))
	assert.True(t, apperr.IsKind(r.Delete(ctx, 9999), apperr.KindNotFound))

	en := mustCode(t, r, "en")
	require.NoError(t, r.Delete(ctx, en.ID))
	_, err = r.Get(ctx, en.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestList_Order(t *testing.T) {
	r, _, _ := newRegistry(t)
	ctx := context.Background()
	bootstrap(t, r)

	first := int64(-1)
	_, err := r.Create(ctx, CreateParams{Code: "vi", Position: &first, Active: true})
	require.NoError(t, err)
	_, err = r.Create(ctx, CreateParams{Code: "th", Active: false})
	require.NoError(t, err)

	active, err := r.List(ctx, false)
	require.NoError(t, err)
	var codes []string
	for _, l := range active {
		codes = append(codes, l.Code)
	}
	assert.Equal(t, []string{"vi", "ko", "en", "ja", "zh"}, codes)

	all, err := r.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Equal(t, "th", all[5].Code)
}

func TestDefault_NoneConfigured(t *testing.T) {
	r, _, _ := newRegistry(t)

	_, err := r.Default(context.Background())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func mustCode(t *testing.T, r *Registry, code string) store.Language {
	t.Helper()
	lang, err := store.New(r.db).GetLanguageByCode(context.Background(), code)
	require.NoError(t, err)
	return lang
}
