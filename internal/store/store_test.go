// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"
)

// testDB creates a temporary test database.
func testDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "langsync-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("Migrate: %v", err)
	}

	return db, func() { _ = db.Close() }
}

func createLanguage(t *testing.T, q *Queries, code string, active, isDefault bool) Language {
	t.Helper()
	now := time.Now()
	l, err := q.CreateLanguage(context.Background(), CreateLanguageParams{
		Code:      code,
		Name:      code,
		IsActive:  active,
		IsDefault: isDefault,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateLanguage(%s): %v", code, err)
	}
	return l
}

func TestCreateLanguage(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	q := New(db)
	l := createLanguage(t, q, "ko", true, true)

	if l.ID == 0 {
		t.Error("language.ID should not be 0")
	}
	if l.Code != "ko" {
		t.Errorf("Code = %q, want %q", l.Code, "ko")
	}
	if !l.IsDefault || !l.IsActive {
		t.Errorf("IsDefault = %v, IsActive = %v, want both true", l.IsDefault, l.IsActive)
	}
}

func TestCreateLanguage_DuplicateCode(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	q := New(db)
	createLanguage(t, q, "en", true, false)

	now := time.Now()
	_, err := q.CreateLanguage(context.Background(), CreateLanguageParams{
		Code: "en", Name: "English", CreatedAt: now, UpdatedAt: now,
	})
	if err == nil {
		t.Fatal("expected unique constraint error for duplicate code")
	}
}

func TestSingleDefaultIndex(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	q := New(db)
	createLanguage(t, q, "ko", true, true)

	now := time.Now()
	_, err := q.CreateLanguage(context.Background(), CreateLanguageParams{
		Code: "en", Name: "English", IsDefault: true, CreatedAt: now, UpdatedAt: now,
	})
	if err == nil {
		t.Fatal("expected second default language to be rejected")
	}
}

func TestMoveDefaultInTx(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	createLanguage(t, q, "ko", true, true)
	en := createLanguage(t, q, "en", false, false)

	err := RunInTx(ctx, db, func(tq *Queries) error {
		if err := tq.ClearDefaultLanguage(ctx, time.Now()); err != nil {
			return err
		}
		_, err := tq.MarkDefaultLanguage(ctx, en.ID, time.Now())
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	def, err := q.GetDefaultLanguage(ctx)
	if err != nil {
		t.Fatalf("GetDefaultLanguage: %v", err)
	}
	if def.ID != en.ID {
		t.Errorf("default = %q, want %q", def.Code, "en")
	}
	if !def.IsActive {
		t.Error("new default language should be active")
	}

	n, err := q.CountDefaultLanguages(ctx)
	if err != nil {
		t.Fatalf("CountDefaultLanguages: %v", err)
	}
	if n != 1 {
		t.Errorf("CountDefaultLanguages = %d, want 1", n)
	}
}

func TestListLanguagesOrder(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	now := time.Now()
	for i, code := range []string{"ja", "en", "ko"} {
		_, err := q.CreateLanguage(ctx, CreateLanguageParams{
			Code: code, Name: code, Position: int64(3 - i), IsActive: code != "ja",
			CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreateLanguage: %v", err)
		}
	}

	all, err := q.ListLanguages(ctx)
	if err != nil {
		t.Fatalf("ListLanguages: %v", err)
	}
	want := []string{"ko", "en", "ja"}
	for i, l := range all {
		if l.Code != want[i] {
			t.Errorf("ListLanguages[%d] = %q, want %q", i, l.Code, want[i])
		}
	}

	active, err := q.ListActiveLanguages(ctx)
	if err != nil {
		t.Fatalf("ListActiveLanguages: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("ListActiveLanguages returned %d, want 2", len(active))
	}
}

func TestSoftDeleteLanguage_SkipsDefault(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	ko := createLanguage(t, q, "ko", true, true)
	en := createLanguage(t, q, "en", true, false)

	n, err := q.SoftDeleteLanguage(ctx, ko.ID, time.Now())
	if err != nil {
		t.Fatalf("SoftDeleteLanguage: %v", err)
	}
	if n != 0 {
		t.Error("default language must not be soft-deleted")
	}

	if _, err := q.SoftDeleteLanguage(ctx, en.ID, time.Now()); err != nil {
		t.Fatalf("SoftDeleteLanguage: %v", err)
	}
	if _, err := q.GetLanguage(ctx, en.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetLanguage after delete: got %v, want sql.ErrNoRows", err)
	}

	exists, err := q.LanguageCodeExists(ctx, "en")
	if err != nil {
		t.Fatalf("LanguageCodeExists: %v", err)
	}
	if !exists {
		t.Error("soft-deleted code should still count as existing")
	}
}

func TestSetLanguageActive_NotFound(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	_, err := New(db).SetLanguageActive(context.Background(), SetLanguageActiveParams{
		ID: 999, IsActive: true, UpdatedAt: time.Now(),
	})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDocuments(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	now := time.Now()

	meeting, err := q.CreateDocument(ctx, CreateDocumentParams{Kind: "shareholders_meeting", CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	for i := 0; i < 2; i++ {
		_, err := q.CreateDocument(ctx, CreateDocumentParams{
			Kind: "vote_result", ParentID: sql.NullInt64{Int64: meeting.ID, Valid: true},
			Position: int64(i), CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreateDocument(child): %v", err)
		}
	}

	children, err := q.ListChildDocumentIDs(ctx, ListChildDocumentIDsParams{ParentID: meeting.ID, Kind: "vote_result"})
	if err != nil {
		t.Fatalf("ListChildDocumentIDs: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}

	n, err := q.SoftDeleteDocument(ctx, meeting.ID, now)
	if err != nil {
		t.Fatalf("SoftDeleteDocument: %v", err)
	}
	if n != 3 {
		t.Errorf("SoftDeleteDocument affected %d rows, want 3", n)
	}

	ids, err := q.ListDocumentIDsByKind(ctx, "shareholders_meeting")
	if err != nil {
		t.Fatalf("ListDocumentIDsByKind: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("deleted documents listed: %v", ids)
	}
}

func TestNewTranslationTable_RejectsBadIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		columns []string
	}{
		{"injection in table", "x; DROP TABLE languages", []string{"title"}},
		{"bad column", "brochure_translations", []string{"title--"}},
		{"no columns", "brochure_translations", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTranslationTable(tt.table, tt.columns); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTranslationTable(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	now := time.Now()

	ko := createLanguage(t, q, "ko", true, true)
	en := createLanguage(t, q, "en", true, false)
	zh := createLanguage(t, q, "zh", true, false)

	doc, err := q.CreateDocument(ctx, CreateDocumentParams{Kind: "brochure", CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	tbl, err := NewTranslationTable("brochure_translations", []string{"title", "description"})
	if err != nil {
		t.Fatalf("NewTranslationTable: %v", err)
	}

	base := map[string]string{"title": "신제품", "description": "설명"}
	if _, err := tbl.Insert(ctx, db, InsertParams{DocumentID: doc.ID, LanguageID: ko.ID, Fields: base, CreatedAt: now}); err != nil {
		t.Fatalf("Insert(ko): %v", err)
	}
	if _, err := tbl.Insert(ctx, db, InsertParams{DocumentID: doc.ID, LanguageID: en.ID, Fields: base, IsSynced: true, CreatedAt: now}); err != nil {
		t.Fatalf("Insert(en): %v", err)
	}
	if _, err := tbl.Insert(ctx, db, InsertParams{DocumentID: doc.ID, LanguageID: zh.ID, Fields: map[string]string{"title": "新产品"}, CreatedAt: now}); err != nil {
		t.Fatalf("Insert(zh): %v", err)
	}

	if _, err := tbl.Insert(ctx, db, InsertParams{DocumentID: doc.ID, LanguageID: en.ID, Fields: base, CreatedAt: now}); err == nil {
		t.Error("duplicate (document, language) insert should fail")
	}

	synced, err := tbl.ListSynced(ctx, db, doc.ID, ko.ID)
	if err != nil {
		t.Fatalf("ListSynced: %v", err)
	}
	if len(synced) != 1 || synced[0].LanguageID != en.ID {
		t.Fatalf("ListSynced = %+v, want only en", synced)
	}

	changed := map[string]string{"title": "새 제목", "description": "새 설명"}
	n, err := tbl.UpdateContentIfSynced(ctx, db, doc.ID, en.ID, changed, now)
	if err != nil {
		t.Fatalf("UpdateContentIfSynced(en): %v", err)
	}
	if n != 1 {
		t.Errorf("UpdateContentIfSynced(en) = %d, want 1", n)
	}

	n, err = tbl.UpdateContentIfSynced(ctx, db, doc.ID, zh.ID, changed, now)
	if err != nil {
		t.Fatalf("UpdateContentIfSynced(zh): %v", err)
	}
	if n != 0 {
		t.Error("diverged row must not be overwritten")
	}

	row, err := tbl.Get(ctx, db, doc.ID, zh.ID)
	if err != nil {
		t.Fatalf("Get(zh): %v", err)
	}
	if row.Fields["title"] != "新产品" {
		t.Errorf("zh title = %q, want %q", row.Fields["title"], "新产品")
	}

	row, err = tbl.Get(ctx, db, doc.ID, en.ID)
	if err != nil {
		t.Fatalf("Get(en): %v", err)
	}
	if row.Fields["title"] != "새 제목" || !row.IsSynced {
		t.Errorf("en row = %+v, want updated and still synced", row)
	}

	if err := tbl.UpdateRow(ctx, db, UpdateRowParams{DocumentID: doc.ID, LanguageID: en.ID, Fields: changed, IsSynced: false, UpdatedAt: now}); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}
	synced, err = tbl.ListSynced(ctx, db, doc.ID, ko.ID)
	if err != nil {
		t.Fatalf("ListSynced: %v", err)
	}
	if len(synced) != 0 {
		t.Errorf("ListSynced after divergence = %d rows, want 0", len(synced))
	}

	byLang, err := tbl.ListByLanguage(ctx, db, zh.ID)
	if err != nil {
		t.Fatalf("ListByLanguage: %v", err)
	}
	if len(byLang) != 1 {
		t.Errorf("ListByLanguage = %d rows, want 1", len(byLang))
	}

	n, err = tbl.SetSyncedForLanguage(ctx, db, zh.ID, true, now)
	if err != nil {
		t.Fatalf("SetSyncedForLanguage(true): %v", err)
	}
	if n != 1 {
		t.Errorf("SetSyncedForLanguage(true) changed %d rows, want 1", n)
	}
	n, err = tbl.SetSyncedForLanguage(ctx, db, zh.ID, false, now)
	if err != nil {
		t.Fatalf("SetSyncedForLanguage(false): %v", err)
	}
	if n != 1 {
		t.Errorf("SetSyncedForLanguage(false) changed %d rows, want 1", n)
	}
	row, err = tbl.Get(ctx, db, doc.ID, zh.ID)
	if err != nil {
		t.Fatalf("Get(zh): %v", err)
	}
	if row.IsSynced || row.Fields["title"] != "新产品" {
		t.Errorf("zh row = %+v, want diverged with content kept", row)
	}
	if n, _ := tbl.SetSyncedForLanguage(ctx, db, zh.ID, false, now); n != 0 {
		t.Errorf("repeated SetSyncedForLanguage changed %d rows, want 0", n)
	}
}

func TestSchedulerOverrides(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	if _, err := q.GetSchedulerOverride(ctx, GetSchedulerOverrideParams{Source: "core", Name: "reconcile"}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}

	for _, s := range []string{"@every 5m", "@every 10m"} {
		if err := q.UpsertSchedulerOverride(ctx, UpsertSchedulerOverrideParams{Source: "core", Name: "reconcile", OverrideSchedule: s}); err != nil {
			t.Fatalf("UpsertSchedulerOverride: %v", err)
		}
	}

	got, err := q.GetSchedulerOverride(ctx, GetSchedulerOverrideParams{Source: "core", Name: "reconcile"})
	if err != nil {
		t.Fatalf("GetSchedulerOverride: %v", err)
	}
	if got != "@every 10m" {
		t.Errorf("override = %q, want %q", got, "@every 10m")
	}

	if err := q.DeleteSchedulerOverride(ctx, DeleteSchedulerOverrideParams{Source: "core", Name: "reconcile"}); err != nil {
		t.Fatalf("DeleteSchedulerOverride: %v", err)
	}
}

func TestReconcileRuns(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	if err := q.CreateReconcileRun(ctx, "run-1", time.Now()); err != nil {
		t.Fatalf("CreateReconcileRun: %v", err)
	}
	err := q.FinishReconcileRun(ctx, FinishReconcileRunParams{
		RunID: "run-1", Status: RunStatusCompleted, Scanned: 3, Corrected: 1, Created: 2, FinishedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("FinishReconcileRun: %v", err)
	}

	runs, err := q.ListReconcileRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListReconcileRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Status != RunStatusCompleted || runs[0].Corrected != 1 || runs[0].Created != 2 || !runs[0].FinishedAt.Valid {
		t.Errorf("run = %+v", runs[0])
	}

	if err := q.FinishReconcileRun(ctx, FinishReconcileRunParams{RunID: "missing", Status: RunStatusCompleted}); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("FinishReconcileRun(missing): got %v, want sql.ErrNoRows", err)
	}
}

func TestEvents(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	if _, err := q.CreateEvent(ctx, CreateEventParams{
		Level: "warning", Category: "propagation", Message: "row failed", Metadata: "{}", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	events, err := q.ListRecentEvents(ctx, 5)
	if err != nil {
		t.Fatalf("ListRecentEvents: %v", err)
	}
	if len(events) != 1 || events[0].Category != "propagation" {
		t.Errorf("events = %+v", events)
	}
}
