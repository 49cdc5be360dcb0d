// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the langsync project.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/store"
	"github.com/olegiv/ocms-langsync/internal/util"

	_ "github.com/mattn/go-sqlite3"
)

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a completely silent test logger (error level only).
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestDB creates a temporary test database with migrations applied.
// The database is closed when the test finishes.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "langsync-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	return db
}

// TestMemoryDB creates an in-memory SQLite database on the cgo driver.
// Migrations are not applied.
func TestMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// A second connection would see a different empty database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Languages maps language codes to the rows created by SeedLanguages.
type Languages map[string]store.Language

// ID returns the id of code, failing the test if it was not seeded.
func (l Languages) ID(t *testing.T, code string) int64 {
	t.Helper()
	lang, ok := l[code]
	if !ok {
		t.Fatalf("language %q was not seeded", code)
	}
	return lang.ID
}

// SeedLanguages creates active languages in order. The first code is the default.
func SeedLanguages(t *testing.T, db *sql.DB, codes ...string) Languages {
	t.Helper()

	q := store.New(db)
	ctx := context.Background()
	out := make(Languages, len(codes))
	now := time.Now()

	for i, code := range codes {
		seed := model.LookupLanguageSeed(code)
		lang, err := q.CreateLanguage(ctx, store.CreateLanguageParams{
			Code:       code,
			Name:       seed.Name,
			NativeName: seed.NativeName,
			Position:   int64(i),
			IsActive:   true,
			IsDefault:  i == 0,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			t.Fatalf("CreateLanguage(%s): %v", code, err)
		}
		out[code] = lang
	}
	return out
}

// CreateDocument inserts a live document of kind. A zero parentID makes it a root document.
func CreateDocument(t *testing.T, db *sql.DB, kind string, parentID int64) int64 {
	t.Helper()

	now := time.Now()
	doc, err := store.New(db).CreateDocument(context.Background(), store.CreateDocumentParams{
		Kind:        kind,
		ParentID:    util.NullID(parentID),
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateDocument(%s): %v", kind, err)
	}
	return doc.ID
}

// DefaultLanguageResolver reads languages straight from the database.
type DefaultLanguageResolver struct {
	Queries *store.Queries
}

// DefaultLanguageID implements translation.BaseLanguageResolver.
func (r DefaultLanguageResolver) DefaultLanguageID(ctx context.Context) (int64, error) {
	lang, err := r.Queries.GetDefaultLanguage(ctx)
	if err != nil {
		return 0, err
	}
	return lang.ID, nil
}

// List returns live languages, active ones only unless includeInactive.
func (r DefaultLanguageResolver) List(ctx context.Context, includeInactive bool) ([]store.Language, error) {
	if includeInactive {
		return r.Queries.ListLanguages(ctx)
	}
	return r.Queries.ListActiveLanguages(ctx)
}
