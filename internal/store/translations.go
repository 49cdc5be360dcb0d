// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// TranslationTable addresses one per-kind translation table. Every table has
// the same shape; only the translatable text columns differ.
type TranslationTable struct {
	name    string
	columns []string
	sel     string
}

// NewTranslationTable validates the identifiers and prepares the select list.
func NewTranslationTable(name string, columns []string) (*TranslationTable, error) {
	if !identRe.MatchString(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q has no translatable columns", name)
	}
	for _, c := range columns {
		if !identRe.MatchString(c) {
			return nil, fmt.Errorf("invalid column name %q in table %q", c, name)
		}
	}

	cols := append([]string(nil), columns...)
	sel := "t.id, t.document_id, t.language_id, t." + strings.Join(cols, ", t.") +
		", t.is_synced, t.created_at, t.updated_at"

	return &TranslationTable{name: name, columns: cols, sel: sel}, nil
}

// Name returns the table name.
func (t *TranslationTable) Name() string { return t.name }

// Columns returns the translatable column names.
func (t *TranslationTable) Columns() []string { return append([]string(nil), t.columns...) }

func (t *TranslationTable) scan(row interface{ Scan(...any) error }) (TranslationRow, error) {
	var r TranslationRow
	values := make([]string, len(t.columns))

	dest := make([]any, 0, len(t.columns)+6)
	dest = append(dest, &r.ID, &r.DocumentID, &r.LanguageID)
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &r.IsSynced, &r.CreatedAt, &r.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return TranslationRow{}, err
	}

	r.Fields = make(map[string]string, len(t.columns))
	for i, c := range t.columns {
		r.Fields[c] = values[i]
	}
	return r, nil
}

func (t *TranslationTable) query(ctx context.Context, db DBTX, where string, args ...any) ([]TranslationRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+t.sel+` FROM `+t.name+` t
		JOIN documents d ON d.id = t.document_id AND d.deleted_at IS NULL
		WHERE `+where+` ORDER BY t.document_id, t.language_id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []TranslationRow
	for rows.Next() {
		r, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (t *TranslationTable) values(fields map[string]string) []any {
	out := make([]any, len(t.columns))
	for i, c := range t.columns {
		out[i] = fields[c]
	}
	return out
}

func (t *TranslationTable) assignments() string {
	parts := make([]string, len(t.columns))
	for i, c := range t.columns {
		parts[i] = c + " = ?"
	}
	return strings.Join(parts, ", ")
}

// Get returns the row for (documentID, languageID).
func (t *TranslationTable) Get(ctx context.Context, db DBTX, documentID, languageID int64) (TranslationRow, error) {
	row := db.QueryRowContext(ctx, `SELECT `+t.sel+` FROM `+t.name+` t
		WHERE t.document_id = ? AND t.language_id = ?`, documentID, languageID)
	return t.scan(row)
}

// ListByDocument returns every row of a live document.
func (t *TranslationTable) ListByDocument(ctx context.Context, db DBTX, documentID int64) ([]TranslationRow, error) {
	return t.query(ctx, db, `t.document_id = ?`, documentID)
}

// ListSynced returns the synced rows of a live document, excluding one language.
func (t *TranslationTable) ListSynced(ctx context.Context, db DBTX, documentID, excludeLanguageID int64) ([]TranslationRow, error) {
	return t.query(ctx, db, `t.document_id = ? AND t.is_synced = 1 AND t.language_id <> ?`,
		documentID, excludeLanguageID)
}

// ListByLanguage returns the rows of every live document for one language.
func (t *TranslationTable) ListByLanguage(ctx context.Context, db DBTX, languageID int64) ([]TranslationRow, error) {
	return t.query(ctx, db, `t.language_id = ?`, languageID)
}

// InsertParams holds the values for Insert.
type InsertParams struct {
	DocumentID int64
	LanguageID int64
	Fields     map[string]string
	IsSynced   bool
	CreatedAt  time.Time
}

// Insert creates a row. A duplicate (document, language) pair violates the unique key.
func (t *TranslationTable) Insert(ctx context.Context, db DBTX, arg InsertParams) (TranslationRow, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")

	args := []any{arg.DocumentID, arg.LanguageID}
	args = append(args, t.values(arg.Fields)...)
	args = append(args, arg.IsSynced, arg.CreatedAt, arg.CreatedAt)

	_, err := db.ExecContext(ctx, `INSERT INTO `+t.name+`
		(document_id, language_id, `+strings.Join(t.columns, ", ")+`, is_synced, created_at, updated_at)
		VALUES (?, ?, `+placeholders+`, ?, ?, ?)`, args...)
	if err != nil {
		return TranslationRow{}, err
	}
	return t.Get(ctx, db, arg.DocumentID, arg.LanguageID)
}

// UpdateContentIfSynced overwrites the translatable columns of a synced row.
// The flag itself is never written. It returns the number of rows changed, which
// is 0 when the row is missing or has been diverged by an editor.
func (t *TranslationTable) UpdateContentIfSynced(ctx context.Context, db DBTX, documentID, languageID int64, fields map[string]string, updatedAt time.Time) (int64, error) {
	args := t.values(fields)
	args = append(args, updatedAt, documentID, languageID)

	res, err := db.ExecContext(ctx, `UPDATE `+t.name+` SET `+t.assignments()+`, updated_at = ?
		WHERE document_id = ? AND language_id = ? AND is_synced = 1`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateRowParams holds the values for UpdateRow.
type UpdateRowParams struct {
	DocumentID int64
	LanguageID int64
	Fields     map[string]string
	IsSynced   bool
	UpdatedAt  time.Time
}

// UpdateRow writes content and the sync flag together. Used by editor edits.
func (t *TranslationTable) UpdateRow(ctx context.Context, db DBTX, arg UpdateRowParams) error {
	args := t.values(arg.Fields)
	args = append(args, arg.IsSynced, arg.UpdatedAt, arg.DocumentID, arg.LanguageID)

	res, err := db.ExecContext(ctx, `UPDATE `+t.name+` SET `+t.assignments()+`, is_synced = ?, updated_at = ?
		WHERE document_id = ? AND language_id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetSyncedForLanguage changes the sync flag of every row of a language and
// returns the number of rows written. Content is left alone.
func (t *TranslationTable) SetSyncedForLanguage(ctx context.Context, db DBTX, languageID int64, synced bool, updatedAt time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `UPDATE `+t.name+` SET is_synced = ?, updated_at = ?
		WHERE language_id = ? AND is_synced <> ?`, synced, updatedAt, languageID, synced)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
