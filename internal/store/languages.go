// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const languageColumns = `id, code, name, native_name, position, is_active, is_default,
	created_by, updated_by, created_at, updated_at, deleted_at`

func scanLanguage(row interface{ Scan(...any) error }) (Language, error) {
	var l Language
	err := row.Scan(
		&l.ID, &l.Code, &l.Name, &l.NativeName, &l.Position, &l.IsActive, &l.IsDefault,
		&l.CreatedBy, &l.UpdatedBy, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
	)
	return l, err
}

func (q *Queries) queryLanguages(ctx context.Context, query string, args ...any) ([]Language, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Language
	for rows.Next() {
		l, err := scanLanguage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

// CreateLanguageParams holds the values for CreateLanguage.
type CreateLanguageParams struct {
	Code       string
	Name       string
	NativeName string
	Position   int64
	IsActive   bool
	IsDefault  bool
	CreatedBy  sql.NullString
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateLanguage inserts a language row.
func (q *Queries) CreateLanguage(ctx context.Context, arg CreateLanguageParams) (Language, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO languages (code, name, native_name, position, is_active, is_default,
			created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Code, arg.Name, arg.NativeName, arg.Position, arg.IsActive, arg.IsDefault,
		arg.CreatedBy, arg.CreatedBy, arg.CreatedAt, arg.UpdatedAt,
	)
	if err != nil {
		return Language{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Language{}, err
	}
	return q.GetLanguage(ctx, id)
}

// GetLanguage returns a live language by id.
func (q *Queries) GetLanguage(ctx context.Context, id int64) (Language, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+languageColumns+` FROM languages WHERE id = ? AND deleted_at IS NULL`, id)
	return scanLanguage(row)
}

// GetLanguageByCode returns a language by code, including soft-deleted rows.
func (q *Queries) GetLanguageByCode(ctx context.Context, code string) (Language, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+languageColumns+` FROM languages WHERE code = ?`, code)
	return scanLanguage(row)
}

// LanguageCodeExists reports whether any row, live or soft-deleted, uses code.
func (q *Queries) LanguageCodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM languages WHERE code = ?`, code).Scan(&n)
	return n > 0, err
}

// GetDefaultLanguage returns the live default language.
func (q *Queries) GetDefaultLanguage(ctx context.Context) (Language, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+languageColumns+` FROM languages WHERE is_default = 1 AND deleted_at IS NULL`)
	return scanLanguage(row)
}

// ListLanguages returns all live languages ordered for display.
func (q *Queries) ListLanguages(ctx context.Context) ([]Language, error) {
	return q.queryLanguages(ctx, `SELECT `+languageColumns+` FROM languages
		WHERE deleted_at IS NULL
		ORDER BY position ASC, created_at ASC, id ASC`)
}

// ListActiveLanguages returns live, active languages ordered for display.
func (q *Queries) ListActiveLanguages(ctx context.Context) ([]Language, error) {
	return q.queryLanguages(ctx, `SELECT `+languageColumns+` FROM languages
		WHERE deleted_at IS NULL AND is_active = 1
		ORDER BY position ASC, created_at ASC, id ASC`)
}

// CountDefaultLanguages counts live languages flagged as default.
func (q *Queries) CountDefaultLanguages(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM languages WHERE is_default = 1 AND deleted_at IS NULL`).Scan(&n)
	return n, err
}

// GetMaxLanguagePosition returns the highest position in use, or 0.
func (q *Queries) GetMaxLanguagePosition(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM languages WHERE deleted_at IS NULL`).Scan(&n)
	return n, err
}

// SetLanguageActiveParams holds the values for SetLanguageActive.
type SetLanguageActiveParams struct {
	ID        int64
	IsActive  bool
	UpdatedBy sql.NullString
	UpdatedAt time.Time
}

// SetLanguageActive updates the active flag of a live language.
func (q *Queries) SetLanguageActive(ctx context.Context, arg SetLanguageActiveParams) (Language, error) {
	if err := q.execOne(ctx, `
		UPDATE languages SET is_active = ?, updated_by = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		arg.IsActive, arg.UpdatedBy, arg.UpdatedAt, arg.ID,
	); err != nil {
		return Language{}, err
	}
	return q.GetLanguage(ctx, arg.ID)
}

// ClearDefaultLanguage removes the default flag from every row.
func (q *Queries) ClearDefaultLanguage(ctx context.Context, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE languages SET is_default = 0, updated_at = ? WHERE is_default = 1`, updatedAt)
	return err
}

// MarkDefaultLanguage flags a live language as default and active.
// ClearDefaultLanguage must run first in the same transaction.
func (q *Queries) MarkDefaultLanguage(ctx context.Context, id int64, updatedAt time.Time) (Language, error) {
	if err := q.execOne(ctx, `
		UPDATE languages SET is_default = 1, is_active = 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		updatedAt, id,
	); err != nil {
		return Language{}, err
	}
	return q.GetLanguage(ctx, id)
}

// RestoreLanguageParams holds the values for RestoreLanguage.
type RestoreLanguageParams struct {
	ID        int64
	Name      string
	UpdatedAt time.Time
}

// RestoreLanguage clears a soft delete and fills a missing name.
func (q *Queries) RestoreLanguage(ctx context.Context, arg RestoreLanguageParams) (Language, error) {
	if err := q.execOne(ctx, `
		UPDATE languages
		SET deleted_at = NULL,
			name = CASE WHEN name = '' THEN ? ELSE name END,
			updated_at = ?
		WHERE id = ?`,
		arg.Name, arg.UpdatedAt, arg.ID,
	); err != nil {
		return Language{}, err
	}
	return q.GetLanguage(ctx, arg.ID)
}

// SoftDeleteLanguage marks a language deleted. The default language is never matched.
func (q *Queries) SoftDeleteLanguage(ctx context.Context, id int64, deletedAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE languages SET deleted_at = ?, is_active = 0, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND is_default = 0`,
		deletedAt, deletedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
