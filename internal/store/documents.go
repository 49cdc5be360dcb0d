// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const documentColumns = `id, kind, parent_id, position, is_published, created_at, updated_at, deleted_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Kind, &d.ParentID, &d.Position, &d.IsPublished,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt)
	return d, err
}

// CreateDocumentParams holds the values for CreateDocument.
type CreateDocumentParams struct {
	Kind        string
	ParentID    sql.NullInt64
	Position    int64
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateDocument inserts a document row.
func (q *Queries) CreateDocument(ctx context.Context, arg CreateDocumentParams) (Document, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO documents (kind, parent_id, position, is_published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		arg.Kind, arg.ParentID, arg.Position, arg.IsPublished, arg.CreatedAt, arg.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Document{}, err
	}
	return q.GetDocument(ctx, id)
}

// GetDocument returns a live document by id.
func (q *Queries) GetDocument(ctx context.Context, id int64) (Document, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ? AND deleted_at IS NULL`, id)
	return scanDocument(row)
}

func (q *Queries) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDocumentIDsByKind returns the ids of live documents of a kind.
func (q *Queries) ListDocumentIDsByKind(ctx context.Context, kind string) ([]int64, error) {
	return q.queryIDs(ctx,
		`SELECT id FROM documents WHERE kind = ? AND deleted_at IS NULL ORDER BY id`, kind)
}

// ListChildDocumentIDsParams holds the values for ListChildDocumentIDs.
type ListChildDocumentIDsParams struct {
	ParentID int64
	Kind     string
}

// ListChildDocumentIDs returns the ids of live sub-records of a parent document.
func (q *Queries) ListChildDocumentIDs(ctx context.Context, arg ListChildDocumentIDsParams) ([]int64, error) {
	return q.queryIDs(ctx, `
		SELECT id FROM documents
		WHERE parent_id = ? AND kind = ? AND deleted_at IS NULL
		ORDER BY position, id`,
		arg.ParentID, arg.Kind)
}

// SoftDeleteDocument marks a document and its sub-records deleted.
func (q *Queries) SoftDeleteDocument(ctx context.Context, id int64, deletedAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE documents SET deleted_at = ?, updated_at = ?
		WHERE (id = ? OR parent_id = ?) AND deleted_at IS NULL`,
		deletedAt, deletedAt, id, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
