// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/ocms-langsync/internal/apperr"
	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/store"
)

// tableAdapter implements Adapter over one store.TranslationTable.
type tableAdapter struct {
	kind   string
	table  *store.TranslationTable
	q      *store.Queries
	base   BaseLanguageResolver
	nested []NestedCollection
	now    func() time.Time
}

func (a *tableAdapter) Kind() string     { return a.kind }
func (a *tableAdapter) Fields() []string { return a.table.Columns() }

func (a *tableAdapter) Nested() []NestedCollection {
	return append([]NestedCollection(nil), a.nested...)
}

func (a *tableAdapter) With(q *store.Queries) Adapter {
	clone := *a
	clone.q = q
	clone.nested = make([]NestedCollection, len(a.nested))
	for i, n := range a.nested {
		clone.nested[i] = NestedCollection{
			Adapter:      n.Adapter.With(q),
			ListChildIDs: childLister(q, n.Adapter.Kind()),
		}
	}
	return &clone
}

func (a *tableAdapter) toModel(r store.TranslationRow) model.Translation {
	return model.Translation{
		ID:         r.ID,
		Kind:       a.kind,
		DocumentID: r.DocumentID,
		LanguageID: r.LanguageID,
		Fields:     model.Fields(r.Fields),
		IsSynced:   r.IsSynced,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (a *tableAdapter) toModels(rows []store.TranslationRow) []model.Translation {
	out := make([]model.Translation, 0, len(rows))
	for _, r := range rows {
		out = append(out, a.toModel(r))
	}
	return out
}

// requireDocument checks that documentID is a live document of this kind.
func (a *tableAdapter) requireDocument(ctx context.Context, documentID int64) error {
	doc, err := a.q.GetDocument(ctx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s document %d not found", a.kind, documentID)
	}
	if err != nil {
		return fmt.Errorf("loading %s document %d: %w", a.kind, documentID, err)
	}
	if doc.Kind != a.kind {
		return apperr.NotFound("%s document %d not found", a.kind, documentID)
	}
	return nil
}

func (a *tableAdapter) ListDocumentIDs(ctx context.Context) ([]int64, error) {
	ids, err := a.q.ListDocumentIDsByKind(ctx, a.kind)
	if err != nil {
		return nil, fmt.Errorf("listing %s documents: %w", a.kind, err)
	}
	return ids, nil
}

func (a *tableAdapter) GetTranslation(ctx context.Context, documentID, languageID int64) (model.Translation, error) {
	row, err := a.table.Get(ctx, a.q.DB(), documentID, languageID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Translation{}, apperr.NotFound("%s translation (document %d, language %d) not found",
			a.kind, documentID, languageID)
	}
	if err != nil {
		return model.Translation{}, fmt.Errorf("loading %s translation: %w", a.kind, err)
	}
	return a.toModel(row), nil
}

func (a *tableAdapter) GetBaseTranslation(ctx context.Context, documentID int64) (model.Translation, error) {
	baseID, err := a.base.DefaultLanguageID(ctx)
	if err != nil {
		return model.Translation{}, err
	}
	return a.GetTranslation(ctx, documentID, baseID)
}

func (a *tableAdapter) ListTranslations(ctx context.Context, documentID int64) ([]model.Translation, error) {
	rows, err := a.table.ListByDocument(ctx, a.q.DB(), documentID)
	if err != nil {
		return nil, fmt.Errorf("listing %s translations: %w", a.kind, err)
	}
	return a.toModels(rows), nil
}

func (a *tableAdapter) ListSyncedTranslations(ctx context.Context, documentID int64) ([]model.Translation, error) {
	baseID, err := a.base.DefaultLanguageID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := a.table.ListSynced(ctx, a.q.DB(), documentID, baseID)
	if err != nil {
		return nil, fmt.Errorf("listing synced %s translations: %w", a.kind, err)
	}
	return a.toModels(rows), nil
}

func (a *tableAdapter) ListAllTranslationsForLanguage(ctx context.Context, languageID int64) ([]model.Translation, error) {
	rows, err := a.table.ListByLanguage(ctx, a.q.DB(), languageID)
	if err != nil {
		return nil, fmt.Errorf("listing %s translations for language %d: %w", a.kind, languageID, err)
	}
	return a.toModels(rows), nil
}

func (a *tableAdapter) UpsertTranslationContent(ctx context.Context, documentID, languageID int64, fields model.Fields) (bool, error) {
	baseID, err := a.base.DefaultLanguageID(ctx)
	if err != nil {
		return false, err
	}
	if languageID == baseID {
		return false, apperr.InvalidOperation("the base %s translation is not written by propagation", a.kind)
	}

	n, err := a.table.UpdateContentIfSynced(ctx, a.q.DB(), documentID, languageID,
		fields.Pick(a.table.Columns()), a.now())
	if err != nil {
		return false, fmt.Errorf("overwriting %s translation: %w", a.kind, err)
	}
	if n > 0 {
		return true, nil
	}

	// Nothing changed: either the row is gone or an editor diverged it.
	if _, err := a.GetTranslation(ctx, documentID, languageID); err != nil {
		return false, err
	}
	return false, nil
}

func (a *tableAdapter) CreateTranslation(ctx context.Context, documentID, languageID int64, fields model.Fields, isSynced bool) (model.Translation, error) {
	baseID, err := a.base.DefaultLanguageID(ctx)
	if err != nil {
		return model.Translation{}, err
	}
	if isSynced && languageID == baseID {
		return model.Translation{}, apperr.InvalidOperation("the base %s translation cannot be synced", a.kind)
	}
	if err := a.requireDocument(ctx, documentID); err != nil {
		return model.Translation{}, err
	}

	row, err := a.table.Insert(ctx, a.q.DB(), store.InsertParams{
		DocumentID: documentID,
		LanguageID: languageID,
		Fields:     fields.Pick(a.table.Columns()),
		IsSynced:   isSynced,
		CreatedAt:  a.now(),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return model.Translation{}, apperr.Conflict("%s translation (document %d, language %d) already exists",
				a.kind, documentID, languageID)
		}
		if isForeignKeyViolation(err) {
			return model.Translation{}, apperr.NotFound("language %d not found", languageID)
		}
		return model.Translation{}, fmt.Errorf("creating %s translation: %w", a.kind, err)
	}
	return a.toModel(row), nil
}

func (a *tableAdapter) UpdateTranslation(ctx context.Context, documentID, languageID int64, fields model.Fields, isSynced bool) (model.Translation, error) {
	baseID, err := a.base.DefaultLanguageID(ctx)
	if err != nil {
		return model.Translation{}, err
	}
	if isSynced && languageID == baseID {
		return model.Translation{}, apperr.InvalidOperation("the base %s translation cannot be synced", a.kind)
	}

	err = a.table.UpdateRow(ctx, a.q.DB(), store.UpdateRowParams{
		DocumentID: documentID,
		LanguageID: languageID,
		Fields:     fields.Pick(a.table.Columns()),
		IsSynced:   isSynced,
		UpdatedAt:  a.now(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return model.Translation{}, apperr.NotFound("%s translation (document %d, language %d) not found",
			a.kind, documentID, languageID)
	}
	if err != nil {
		return model.Translation{}, fmt.Errorf("updating %s translation: %w", a.kind, err)
	}
	return a.GetTranslation(ctx, documentID, languageID)
}

func (a *tableAdapter) DesyncLanguage(ctx context.Context, languageID int64) (int64, error) {
	n, err := a.table.SetSyncedForLanguage(ctx, a.q.DB(), languageID, false, a.now())
	if err != nil {
		return 0, fmt.Errorf("clearing %s sync flags for language %d: %w", a.kind, languageID, err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
