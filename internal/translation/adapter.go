// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package translation provides the per-kind translation store adapters.
//
// Every document kind is served by the same table-driven adapter; the only
// kind-specific code is the descriptor list in kinds.go. Propagation,
// activation and reconciliation are written once against Adapter.
package translation

import (
	"context"

	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/store"
)

// BaseLanguageResolver returns the id of the current default language.
type BaseLanguageResolver interface {
	DefaultLanguageID(ctx context.Context) (int64, error)
}

// Adapter is the uniform contract over one kind's translation rows.
type Adapter interface {
	// Kind returns the document kind tag.
	Kind() string
	// Fields returns the translatable column names.
	Fields() []string

	// With returns an adapter bound to q, typically a transaction.
	With(q *store.Queries) Adapter

	ListDocumentIDs(ctx context.Context) ([]int64, error)
	GetTranslation(ctx context.Context, documentID, languageID int64) (model.Translation, error)
	GetBaseTranslation(ctx context.Context, documentID int64) (model.Translation, error)
	ListTranslations(ctx context.Context, documentID int64) ([]model.Translation, error)
	ListSyncedTranslations(ctx context.Context, documentID int64) ([]model.Translation, error)
	ListAllTranslationsForLanguage(ctx context.Context, languageID int64) ([]model.Translation, error)

	// UpsertTranslationContent overwrites the translatable fields of an existing
	// synced row and never changes its sync flag. It reports false when the row
	// has been diverged in the meantime.
	UpsertTranslationContent(ctx context.Context, documentID, languageID int64, fields model.Fields) (bool, error)
	CreateTranslation(ctx context.Context, documentID, languageID int64, fields model.Fields, isSynced bool) (model.Translation, error)
	// UpdateTranslation is the editor write: content and flag together.
	UpdateTranslation(ctx context.Context, documentID, languageID int64, fields model.Fields, isSynced bool) (model.Translation, error)
	// DesyncLanguage clears the sync flag of every row of a language and
	// returns the number of rows changed. Content is kept.
	DesyncLanguage(ctx context.Context, languageID int64) (int64, error)

	Nested() []NestedCollection
}

// NestedCollection is a kind of sub-record owned by a parent document.
type NestedCollection struct {
	Adapter Adapter
	// ListChildIDs returns the live sub-record ids of a parent.
	ListChildIDs func(ctx context.Context, parentID int64) ([]int64, error)
}
