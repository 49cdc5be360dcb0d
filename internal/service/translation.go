// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/ocms-langsync/internal/apperr"
	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/propagation"
	"github.com/olegiv/ocms-langsync/internal/store"
	"github.com/olegiv/ocms-langsync/internal/syncpolicy"
	"github.com/olegiv/ocms-langsync/internal/translation"
	"github.com/olegiv/ocms-langsync/internal/util"
)

// htmlSanitizer cleans the rich-text columns written by editors.
var htmlSanitizer = bluemonday.UGCPolicy()

// richTextFields are sanitised on every editor write.
var richTextFields = []string{model.FieldContent, model.FieldDescription}

// LanguageDirectory is the part of the language registry the translation
// service reads.
type LanguageDirectory interface {
	DefaultLanguageID(ctx context.Context) (int64, error)
	List(ctx context.Context, includeInactive bool) ([]store.Language, error)
}

// AuthorParams describes a new document.
type AuthorParams struct {
	// ParentID is required for nested kinds and must be zero otherwise.
	ParentID int64
	// Base is the content in the default language.
	Base model.Fields
	// Explicit holds content an author supplied for other languages, keyed by language id.
	Explicit map[int64]model.Fields
}

// AuthoredDocument is the result of AuthorDocument.
type AuthoredDocument struct {
	Document     store.Document      `json:"document"`
	Translations []model.Translation `json:"translations"`
}

// TranslationService is the editor-facing write path for translatable documents.
type TranslationService struct {
	db        *sql.DB
	catalogue *translation.Catalogue
	languages LanguageDirectory
	engine    *propagation.Engine
	policy    syncpolicy.Policy
	logger    *slog.Logger
	now       func() time.Time
}

// NewTranslationService creates a translation service.
func NewTranslationService(db *sql.DB, catalogue *translation.Catalogue, languages LanguageDirectory,
	engine *propagation.Engine, policy syncpolicy.Policy, logger *slog.Logger) *TranslationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranslationService{
		db:        db,
		catalogue: catalogue,
		languages: languages,
		engine:    engine,
		policy:    policy,
		logger:    logger.With("category", model.EventCategoryPropagation),
		now:       time.Now,
	}
}

// AuthorDocument creates a document with its base row and one row for every
// other active language. The new rows' sync flags follow the policy.
func (s *TranslationService) AuthorDocument(ctx context.Context, kind string, arg AuthorParams) (AuthoredDocument, error) {
	adapter, err := s.catalogue.Get(kind)
	if err != nil {
		return AuthoredDocument{}, err
	}
	parentKind, nested := s.catalogue.ParentKind(kind)
	if nested && arg.ParentID == 0 {
		return AuthoredDocument{}, apperr.InvalidOperation("%s documents need a %s parent", kind, parentKind)
	}
	if !nested && arg.ParentID != 0 {
		return AuthoredDocument{}, apperr.InvalidOperation("%s documents cannot have a parent", kind)
	}

	baseID, err := s.languages.DefaultLanguageID(ctx)
	if err != nil {
		return AuthoredDocument{}, fmt.Errorf("resolving base language: %w", err)
	}
	active, err := s.languages.List(ctx, false)
	if err != nil {
		return AuthoredDocument{}, fmt.Errorf("listing languages: %w", err)
	}

	activeIDs := make(map[int64]bool, len(active))
	for _, lang := range active {
		activeIDs[lang.ID] = true
	}
	for langID := range arg.Explicit {
		if langID == baseID {
			return AuthoredDocument{}, apperr.InvalidOperation("base language content belongs in Base")
		}
		if !activeIDs[langID] {
			return AuthoredDocument{}, apperr.InvalidOperation("language %d is not active", langID)
		}
	}

	base := sanitize(arg.Base)
	var out AuthoredDocument

	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		if nested {
			parent, err := q.GetDocument(ctx, arg.ParentID)
			if errors.Is(err, sql.ErrNoRows) || (err == nil && parent.Kind != parentKind) {
				return apperr.NotFound("%s document %d not found", parentKind, arg.ParentID)
			}
			if err != nil {
				return fmt.Errorf("loading parent document: %w", err)
			}
		}

		now := s.now()
		doc, err := q.CreateDocument(ctx, store.CreateDocumentParams{
			Kind:        kind,
			ParentID:    util.NullID(arg.ParentID),
			IsPublished: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("creating %s document: %w", kind, err)
		}
		out.Document = doc

		a := adapter.With(q)
		baseRow, err := a.CreateTranslation(ctx, doc.ID, baseID, base, s.policy.OnCreate(true, false))
		if err != nil {
			return err
		}
		out.Translations = append(out.Translations, baseRow)

		for _, lang := range active {
			if lang.ID == baseID {
				continue
			}
			explicit, hasExplicit := arg.Explicit[lang.ID]
			synced := s.policy.OnCreate(false, hasExplicit)

			content := base
			if !synced && hasExplicit {
				content = sanitize(explicit)
			}

			row, err := a.CreateTranslation(ctx, doc.ID, lang.ID, content, synced)
			if err != nil {
				return err
			}
			out.Translations = append(out.Translations, row)
		}
		return nil
	})
	if err != nil {
		return AuthoredDocument{}, err
	}

	s.logger.Debug("document authored", "kind", kind, "document_id", out.Document.ID, "rows", len(out.Translations))
	return out, nil
}

// EditBase writes the base row and propagates it to every synced row.
// Propagation failures are reported in the result and never fail the edit.
// A missing or deleted document is NotFound; a live document without a base
// row is an InvalidOperation.
func (s *TranslationService) EditBase(ctx context.Context, kind string, documentID int64, fields model.Fields) (model.Translation, propagation.Result, error) {
	adapter, err := s.catalogue.Get(kind)
	if err != nil {
		return model.Translation{}, propagation.Result{}, err
	}
	baseID, err := s.languages.DefaultLanguageID(ctx)
	if err != nil {
		return model.Translation{}, propagation.Result{}, fmt.Errorf("resolving base language: %w", err)
	}

	decision := s.policy.OnBaseUpdate()
	var updated model.Translation
	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		if err := requireDocument(ctx, q, kind, documentID); err != nil {
			return err
		}
		a := adapter.With(q)

		current, err := a.GetTranslation(ctx, documentID, baseID)
		if apperr.IsKind(err, apperr.KindNotFound) {
			return apperr.InvalidOperation("%s document %d has no base translation", kind, documentID)
		}
		if err != nil {
			return err
		}

		next := current.Fields.Clone()
		for k, v := range sanitize(fields) {
			next[k] = v
		}
		updated, err = a.UpdateTranslation(ctx, documentID, baseID, next, decision.Synced)
		return err
	})
	if err != nil {
		return model.Translation{}, propagation.Result{}, err
	}

	if !decision.Propagate {
		return updated, propagation.Result{Kind: kind, DocumentID: documentID}, nil
	}

	res, perr := s.engine.Propagate(ctx, kind, documentID, updated.Fields)
	if perr != nil && !apperr.IsKind(perr, apperr.KindPartialFailure) {
		s.logger.Warn("propagation after base edit failed", "kind", kind, "document_id", documentID, "error", perr)
	}
	return updated, res, nil
}

// EditTranslation applies an editor write to a non-base row. A plain edit
// diverges the row. With reassertSync the supplied fields are discarded and
// the row is re-synced and refreshed from base.
func (s *TranslationService) EditTranslation(ctx context.Context, kind string, documentID, languageID int64, fields model.Fields, reassertSync bool) (model.Translation, error) {
	adapter, err := s.catalogue.Get(kind)
	if err != nil {
		return model.Translation{}, err
	}
	baseID, err := s.languages.DefaultLanguageID(ctx)
	if err != nil {
		return model.Translation{}, fmt.Errorf("resolving base language: %w", err)
	}
	if languageID == baseID {
		return model.Translation{}, apperr.InvalidOperation("the base language is edited with EditBase")
	}

	var updated model.Translation
	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		if err := requireDocument(ctx, q, kind, documentID); err != nil {
			return err
		}
		a := adapter.With(q)

		row, err := a.GetTranslation(ctx, documentID, languageID)
		if err != nil {
			return err
		}
		base, err := a.GetTranslation(ctx, documentID, baseID)
		if apperr.IsKind(err, apperr.KindNotFound) {
			return apperr.InvalidOperation("%s document %d has no base translation", kind, documentID)
		}
		if err != nil {
			return err
		}

		decision := s.policy.OnEditorUpdate(false, reassertSync)

		next := row.Fields.Clone()
		if decision.OverwriteFromBase {
			for _, name := range a.Fields() {
				next[name] = base.Fields[name]
			}
		} else {
			for k, v := range sanitize(fields) {
				next[k] = v
			}
		}

		updated, err = a.UpdateTranslation(ctx, documentID, languageID, next, decision.Synced)
		return err
	})
	if err != nil {
		return model.Translation{}, err
	}

	if reassertSync {
		// Sub-records follow their own base rows.
		if _, err := s.engine.PropagateFromBase(ctx, kind, documentID); err != nil {
			s.logger.Debug("refresh after re-sync incomplete", "kind", kind, "document_id", documentID, "error", err)
		}
	}
	return updated, nil
}

// Translations returns every row of a document.
func (s *TranslationService) Translations(ctx context.Context, kind string, documentID int64) ([]model.Translation, error) {
	adapter, err := s.catalogue.Get(kind)
	if err != nil {
		return nil, err
	}
	return adapter.ListTranslations(ctx, documentID)
}

// DeleteDocument soft-deletes a document and its sub-records. Their rows are
// kept but no longer take part in propagation or reconciliation.
func (s *TranslationService) DeleteDocument(ctx context.Context, kind string, documentID int64) error {
	if _, err := s.catalogue.Get(kind); err != nil {
		return err
	}
	return store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		if err := requireDocument(ctx, q, kind, documentID); err != nil {
			return err
		}
		_, err := q.SoftDeleteDocument(ctx, documentID, s.now())
		return err
	})
}

// requireDocument checks that documentID is a live document of kind.
func requireDocument(ctx context.Context, q *store.Queries, kind string, documentID int64) error {
	doc, err := q.GetDocument(ctx, documentID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && doc.Kind != kind) {
		return apperr.NotFound("%s document %d not found", kind, documentID)
	}
	if err != nil {
		return fmt.Errorf("loading document: %w", err)
	}
	return nil
}

// sanitize returns a copy of fields with the rich-text columns cleaned.
func sanitize(fields model.Fields) model.Fields {
	out := fields.Clone()
	for _, name := range richTextFields {
		if v, ok := out[name]; ok {
			out[name] = htmlSanitizer.Sanitize(v)
		}
	}
	return out
}
