// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package language manages the language set and its single default language.
package language

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	xlanguage "golang.org/x/text/language"

	"github.com/olegiv/ocms-langsync/internal/apperr"
	"github.com/olegiv/ocms-langsync/internal/cache"
	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/service"
	"github.com/olegiv/ocms-langsync/internal/store"
	"github.com/olegiv/ocms-langsync/internal/util"
)

// ActivationNotifier is told when a language becomes active.
// Notify must not block on the back-fill itself.
type ActivationNotifier interface {
	Notify(ctx context.Context, languageID int64) error
}

// DefaultChangeHandler keeps translation rows consistent when the default
// language moves. DefaultChanging runs inside the transaction that moves the
// flag and may abort it; DefaultChanged runs after commit.
type DefaultChangeHandler interface {
	DefaultChanging(ctx context.Context, q *store.Queries, newBaseID int64) error
	DefaultChanged(ctx context.Context, newBaseID int64)
}

// Registry is the sole writer of the languages table.
type Registry struct {
	db          *sql.DB
	queries     *store.Queries
	cache       *cache.LanguageCache
	invalidator cache.Invalidator
	events      *service.EventService
	notifier    ActivationNotifier
	rebaser     DefaultChangeHandler
	logger      *slog.Logger
	now         func() time.Time
}

// NewRegistry creates a registry reading through languageCache.
func NewRegistry(db *sql.DB, languageCache *cache.LanguageCache, events *service.EventService, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		db:          db,
		queries:     store.New(db),
		cache:       languageCache,
		invalidator: cache.NopInvalidator{},
		events:      events,
		logger:      logger.With("category", model.EventCategoryLanguage),
		now:         time.Now,
	}
}

// SetActivationNotifier registers the receiver of false→true activations.
func (r *Registry) SetActivationNotifier(n ActivationNotifier) {
	r.notifier = n
}

// SetDefaultChangeHandler registers the receiver of default-language moves.
func (r *Registry) SetDefaultChangeHandler(h DefaultChangeHandler) {
	r.rebaser = h
}

// SetInvalidator registers the channel used to tell peers about changes.
func (r *Registry) SetInvalidator(inv cache.Invalidator) {
	if inv == nil {
		inv = cache.NopInvalidator{}
	}
	r.invalidator = inv
}

// CanonicalCode normalises a BCP 47 code, e.g. "EN" → "en", "zh_Hant" → "zh-hant".
func CanonicalCode(code string) (string, error) {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if code == "" {
		return "", apperr.InvalidOperation("language code is required")
	}
	tag, err := xlanguage.Parse(code)
	if err != nil || tag == xlanguage.Und {
		return "", apperr.InvalidOperation("invalid language code %q", code)
	}
	return strings.ToLower(tag.String()), nil
}

// CreateParams holds the values for Create.
type CreateParams struct {
	Code       string
	Name       string
	NativeName string
	// Position defaults to one past the current maximum.
	Position  *int64
	Active    bool
	CreatedBy string
}

// Create adds a language. It is never created as the default.
func (r *Registry) Create(ctx context.Context, arg CreateParams) (store.Language, error) {
	code, err := CanonicalCode(arg.Code)
	if err != nil {
		return store.Language{}, err
	}

	seed := model.LookupLanguageSeed(code)
	name := strings.TrimSpace(arg.Name)
	if name == "" {
		name = seed.Name
	}
	nativeName := strings.TrimSpace(arg.NativeName)
	if nativeName == "" {
		nativeName = seed.NativeName
	}

	var lang store.Language
	err = store.RunInTx(ctx, r.db, func(q *store.Queries) error {
		exists, err := q.LanguageCodeExists(ctx, code)
		if err != nil {
			return fmt.Errorf("checking language code: %w", err)
		}
		if exists {
			return apperr.Conflict("language code %q already exists", code)
		}

		position := int64(0)
		if arg.Position != nil {
			position = *arg.Position
		} else {
			maxPos, err := q.GetMaxLanguagePosition(ctx)
			if err != nil {
				return fmt.Errorf("reading language positions: %w", err)
			}
			position = maxPos + 1
		}

		now := r.now()
		lang, err = q.CreateLanguage(ctx, store.CreateLanguageParams{
			Code:       code,
			Name:       name,
			NativeName: nativeName,
			Position:   position,
			IsActive:   arg.Active,
			IsDefault:  false,
			CreatedBy:  util.NullString(arg.CreatedBy),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return apperr.Conflict("language code %q already exists", code)
			}
			return fmt.Errorf("creating language: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.Language{}, err
	}

	r.changed(ctx)
	r.logger.Info("language created", "code", lang.Code, "id", lang.ID, "active", lang.IsActive)
	r.audit(ctx, "language created", lang)
	if lang.IsActive {
		r.notifyActivated(ctx, lang)
	}
	return lang, nil
}

// SetActive toggles a language. The default language cannot be deactivated.
// A false→true transition triggers the activation back-fill after commit.
func (r *Registry) SetActive(ctx context.Context, id int64, active bool, updatedBy string) (store.Language, error) {
	var (
		lang      store.Language
		activated bool
		changed   bool
	)

	err := store.RunInTx(ctx, r.db, func(q *store.Queries) error {
		current, err := q.GetLanguage(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("language %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("loading language %d: %w", id, err)
		}
		if current.IsDefault && !active {
			return apperr.InvalidOperation("the default language %q cannot be deactivated", current.Code)
		}
		if current.IsActive == active {
			lang = current
			return nil
		}

		lang, err = q.SetLanguageActive(ctx, store.SetLanguageActiveParams{
			ID:        id,
			IsActive:  active,
			UpdatedBy: util.NullString(updatedBy),
			UpdatedAt: r.now(),
		})
		if err != nil {
			return fmt.Errorf("updating language %d: %w", id, err)
		}
		changed = true
		activated = active
		return nil
	})
	if err != nil {
		return store.Language{}, err
	}
	if !changed {
		return lang, nil
	}

	r.changed(ctx)
	if activated {
		r.logger.Info("language activated", "code", lang.Code, "id", lang.ID)
		r.audit(ctx, "language activated", lang)
		r.notifyActivated(ctx, lang)
	} else {
		r.logger.Info("language deactivated", "code", lang.Code, "id", lang.ID)
		r.audit(ctx, "language deactivated", lang)
	}
	return lang, nil
}

// List returns languages ordered by position, then creation time.
func (r *Registry) List(ctx context.Context, includeInactive bool) ([]store.Language, error) {
	if includeInactive {
		return r.cache.GetAll(ctx)
	}
	return r.cache.GetActive(ctx)
}

// Get returns a live language.
func (r *Registry) Get(ctx context.Context, id int64) (store.Language, error) {
	lang, err := r.cache.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Language{}, apperr.NotFound("language %d not found", id)
	}
	return lang, err
}

// Default returns the default language.
func (r *Registry) Default(ctx context.Context) (store.Language, error) {
	lang, err := r.cache.GetDefault(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Language{}, apperr.NotFound("no default language is configured")
	}
	return lang, err
}

// DefaultLanguageID implements translation.BaseLanguageResolver.
func (r *Registry) DefaultLanguageID(ctx context.Context) (int64, error) {
	lang, err := r.Default(ctx)
	if err != nil {
		return 0, err
	}
	return lang.ID, nil
}

// SetDefault moves the default flag to an active language in one transaction.
// The new default's rows lose their sync flag in the same transaction.
func (r *Registry) SetDefault(ctx context.Context, id int64) (store.Language, error) {
	var (
		lang  store.Language
		moved bool
	)
	err := store.RunInTx(ctx, r.db, func(q *store.Queries) error {
		target, err := q.GetLanguage(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("language %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("loading language %d: %w", id, err)
		}
		if !target.IsActive {
			return apperr.InvalidOperation("language %q must be active to become the default", target.Code)
		}
		if target.IsDefault {
			lang = target
			return nil
		}

		lang, err = r.moveDefault(ctx, q, id)
		if err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil {
		return store.Language{}, err
	}
	if !moved {
		return lang, nil
	}

	r.changed(ctx)
	r.logger.Info("default language changed", "code", lang.Code, "id", lang.ID)
	r.audit(ctx, "default language changed", lang)
	r.defaultChanged(ctx, lang.ID)
	return lang, nil
}

// Delete soft-deletes a language. Its rows are kept.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	lang, err := r.queries.GetLanguage(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("language %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("loading language %d: %w", id, err)
	}
	if lang.IsDefault {
		return apperr.InvalidOperation("the default language %q cannot be deleted", lang.Code)
	}

	n, err := r.queries.SoftDeleteLanguage(ctx, id, r.now())
	if err != nil {
		return fmt.Errorf("deleting language %d: %w", id, err)
	}
	if n == 0 {
		// Lost a race with another delete or a default move.
		return apperr.InvalidOperation("language %q cannot be deleted", lang.Code)
	}

	r.changed(ctx)
	r.logger.Info("language deleted", "code", lang.Code, "id", lang.ID)
	r.audit(ctx, "language deleted", lang)
	return nil
}

// Bootstrap makes sure every code exists and defaultCode is the one default.
// It runs at every start and is idempotent.
func (r *Registry) Bootstrap(ctx context.Context, codes []string, defaultCode string) error {
	defaultCode, err := CanonicalCode(defaultCode)
	if err != nil {
		return err
	}

	var (
		activated []store.Language
		movedTo   int64
	)
	err = store.RunInTx(ctx, r.db, func(q *store.Queries) error {
		activated = activated[:0]
		movedTo = 0
		now := r.now()
		var defaultLang store.Language

		for i, raw := range codes {
			code, err := CanonicalCode(raw)
			if err != nil {
				return err
			}

			lang, err := q.GetLanguageByCode(ctx, code)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				seed := model.LookupLanguageSeed(code)
				lang, err = q.CreateLanguage(ctx, store.CreateLanguageParams{
					Code:       code,
					Name:       seed.Name,
					NativeName: seed.NativeName,
					Position:   int64(i),
					IsActive:   true,
					CreatedBy:  util.NullString("bootstrap"),
					CreatedAt:  now,
					UpdatedAt:  now,
				})
				if err != nil {
					return fmt.Errorf("creating language %q: %w", code, err)
				}
				activated = append(activated, lang)
			case err != nil:
				return fmt.Errorf("loading language %q: %w", code, err)
			case lang.DeletedAt.Valid:
				if _, err := q.RestoreLanguage(ctx, store.RestoreLanguageParams{
					ID: lang.ID, Name: model.LookupLanguageSeed(code).Name, UpdatedAt: now,
				}); err != nil {
					return fmt.Errorf("restoring language %q: %w", code, err)
				}
				lang, err = q.SetLanguageActive(ctx, store.SetLanguageActiveParams{
					ID: lang.ID, IsActive: true, UpdatedBy: util.NullString("bootstrap"), UpdatedAt: now,
				})
				if err != nil {
					return fmt.Errorf("activating language %q: %w", code, err)
				}
				activated = append(activated, lang)
			}

			if code == defaultCode {
				defaultLang = lang
			}
		}

		if defaultLang.ID == 0 {
			return apperr.InvalidOperation("default language %q is not in the bootstrap set", defaultCode)
		}

		count, err := q.CountDefaultLanguages(ctx)
		if err != nil {
			return fmt.Errorf("counting default languages: %w", err)
		}
		if count == 1 && defaultLang.IsDefault && defaultLang.IsActive {
			return nil
		}

		if _, err := r.moveDefault(ctx, q, defaultLang.ID); err != nil {
			return err
		}
		movedTo = defaultLang.ID
		r.logger.Info("default language corrected", "code", defaultCode)
		return nil
	})
	if err != nil {
		return err
	}

	r.changed(ctx)
	if movedTo != 0 {
		r.defaultChanged(ctx, movedTo)
	}
	for _, lang := range activated {
		if lang.Code == defaultCode {
			continue
		}
		r.notifyActivated(ctx, lang)
	}
	r.logger.Info("languages bootstrapped", "count", len(codes), "default", defaultCode)
	return nil
}

// moveDefault moves the default flag to id and lets the handler take over the
// new base rows within q's transaction.
func (r *Registry) moveDefault(ctx context.Context, q *store.Queries, id int64) (store.Language, error) {
	now := r.now()
	if err := q.ClearDefaultLanguage(ctx, now); err != nil {
		return store.Language{}, fmt.Errorf("clearing default language: %w", err)
	}
	lang, err := q.MarkDefaultLanguage(ctx, id, now)
	if err != nil {
		return store.Language{}, fmt.Errorf("marking default language %d: %w", id, err)
	}
	if r.rebaser != nil {
		if err := r.rebaser.DefaultChanging(ctx, q, id); err != nil {
			return store.Language{}, err
		}
	}
	return lang, nil
}

func (r *Registry) defaultChanged(ctx context.Context, id int64) {
	if r.rebaser != nil {
		r.rebaser.DefaultChanged(ctx, id)
	}
}

// changed drops cached state here and on peers.
func (r *Registry) changed(ctx context.Context) {
	r.cache.Invalidate()
	if err := r.invalidator.Publish(ctx); err != nil {
		r.logger.Warn("failed to publish language invalidation", "error", err)
	}
}

func (r *Registry) notifyActivated(ctx context.Context, lang store.Language) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, lang.ID); err != nil {
		// The next reconcile pass creates the missing rows.
		r.logger.Error("failed to schedule language back-fill", "code", lang.Code, "id", lang.ID, "error", err)
	}
}

func (r *Registry) audit(ctx context.Context, message string, lang store.Language) {
	if r.events == nil {
		return
	}
	_ = r.events.LogLanguageEvent(ctx, message, map[string]any{
		"id":        lang.ID,
		"code":      lang.Code,
		"active":    lang.IsActive,
		"isDefault": lang.IsDefault,
		"by":        util.StringOrEmpty(lang.UpdatedBy),
	})
}
