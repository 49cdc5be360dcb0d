// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/olegiv/ocms-langsync/internal/activation"
	"github.com/olegiv/ocms-langsync/internal/cache"
	"github.com/olegiv/ocms-langsync/internal/config"
	"github.com/olegiv/ocms-langsync/internal/language"
	"github.com/olegiv/ocms-langsync/internal/propagation"
	"github.com/olegiv/ocms-langsync/internal/reconcile"
	"github.com/olegiv/ocms-langsync/internal/service"
	"github.com/olegiv/ocms-langsync/internal/store"
	"github.com/olegiv/ocms-langsync/internal/syncpolicy"
	"github.com/olegiv/ocms-langsync/internal/taskqueue"
	"github.com/olegiv/ocms-langsync/internal/translation"
)

// app holds the wired services shared by the server and the one-shot modes.
type app struct {
	languageCache *cache.LanguageCache
	events        *service.EventService
	registry      *language.Registry
	catalogue     *translation.Catalogue
	pool          *taskqueue.Pool
	engine        *propagation.Engine
	reconciler    *reconcile.Reconciler
	translations  *service.TranslationService
}

// newApp wires the services and starts the task pool. Languages are not
// touched until bootstrap, so every activation has a listener.
func newApp(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) (*app, error) {
	mode, err := syncpolicy.ParseMode(cfg.InitialSyncMode)
	if err != nil {
		return nil, err
	}

	queries := store.New(db)
	a := &app{
		languageCache: cache.NewLanguageCache(queries, cfg.LanguageCacheTTLDuration()),
		events:        service.NewEventService(db, logger),
	}
	a.registry = language.NewRegistry(db, a.languageCache, a.events, logger)

	a.catalogue, err = translation.NewCatalogue(queries, a.registry, translation.DefaultKinds())
	if err != nil {
		return nil, fmt.Errorf("building translation catalogue: %w", err)
	}

	a.pool = taskqueue.New(taskqueue.Config{
		Workers:   cfg.PropagationWorkers,
		QueueSize: cfg.PropagationQueueSize,
	}, logger)
	a.pool.Start(ctx)

	a.engine = propagation.NewEngine(a.catalogue, logger)
	a.engine.SetPool(a.pool)

	trigger := activation.NewTrigger(a.catalogue, a.engine, a.registry, a.pool, a.events, logger)
	a.registry.SetActivationNotifier(trigger)
	a.registry.SetDefaultChangeHandler(trigger)

	a.reconciler = reconcile.New(db, a.catalogue, a.engine, a.registry, a.events, logger)
	a.translations = service.NewTranslationService(db, a.catalogue, a.registry, a.engine, syncpolicy.New(mode), logger)
	return a, nil
}

// bootstrap reconciles the configured language set and warms the cache.
func (a *app) bootstrap(ctx context.Context, cfg *config.Config) error {
	if err := a.registry.Bootstrap(ctx, cfg.BootstrapLanguages, cfg.DefaultLanguage); err != nil {
		return fmt.Errorf("bootstrapping languages: %w", err)
	}
	if err := a.languageCache.Preload(ctx); err != nil {
		slog.Warn("failed to preload language cache", "error", err)
	}
	return nil
}
