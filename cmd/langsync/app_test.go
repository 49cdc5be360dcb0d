// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-langsync/internal/config"
	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/service"
	"github.com/olegiv/ocms-langsync/internal/store"
	"github.com/olegiv/ocms-langsync/internal/testutil"
)

func testConfig(codes ...string) *config.Config {
	return &config.Config{
		DefaultLanguage:      "ko",
		BootstrapLanguages:   codes,
		InitialSyncMode:      config.SyncModeExplicitContent,
		PropagationWorkers:   2,
		PropagationQueueSize: 16,
	}
}

func TestBootstrap_BackfillsLanguageAddedOnRestart(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)

	first, err := newApp(ctx, testConfig("ko", "en"), db, testutil.TestLoggerSilent())
	require.NoError(t, err)
	require.NoError(t, first.bootstrap(ctx, testConfig("ko", "en")))

	doc, err := first.translations.AuthorDocument(ctx, model.KindBrochure, service.AuthorParams{
		Base: model.Fields{model.FieldTitle: "회사 소개서"},
	})
	require.NoError(t, err)
	first.pool.Stop()

	// ja is new in the configured set on the next start.
	restarted, err := newApp(ctx, testConfig("ko", "en", "ja"), db, testutil.TestLoggerSilent())
	require.NoError(t, err)
	t.Cleanup(restarted.pool.Stop)
	require.NoError(t, restarted.bootstrap(ctx, testConfig("ko", "en", "ja")))

	ja, err := store.New(db).GetLanguageByCode(ctx, "ja")
	require.NoError(t, err)
	brochure, err := restarted.catalogue.Get(model.KindBrochure)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		row, err := brochure.GetTranslation(ctx, doc.Document.ID, ja.ID)
		return err == nil && row.IsSynced
	}, 5*time.Second, 20*time.Millisecond, "bootstrap activation back-fills the new language")

	row, err := brochure.GetTranslation(ctx, doc.Document.ID, ja.ID)
	require.NoError(t, err)
	assert.Equal(t, "회사 소개서", row.Fields[model.FieldTitle])
}
