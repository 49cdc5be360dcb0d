// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package activation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-langsync/internal/language"
	"github.com/olegiv/ocms-langsync/internal/model"
)

func TestSetDefault_NewBaseOwnsItsRows(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ko, en := e.code(t, "ko"), e.code(t, "en")
	a := e.adapter(t, model.KindBrochure)

	ja, err := e.registry.Create(ctx, language.CreateParams{Code: "ja", Active: false})
	require.NoError(t, err)

	base := model.Fields{model.FieldTitle: "제품", model.FieldDescription: "설명"}
	docID := e.createDocument(t, model.KindBrochure, 0, base)
	_, err = a.CreateTranslation(ctx, docID, en, base, true)
	require.NoError(t, err)
	_, err = a.CreateTranslation(ctx, docID, ja.ID, model.Fields{model.FieldTitle: "stale"}, true)
	require.NoError(t, err)

	_, err = e.registry.SetDefault(ctx, en)
	require.NoError(t, err)
	e.pool.Stop() // drain the rebase

	row, err := a.GetTranslation(ctx, docID, en)
	require.NoError(t, err)
	assert.False(t, row.IsSynced, "the new base is never synced")
	assert.Equal(t, "제품", row.Fields[model.FieldTitle])

	row, err = a.GetTranslation(ctx, docID, ko)
	require.NoError(t, err)
	assert.False(t, row.IsSynced, "the old base stays diverged")
	assert.Equal(t, "제품", row.Fields[model.FieldTitle])

	row, err = a.GetTranslation(ctx, docID, ja.ID)
	require.NoError(t, err)
	assert.True(t, row.IsSynced)
	assert.Equal(t, "제품", row.Fields[model.FieldTitle], "synced rows follow the new base")

	synced, err := a.ListSyncedTranslations(ctx, docID)
	require.NoError(t, err)
	for _, s := range synced {
		assert.NotEqual(t, en, s.LanguageID)
	}
}

func TestBootstrap_CorrectedDefaultOwnsItsRows(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	en := e.code(t, "en")
	vote := e.adapter(t, model.KindVoteResult)

	meeting := e.createDocument(t, model.KindShareholdersMeeting, 0, model.Fields{model.FieldTitle: "총회"})
	voteID := e.createDocument(t, model.KindVoteResult, meeting, model.Fields{model.FieldTitle: "의안"})
	_, err := vote.CreateTranslation(ctx, voteID, en, model.Fields{model.FieldTitle: "의안"}, true)
	require.NoError(t, err)

	require.NoError(t, e.registry.Bootstrap(ctx, []string{"ko", "en"}, "en"))

	row, err := vote.GetTranslation(ctx, voteID, en)
	require.NoError(t, err)
	assert.False(t, row.IsSynced)

	base, err := vote.GetBaseTranslation(ctx, voteID)
	require.NoError(t, err)
	assert.Equal(t, en, base.LanguageID)
}
