// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import "github.com/olegiv/ocms-langsync/internal/model"

// KindSpec describes one translatable document kind.
type KindSpec struct {
	Kind   string
	Table  string
	Fields []string
	// Nested lists the kinds of sub-records owned by documents of this kind.
	Nested []string
}

// DefaultKinds returns the document kinds served by the service.
func DefaultKinds() []KindSpec {
	titled := []string{model.FieldTitle, model.FieldDescription}

	return []KindSpec{
		{Kind: model.KindBrochure, Table: "brochure_translations", Fields: titled},
		{Kind: model.KindElectronicDisclosure, Table: "electronic_disclosure_translations", Fields: titled},
		{Kind: model.KindIR, Table: "ir_translations", Fields: titled},
		{Kind: model.KindNews, Table: "news_translations",
			Fields: []string{model.FieldTitle, model.FieldDescription, model.FieldContent}},
		{Kind: model.KindMainPopup, Table: "main_popup_translations", Fields: titled},
		{Kind: model.KindShareholdersMeeting, Table: "shareholders_meeting_translations",
			Fields: []string{model.FieldTitle, model.FieldDescription, model.FieldLocation},
			Nested: []string{model.KindVoteResult}},
		{Kind: model.KindVoteResult, Table: "vote_result_translations",
			Fields: []string{model.FieldTitle, model.FieldResultText, model.FieldSummary}},
	}
}
