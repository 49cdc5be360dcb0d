// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Document kinds. Each kind has its own translation table.
const (
	KindBrochure             = "brochure"
	KindElectronicDisclosure = "electronic_disclosure"
	KindIR                   = "ir"
	KindNews                 = "news"
	KindMainPopup            = "main_popup"
	KindShareholdersMeeting  = "shareholders_meeting"
	KindVoteResult           = "vote_result" // nested under shareholders_meeting
)

// Translatable field names shared across kinds.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldContent     = "content"
	FieldLocation    = "location"
	FieldResultText  = "result_text"
	FieldSummary     = "summary"
)

// Fields holds translatable values keyed by column name.
type Fields map[string]string

// Clone returns a copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Pick returns the subset of f restricted to names. Missing names map to "".
func (f Fields) Pick(names []string) Fields {
	out := make(Fields, len(names))
	for _, n := range names {
		out[n] = f[n]
	}
	return out
}

// EqualOn reports whether f and other hold the same values for every name.
func (f Fields) EqualOn(other Fields, names []string) bool {
	for _, n := range names {
		if f[n] != other[n] {
			return false
		}
	}
	return true
}

// Translation is one per-language row of a translatable document.
type Translation struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	DocumentID int64     `json:"document_id"`
	LanguageID int64     `json:"language_id"`
	Fields     Fields    `json:"fields"`
	IsSynced   bool      `json:"is_synced"` // mirrors the base row until an editor diverges it
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
