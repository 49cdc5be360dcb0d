// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package propagation

import (
	"encoding/json"

	"github.com/olegiv/ocms-langsync/internal/apperr"
)

// RowFailure records one translation row that could not be written.
// LanguageID is zero when the failure happened before rows were listed.
type RowFailure struct {
	Kind       string
	DocumentID int64
	LanguageID int64
	Err        error
}

// MarshalJSON renders Err as a string.
func (f RowFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Kind       string `json:"kind"`
		DocumentID int64  `json:"document_id"`
		LanguageID int64  `json:"language_id,omitempty"`
		Error      string `json:"error"`
	}{f.Kind, f.DocumentID, f.LanguageID, msg})
}

// Result summarises one fan-out, nested sub-records included.
type Result struct {
	Kind       string       `json:"kind"`
	DocumentID int64        `json:"document_id"`
	Succeeded  int          `json:"succeeded"` // rows rewritten
	Unchanged  int          `json:"unchanged"` // synced rows already equal to base
	Skipped    int          `json:"skipped"`   // rows diverged between listing and writing
	Failed     int          `json:"failed"`
	Failures   []RowFailure `json:"failures,omitempty"`
}

// Merge adds other's counters and failures to r.
func (r *Result) Merge(other Result) {
	r.Succeeded += other.Succeeded
	r.Unchanged += other.Unchanged
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Failures = append(r.Failures, other.Failures...)
}

// Total returns the number of rows attempted.
func (r Result) Total() int {
	return r.Succeeded + r.Unchanged + r.Skipped + r.Failed
}

// Err returns a partial-failure error when any row failed.
func (r Result) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return apperr.PartialFailure(r.Failed, r.Total())
}

func (r *Result) fail(kind string, documentID, languageID int64, err error) {
	r.Failed++
	r.Failures = append(r.Failures, RowFailure{
		Kind:       kind,
		DocumentID: documentID,
		LanguageID: languageID,
		Err:        err,
	})
}
