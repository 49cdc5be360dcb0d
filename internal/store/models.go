// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"time"
)

// Language is a row of the languages table.
type Language struct {
	ID         int64          `json:"id"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	NativeName string         `json:"native_name"`
	Position   int64          `json:"position"`
	IsActive   bool           `json:"is_active"`
	IsDefault  bool           `json:"is_default"`
	CreatedBy  sql.NullString `json:"-"`
	UpdatedBy  sql.NullString `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  sql.NullTime   `json:"-"`
}

// Document is a row of the documents table. Nested sub-records (vote results)
// reference their owner through ParentID.
type Document struct {
	ID          int64         `json:"id"`
	Kind        string        `json:"kind"`
	ParentID    sql.NullInt64 `json:"-"`
	Position    int64         `json:"position"`
	IsPublished bool          `json:"is_published"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	DeletedAt   sql.NullTime  `json:"-"`
}

// TranslationRow is a row of one of the per-kind translation tables.
type TranslationRow struct {
	ID         int64
	DocumentID int64
	LanguageID int64
	Fields     map[string]string
	IsSynced   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Event is a row of the sync_events table.
type Event struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// ReconcileRun records one reconciliation pass.
type ReconcileRun struct {
	ID         int64        `json:"id"`
	RunID      string       `json:"run_id"`
	Status     string       `json:"status"`
	Scanned    int64        `json:"scanned"`
	Corrected  int64        `json:"corrected"`
	Created    int64        `json:"created"`
	Failed     int64        `json:"failed"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt sql.NullTime `json:"-"`
}
