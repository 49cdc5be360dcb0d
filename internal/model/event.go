// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryLanguage    = "language"
	EventCategoryPropagation = "propagation"
	EventCategoryActivation  = "activation"
	EventCategoryReconcile   = "reconcile"
	EventCategorySystem      = "system"
)

// SyncEvent is an entry in the sync event log.
type SyncEvent struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	Metadata  string // JSON string
	CreatedAt time.Time
}
