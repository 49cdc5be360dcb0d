// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides the editor-facing translation workflows and the
// audit event log.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/store"
)

// EventService records audit entries in the sync event log.
// Warnings and errors reach the log through logging.EventLogHandler; this
// service is for info-level state changes worth keeping.
type EventService struct {
	queries *store.Queries
	logger  *slog.Logger
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
		queries: store.New(db),
		logger:  logger,
	}
}

// LogEvent creates a new event log entry.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, metadata map[string]any) error {
	metadataJSON := "{}"
	if metadata != nil {
		jsonBytes, err := json.Marshal(metadata)
		if err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		Metadata:  metadataJSON,
		CreatedAt: time.Now(),
	})
	if err != nil {
		s.logger.Debug("failed to log event", "error", err, "message", message)
		return err
	}

	return nil
}

// LogLanguageEvent logs a language registry change.
func (s *EventService) LogLanguageEvent(ctx context.Context, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelInfo, model.EventCategoryLanguage, message, metadata)
}

// LogActivationEvent logs the outcome of a language back-fill.
func (s *EventService) LogActivationEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryActivation, message, metadata)
}

// LogReconcileEvent logs a reconciliation summary.
func (s *EventService) LogReconcileEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryReconcile, message, metadata)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.queries.DeleteEventsBefore(ctx, time.Now().Add(-olderThan))
}

// RecentEvents returns the newest entries first.
func (s *EventService) RecentEvents(ctx context.Context, limit int64) ([]store.Event, error) {
	return s.queries.ListRecentEvents(ctx, limit)
}
