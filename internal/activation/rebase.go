// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package activation

import (
	"context"
	"fmt"

	"github.com/olegiv/ocms-langsync/internal/model"
	"github.com/olegiv/ocms-langsync/internal/store"
)

// DefaultChanging clears the sync flag of every row of the new base language.
// It runs inside the transaction that moves the default flag, so a failure
// rolls the move back. Rows of the previous base are already diverged and
// keep their content.
func (t *Trigger) DefaultChanging(ctx context.Context, q *store.Queries, newBaseID int64) error {
	n, err := t.catalogue.DesyncLanguage(ctx, q, newBaseID)
	if err != nil {
		return fmt.Errorf("taking ownership of base rows: %w", err)
	}
	t.logger.Info("base rows taken over by new default", "language_id", newBaseID, "rows", n)
	return nil
}

// DefaultChanged queues a refresh of every live document so synced rows
// follow the new base. Documents that cannot be queued are left to the next
// reconcile pass.
func (t *Trigger) DefaultChanged(ctx context.Context, newBaseID int64) {
	queued, skipped := 0, 0
	for _, adapter := range t.catalogue.All() {
		ids, err := adapter.ListDocumentIDs(ctx)
		if err != nil {
			t.logger.Error("listing documents for rebase failed", "kind", adapter.Kind(), "error", err)
			continue
		}
		for _, id := range ids {
			if err := t.engine.Enqueue(adapter.Kind(), id); err != nil {
				skipped++
				continue
			}
			queued++
		}
	}

	attrs := []any{"language_id", newBaseID, "queued", queued, "skipped", skipped}
	if skipped > 0 {
		t.logger.Warn("rebase not fully queued, reconcile will converge", attrs...)
		return
	}
	t.logger.Info("rebase queued", attrs...)
	if t.events != nil {
		_ = t.events.LogActivationEvent(ctx, model.EventLevelInfo, "rebase queued", map[string]any{
			"language_id": newBaseID,
			"queued":      queued,
		})
	}
}
