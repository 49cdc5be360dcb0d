// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

// Reconcile run statuses.
const (
	RunStatusRunning     = "running"
	RunStatusCompleted   = "completed"
	RunStatusInterrupted = "interrupted"
)

// CreateReconcileRun records the start of a pass.
func (q *Queries) CreateReconcileRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO reconcile_runs (run_id, status, started_at) VALUES (?, ?, ?)`,
		runID, RunStatusRunning, startedAt)
	return err
}

// FinishReconcileRunParams holds the values for FinishReconcileRun.
type FinishReconcileRunParams struct {
	RunID      string
	Status     string
	Scanned    int64
	Corrected  int64
	Created    int64
	Failed     int64
	FinishedAt time.Time
}

// FinishReconcileRun stores the outcome of a pass.
func (q *Queries) FinishReconcileRun(ctx context.Context, arg FinishReconcileRunParams) error {
	return q.execOne(ctx, `
		UPDATE reconcile_runs
		SET status = ?, scanned = ?, corrected = ?, created = ?, failed = ?, finished_at = ?
		WHERE run_id = ?`,
		arg.Status, arg.Scanned, arg.Corrected, arg.Created, arg.Failed, arg.FinishedAt, arg.RunID)
}

// ListReconcileRuns returns the newest runs first.
func (q *Queries) ListReconcileRuns(ctx context.Context, limit int64) ([]ReconcileRun, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, run_id, status, scanned, corrected, created, failed, started_at, finished_at
		FROM reconcile_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []ReconcileRun
	for rows.Next() {
		var r ReconcileRun
		if err := rows.Scan(&r.ID, &r.RunID, &r.Status, &r.Scanned, &r.Corrected, &r.Created, &r.Failed,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
