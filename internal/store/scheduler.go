// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import "context"

// GetSchedulerOverrideParams holds the values for GetSchedulerOverride.
type GetSchedulerOverrideParams struct {
	Source string
	Name   string
}

// GetSchedulerOverride returns the persisted cron override for a job.
func (q *Queries) GetSchedulerOverride(ctx context.Context, arg GetSchedulerOverrideParams) (string, error) {
	var schedule string
	err := q.db.QueryRowContext(ctx, `
		SELECT override_schedule FROM scheduler_overrides WHERE source = ? AND name = ?`,
		arg.Source, arg.Name).Scan(&schedule)
	return schedule, err
}

// UpsertSchedulerOverrideParams holds the values for UpsertSchedulerOverride.
type UpsertSchedulerOverrideParams struct {
	Source           string
	Name             string
	OverrideSchedule string
}

// UpsertSchedulerOverride persists a cron override for a job.
func (q *Queries) UpsertSchedulerOverride(ctx context.Context, arg UpsertSchedulerOverrideParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO scheduler_overrides (source, name, override_schedule, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (source, name) DO UPDATE SET
			override_schedule = excluded.override_schedule,
			updated_at = CURRENT_TIMESTAMP`,
		arg.Source, arg.Name, arg.OverrideSchedule)
	return err
}

// DeleteSchedulerOverrideParams holds the values for DeleteSchedulerOverride.
type DeleteSchedulerOverrideParams struct {
	Source string
	Name   string
}

// DeleteSchedulerOverride removes a persisted cron override.
func (q *Queries) DeleteSchedulerOverride(ctx context.Context, arg DeleteSchedulerOverrideParams) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM scheduler_overrides WHERE source = ? AND name = ?`,
		arg.Source, arg.Name)
	return err
}
