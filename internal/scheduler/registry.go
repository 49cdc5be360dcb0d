// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/olegiv/ocms-langsync/internal/apperr"
	"github.com/olegiv/ocms-langsync/internal/store"
)

// ErrTriggerThrottled is returned when a job is triggered manually too often.
var ErrTriggerThrottled = errors.New("manual trigger rate limit exceeded")

// One manual trigger per job every 10 seconds, with a burst of 1.
const (
	triggerInterval = 10 * time.Second
	triggerBurst    = 1
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// registeredJob holds metadata about a registered cron job.
type registeredJob struct {
	source          string
	name            string
	description     string
	defaultSchedule string
	schedule        string // effective schedule (override or default)
	cronInstance    *cron.Cron
	entryID         cron.EntryID
	jobFunc         func()
	triggerFunc     func() error // nil if manual trigger not allowed
	limiter         *rate.Limiter
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Source          string    `json:"source"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DefaultSchedule string    `json:"default_schedule"`
	Schedule        string    `json:"schedule"`
	IsOverridden    bool      `json:"is_overridden"`
	LastRun         time.Time `json:"last_run"`
	NextRun         time.Time `json:"next_run"`
	CanTrigger      bool      `json:"can_trigger"`
}

// Registry tracks the scheduled jobs and their persisted schedule overrides.
type Registry struct {
	queries *store.Queries
	logger  *slog.Logger
	mu      sync.RWMutex
	jobs    map[string]*registeredJob // key: "source:name"
}

// NewRegistry creates a registry. The scheduler_overrides table comes from
// the store migrations.
func NewRegistry(db *sql.DB, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		queries: store.New(db),
		logger:  logger,
		jobs:    make(map[string]*registeredJob),
	}
}

func jobKey(source, name string) string {
	return source + ":" + name
}

// ValidateSchedule reports whether spec is an accepted cron expression.
func ValidateSchedule(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return apperr.InvalidOperation("invalid cron expression %q: %v", spec, err)
	}
	return nil
}

// GetEffectiveSchedule returns the override schedule if one exists, otherwise the default.
// Call this BEFORE cron.AddFunc to use the correct schedule.
func (r *Registry) GetEffectiveSchedule(source, name, defaultSchedule string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	override, err := r.queries.GetSchedulerOverride(ctx, store.GetSchedulerOverrideParams{
		Source: source,
		Name:   name,
	})
	if err == nil && override != "" {
		if ValidateSchedule(override) == nil {
			return override
		}
		r.logger.Warn("ignoring invalid schedule override", "source", source, "name", name, "schedule", override)
	}
	return defaultSchedule
}

// Register records a job in the registry after it has been added to a cron instance.
func (r *Registry) Register(source, name, description, defaultSchedule string, cronInst *cron.Cron, entryID cron.EntryID, jobFunc func(), triggerFunc func() error) {
	effectiveSchedule := r.GetEffectiveSchedule(source, name, defaultSchedule)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[jobKey(source, name)] = &registeredJob{
		source:          source,
		name:            name,
		description:     description,
		defaultSchedule: defaultSchedule,
		schedule:        effectiveSchedule,
		cronInstance:    cronInst,
		entryID:         entryID,
		jobFunc:         jobFunc,
		triggerFunc:     triggerFunc,
		limiter:         rate.NewLimiter(rate.Every(triggerInterval), triggerBurst),
	}

	r.logger.Debug("registered scheduled job", "source", source, "name", name, "schedule", effectiveSchedule)
}

// List returns all registered jobs sorted by source then name.
func (r *Registry) List() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]JobInfo, 0, len(r.jobs))
	for _, job := range r.jobs {
		info := JobInfo{
			Source:          job.source,
			Name:            job.name,
			Description:     job.description,
			DefaultSchedule: job.defaultSchedule,
			Schedule:        job.schedule,
			IsOverridden:    job.schedule != job.defaultSchedule,
			CanTrigger:      job.triggerFunc != nil,
		}

		if job.cronInstance != nil {
			entry := job.cronInstance.Entry(job.entryID)
			info.NextRun = entry.Next
			info.LastRun = entry.Prev
		}

		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Source != result[j].Source {
			return result[i].Source < result[j].Source
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// TriggerNow manually executes a job immediately. Repeated triggers of the
// same job are throttled with ErrTriggerThrottled.
func (r *Registry) TriggerNow(source, name string) error {
	r.mu.RLock()
	job, ok := r.jobs[jobKey(source, name)]
	r.mu.RUnlock()

	if !ok {
		return apperr.NotFound("job not found: %s:%s", source, name)
	}

	if job.triggerFunc == nil {
		return apperr.InvalidOperation("manual trigger not available for: %s:%s", source, name)
	}

	if !job.limiter.Allow() {
		return ErrTriggerThrottled
	}

	r.logger.Info("manually triggering job", "source", source, "name", name)
	return job.triggerFunc()
}

// UpdateSchedule changes the schedule for a job. Removes the old cron entry,
// adds a new one with the updated schedule, and persists the override to DB.
func (r *Registry) UpdateSchedule(source, name, newSchedule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobKey(source, name)]
	if !ok {
		return apperr.NotFound("job not found: %s:%s", source, name)
	}

	if job.cronInstance == nil || job.jobFunc == nil {
		return apperr.InvalidOperation("job cannot be rescheduled: %s:%s", source, name)
	}

	if err := ValidateSchedule(newSchedule); err != nil {
		return err
	}

	job.cronInstance.Remove(job.entryID)
	newEntryID, err := job.cronInstance.AddFunc(newSchedule, job.jobFunc)
	if err != nil {
		// Re-add with old schedule on failure
		fallbackID, fallbackErr := job.cronInstance.AddFunc(job.schedule, job.jobFunc)
		if fallbackErr != nil {
			return fmt.Errorf("critical: failed to restore schedule after update failure: %w (original: %w)", fallbackErr, err)
		}
		job.entryID = fallbackID
		return fmt.Errorf("failed to apply new schedule: %w", err)
	}

	job.entryID = newEntryID
	job.schedule = newSchedule

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbErr := r.queries.UpsertSchedulerOverride(ctx, store.UpsertSchedulerOverrideParams{
		Source:           source,
		Name:             name,
		OverrideSchedule: newSchedule,
	})
	if dbErr != nil {
		r.logger.Error("failed to persist schedule override", "error", dbErr, "source", source, "name", name)
	}

	r.logger.Info("updated job schedule", "source", source, "name", name, "schedule", newSchedule)
	return nil
}

// Unregister removes a job from the registry, stops its cron entry,
// and deletes any schedule override from the database.
func (r *Registry) Unregister(source, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := jobKey(source, name)
	job, ok := r.jobs[key]
	if !ok {
		return
	}

	if job.cronInstance != nil {
		job.cronInstance.Remove(job.entryID)
	}

	delete(r.jobs, key)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := r.queries.DeleteSchedulerOverride(ctx, store.DeleteSchedulerOverrideParams{
		Source: source,
		Name:   name,
	})
	if err != nil {
		r.logger.Error("failed to delete schedule override on unregister", "error", err, "source", source, "name", name)
	}

	r.logger.Debug("unregistered scheduled job", "source", source, "name", name)
}

// ResetSchedule removes the override and restores the default schedule.
func (r *Registry) ResetSchedule(source, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobKey(source, name)]
	if !ok {
		return apperr.NotFound("job not found: %s:%s", source, name)
	}

	if job.schedule == job.defaultSchedule {
		return nil // Already at default
	}

	if job.cronInstance == nil || job.jobFunc == nil {
		return apperr.InvalidOperation("job cannot be rescheduled: %s:%s", source, name)
	}

	job.cronInstance.Remove(job.entryID)
	newEntryID, err := job.cronInstance.AddFunc(job.defaultSchedule, job.jobFunc)
	if err != nil {
		return fmt.Errorf("failed to restore default schedule: %w", err)
	}

	job.entryID = newEntryID
	job.schedule = job.defaultSchedule

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbErr := r.queries.DeleteSchedulerOverride(ctx, store.DeleteSchedulerOverrideParams{
		Source: source,
		Name:   name,
	})
	if dbErr != nil {
		r.logger.Error("failed to remove schedule override", "error", dbErr, "source", source, "name", name)
	}

	r.logger.Info("reset job schedule to default", "source", source, "name", name, "schedule", job.defaultSchedule)
	return nil
}
