// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic reconcile pass and event retention
// cleanup on cron schedules that can be overridden at runtime.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/ocms-langsync/internal/apperr"
	"github.com/olegiv/ocms-langsync/internal/reconcile"
	"github.com/olegiv/ocms-langsync/internal/service"
)

// Job identifiers used in the registry.
const (
	SourceCore       = "core"
	JobReconcile     = "reconcile"
	JobEventCleanup  = "event-cleanup"
	cleanupSchedule  = "@daily"
	defaultRetention = 30 * 24 * time.Hour
)

// Config controls the schedules of the built-in jobs.
type Config struct {
	ReconcileSchedule string
	EventRetention    time.Duration
}

// Scheduler owns the cron instance and the built-in jobs.
type Scheduler struct {
	cron       *cron.Cron
	registry   *Registry
	reconciler *reconcile.Reconciler
	events     *service.EventService
	cfg        Config
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. events may be nil, in which case no cleanup job is registered.
func New(registry *Registry, reconciler *reconcile.Reconciler, events *service.EventService, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EventRetention <= 0 {
		cfg.EventRetention = defaultRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		registry:   registry,
		reconciler: reconciler,
		events:     events,
		cfg:        cfg,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Registry returns the job registry.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Start registers the built-in jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.reconciler != nil {
		if err := s.add(JobReconcile, "Rewrite synced translations that drifted from their base row",
			s.cfg.ReconcileSchedule, s.runReconcile, s.triggerReconcile); err != nil {
			return err
		}
	}

	if s.events != nil {
		if err := s.add(JobEventCleanup, "Delete audit events past the retention period",
			cleanupSchedule, s.runCleanup, func() error { s.runCleanup(); return nil }); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

func (s *Scheduler) add(name, description, defaultSchedule string, jobFunc func(), triggerFunc func() error) error {
	schedule := s.registry.GetEffectiveSchedule(SourceCore, name, defaultSchedule)
	entryID, err := s.cron.AddFunc(schedule, jobFunc)
	if err != nil {
		return apperr.InvalidOperation("invalid schedule %q for %s: %v", schedule, name, err)
	}
	s.registry.Register(SourceCore, name, description, defaultSchedule, s.cron, entryID, jobFunc, triggerFunc)
	return nil
}

// Stop interrupts an in-flight reconcile pass between documents and waits
// for running jobs to return, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out", "error", ctx.Err())
	}
}

func (s *Scheduler) runReconcile() {
	summary, err := s.reconciler.RunOnce(s.ctx)
	switch {
	case errors.Is(err, reconcile.ErrRunInProgress):
		s.logger.Debug("scheduled reconcile skipped", "reason", err)
	case err != nil:
		s.logger.Error("scheduled reconcile failed", "error", err)
	default:
		s.logger.Debug("scheduled reconcile done", "run_id", summary.RunID, "corrected", summary.Corrected)
	}
}

// triggerReconcile starts a pass in the background. It refuses when one is
// already running in this process.
func (s *Scheduler) triggerReconcile() error {
	if s.reconciler.Running() {
		return apperr.Conflict("%v", reconcile.ErrRunInProgress)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runReconcile()
	}()
	return nil
}

func (s *Scheduler) runCleanup() {
	deleted, err := s.events.DeleteOldEvents(s.ctx, s.cfg.EventRetention)
	if err != nil {
		s.logger.Error("event cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("deleted old events", "count", deleted, "retention", s.cfg.EventRetention)
	}
}
