// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package taskqueue runs background work on a bounded worker pool.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueFull is returned when the queue has no free slot.
	ErrQueueFull = errors.New("task queue is full")
	// ErrNotRunning is returned when submitting to a stopped pool.
	ErrNotRunning = errors.New("task queue is not running")
)

// Task is a unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config holds pool configuration.
type Config struct {
	Workers   int // Number of concurrent workers
	QueueSize int // Buffered tasks beyond those being run
}

// DefaultConfig returns default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 256,
	}
}

// Stats holds pool counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Queued    int   `json:"queued"`
	Running   bool  `json:"running"`
}

// Pool is a fixed set of workers draining a buffered channel.
type Pool struct {
	logger  *slog.Logger
	workers int
	size    int

	mu      sync.RWMutex
	queue   chan Task
	running bool
	wg      sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// New creates a pool. Call Start before submitting.
func New(cfg Config, logger *slog.Logger) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		logger:  logger,
		workers: cfg.Workers,
		size:    cfg.QueueSize,
	}
}

// Start starts the workers. Tasks run with a context detached from ctx's
// cancellation so that Stop can drain the queue during shutdown.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.queue = make(chan Task, p.size)
	queue := p.queue
	p.mu.Unlock()

	p.logger.Info("starting task pool", "workers", p.workers, "queue_size", p.size)

	taskCtx := context.WithoutCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(taskCtx, i, queue)
	}
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrNotRunning
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	default:
		p.dropped.Add(1)
		p.logger.Warn("task queue full, dropping task", "task", task.Name)
		return ErrQueueFull
	}
}

// Stop closes intake and waits for queued tasks to finish.
func (p *Pool) Stop() {
	_ = p.Shutdown(context.Background())
}

// Shutdown closes intake and waits for queued tasks until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.queue)
	pending := len(p.queue)
	p.mu.Unlock()

	p.logger.Info("stopping task pool", "pending", pending)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("task pool stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task pool drain: %w", ctx.Err())
	}
}

// Stats returns pool counters.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	queued := len(p.queue)
	running := p.running
	p.mu.RUnlock()

	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Queued:    queued,
		Running:   running,
	}
}

// worker runs tasks until the queue is closed and empty.
func (p *Pool) worker(ctx context.Context, id int, queue <-chan Task) {
	defer p.wg.Done()
	p.logger.Debug("task worker started", "worker_id", id)

	for task := range queue {
		p.run(ctx, id, task)
	}

	p.logger.Debug("task worker stopping", "worker_id", id)
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	start := time.Now()
	err := safeRun(ctx, task)
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("task failed",
			"worker_id", id,
			"task", task.Name,
			"duration", time.Since(start),
			"error", err)
		return
	}

	p.completed.Add(1)
	p.logger.Debug("task completed",
		"worker_id", id,
		"task", task.Name,
		"duration", time.Since(start))
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if task.Run == nil {
		return errors.New("task has no function")
	}
	return task.Run(ctx)
}
