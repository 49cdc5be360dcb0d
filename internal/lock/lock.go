// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package lock provides leased mutual exclusion for singleton jobs.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lease is a held lock.
type Lease interface {
	// Release gives the lock up. Releasing an expired or stolen lease is a no-op.
	Release(ctx context.Context) error
	// Extend resets the lease to ttl from now. It returns ErrLeaseLost when
	// the lease expired or another holder took the key.
	Extend(ctx context.Context, ttl time.Duration) error
}

// ErrLeaseLost is returned by Extend when the lease is no longer ours.
var ErrLeaseLost = errors.New("lock lease lost")

// Locker grants leases on named keys.
type Locker interface {
	// TryAcquire returns ok=false without error when another holder owns key.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (lease Lease, ok bool, err error)
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]memoryEntry),
		clock: time.Now,
	}
}

// TryAcquire implements Locker.
func (m *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return nil, false, nil
	}

	token := uuid.NewString()
	m.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return &memoryLease{locker: m, key: key, token: token}, true, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (l *memoryLease) Extend(_ context.Context, ttl time.Duration) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	now := l.locker.clock()
	e, ok := l.locker.held[l.key]
	if !ok || e.token != l.token || !now.Before(e.expires) {
		return ErrLeaseLost
	}
	l.locker.held[l.key] = memoryEntry{token: l.token, expires: now.Add(ttl)}
	return nil
}

func (l *memoryLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if e, ok := l.locker.held[l.key]; ok && e.token == l.token {
		delete(l.locker.held, l.key)
	}
	return nil
}
