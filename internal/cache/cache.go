// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the in-memory language cache and its cross-instance
// invalidation channel.
package cache

import (
	"sync/atomic"
	"time"
)

// Stats holds cache statistics.
type Stats struct {
	Hits     int64      `json:"hits"`
	Misses   int64      `json:"misses"`
	Loads    int64      `json:"loads"`
	Items    int        `json:"items"`
	HitRate  float64    `json:"hit_rate"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}

// counters tracks hit/miss/load statistics.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
}

func (c *counters) snapshot() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Loads:   c.loads.Load(),
		HitRate: hitRate,
	}
}

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.loads.Store(0)
}
