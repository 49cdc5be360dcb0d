// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/olegiv/ocms-langsync/internal/store"
)

// LanguageLoader loads the live language set.
type LanguageLoader interface {
	ListLanguages(ctx context.Context) ([]store.Language, error)
}

// LanguageCache provides cached access to languages.
// Propagation resolves the default language once per row, so the set is kept in
// memory and reloaded after any mutation or when the TTL expires.
type LanguageCache struct {
	loader LanguageLoader
	ttl    time.Duration
	stats  counters

	mu          sync.RWMutex
	languages   []store.Language
	active      []store.Language
	byID        map[int64]store.Language
	byCode      map[string]store.Language
	defaultLang *store.Language
	loadedAt    time.Time
	loaded      bool
}

// NewLanguageCache creates a new language cache.
// A zero ttl keeps entries until Invalidate is called.
func NewLanguageCache(loader LanguageLoader, ttl time.Duration) *LanguageCache {
	return &LanguageCache{
		loader: loader,
		ttl:    ttl,
		byID:   make(map[int64]store.Language),
		byCode: make(map[string]store.Language),
	}
}

func (c *LanguageCache) fresh() bool {
	return c.loaded && (c.ttl == 0 || time.Since(c.loadedAt) < c.ttl)
}

// ensure loads the set when stale. Callers must not hold the lock.
func (c *LanguageCache) ensure(ctx context.Context) error {
	c.mu.RLock()
	ok := c.fresh()
	c.mu.RUnlock()
	if ok {
		return nil
	}
	return c.loadAll(ctx)
}

// GetAll retrieves all live languages.
func (c *LanguageCache) GetAll(ctx context.Context) ([]store.Language, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	c.stats.hits.Add(1)
	return append([]store.Language(nil), c.languages...), nil
}

// GetActive retrieves only active languages.
func (c *LanguageCache) GetActive(ctx context.Context) ([]store.Language, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	c.stats.hits.Add(1)
	return append([]store.Language(nil), c.active...), nil
}

// GetByID retrieves a live language by id. It returns sql.ErrNoRows when absent.
func (c *LanguageCache) GetByID(ctx context.Context, id int64) (store.Language, error) {
	if err := c.ensure(ctx); err != nil {
		return store.Language{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if lang, ok := c.byID[id]; ok {
		c.stats.hits.Add(1)
		return lang, nil
	}
	c.stats.misses.Add(1)
	return store.Language{}, sql.ErrNoRows
}

// GetByCode retrieves a live language by code. It returns sql.ErrNoRows when absent.
func (c *LanguageCache) GetByCode(ctx context.Context, code string) (store.Language, error) {
	if err := c.ensure(ctx); err != nil {
		return store.Language{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if lang, ok := c.byCode[code]; ok {
		c.stats.hits.Add(1)
		return lang, nil
	}
	c.stats.misses.Add(1)
	return store.Language{}, sql.ErrNoRows
}

// GetDefault retrieves the default language. It returns sql.ErrNoRows when none is set.
func (c *LanguageCache) GetDefault(ctx context.Context) (store.Language, error) {
	if err := c.ensure(ctx); err != nil {
		return store.Language{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.defaultLang != nil {
		c.stats.hits.Add(1)
		return *c.defaultLang, nil
	}
	c.stats.misses.Add(1)
	return store.Language{}, sql.ErrNoRows
}

// loadAll loads all languages from the database.
func (c *LanguageCache) loadAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.fresh() {
		return nil
	}

	languages, err := c.loader.ListLanguages(ctx)
	if err != nil {
		return err
	}

	c.languages = languages
	c.byID = make(map[int64]store.Language, len(languages))
	c.byCode = make(map[string]store.Language, len(languages))
	c.active = make([]store.Language, 0, len(languages))
	c.defaultLang = nil

	for _, lang := range languages {
		c.byID[lang.ID] = lang
		c.byCode[lang.Code] = lang
		if lang.IsActive {
			c.active = append(c.active, lang)
		}
		if lang.IsDefault {
			langCopy := lang
			c.defaultLang = &langCopy
		}
	}

	c.loaded = true
	c.loadedAt = time.Now()
	c.stats.loads.Add(1)

	return nil
}

// Invalidate clears the cache, forcing a reload on next access.
func (c *LanguageCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.languages = nil
	c.active = nil
	c.byID = make(map[int64]store.Language)
	c.byCode = make(map[string]store.Language)
	c.defaultLang = nil
}

// Stats returns cache statistics.
func (c *LanguageCache) Stats() Stats {
	stats := c.stats.snapshot()
	c.mu.RLock()
	stats.Items = len(c.languages)
	if c.loaded {
		at := c.loadedAt
		stats.LoadedAt = &at
	}
	c.mu.RUnlock()
	return stats
}

// ResetStats resets the cache statistics.
func (c *LanguageCache) ResetStats() {
	c.stats.reset()
}

// Preload loads all languages into cache.
func (c *LanguageCache) Preload(ctx context.Context) error {
	return c.loadAll(ctx)
}
