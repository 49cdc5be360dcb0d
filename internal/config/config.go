// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the langsync service configuration from the environment.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// Initial sync modes decide how a newly created non-default translation is flagged.
const (
	SyncModeExplicitContent = "explicit-content"
	SyncModeAlwaysSynced    = "always-synced"
	SyncModeAlwaysDiverged  = "always-diverged"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validSyncModes = []string{SyncModeExplicitContent, SyncModeAlwaysSynced, SyncModeAlwaysDiverged}
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"LANGSYNC_DB_PATH" envDefault:"./data/langsync.db"`
	Env        string `env:"LANGSYNC_ENV" envDefault:"development"`
	LogLevel   string `env:"LANGSYNC_LOG_LEVEL" envDefault:"info"`
	ServerHost string `env:"LANGSYNC_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"LANGSYNC_SERVER_PORT" envDefault:"8080"`
	AdminToken string `env:"LANGSYNC_ADMIN_TOKEN"` // Optional bearer token for the admin API

	APIRateLimit   float64 `env:"LANGSYNC_API_RATE_LIMIT" envDefault:"20"`   // Requests per second per IP
	RequestTimeout int     `env:"LANGSYNC_REQUEST_TIMEOUT" envDefault:"30"` // Seconds

	// Languages
	DefaultLanguage    string   `env:"LANGSYNC_DEFAULT_LANGUAGE" envDefault:"ko"`
	BootstrapLanguages []string `env:"LANGSYNC_BOOTSTRAP_LANGUAGES" envDefault:"ko,en,ja,zh" envSeparator:","`
	LanguageCacheTTL   int      `env:"LANGSYNC_LANGUAGE_CACHE_TTL" envDefault:"300"` // Seconds, 0 keeps until invalidated

	// Synchronization
	InitialSyncMode      string `env:"LANGSYNC_INITIAL_SYNC_MODE" envDefault:"explicit-content"`
	ReconcileSchedule    string `env:"LANGSYNC_RECONCILE_SCHEDULE" envDefault:"@every 1m"`
	PropagationWorkers   int    `env:"LANGSYNC_PROPAGATION_WORKERS" envDefault:"4"`
	PropagationQueueSize int    `env:"LANGSYNC_PROPAGATION_QUEUE_SIZE" envDefault:"256"`
	EventRetentionDays   int    `env:"LANGSYNC_EVENT_RETENTION_DAYS" envDefault:"30"`

	// Distributed coordination
	RedisURL   string `env:"LANGSYNC_REDIS_URL"` // Optional; enables the shared reconcile lock
	LockPrefix string `env:"LANGSYNC_LOCK_PREFIX" envDefault:"langsync:"`
	LockTTL    int    `env:"LANGSYNC_LOCK_TTL" envDefault:"300"` // Seconds

	ShutdownTimeout int `env:"LANGSYNC_SHUTDOWN_TIMEOUT" envDefault:"30"` // Seconds
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if Redis coordination is configured.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// LockTTLDuration returns the reconcile lock lease.
func (c Config) LockTTLDuration() time.Duration {
	return time.Duration(c.LockTTL) * time.Second
}

// ShutdownTimeoutDuration returns the graceful shutdown budget.
func (c Config) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// RequestTimeoutDuration returns the per-request deadline of the admin API.
func (c Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// LanguageCacheTTLDuration returns the language cache TTL.
func (c Config) LanguageCacheTTLDuration() time.Duration {
	return time.Duration(c.LanguageCacheTTL) * time.Second
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field values that env tags cannot express.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("LANGSYNC_LOG_LEVEL must be one of %s, got %q",
			strings.Join(validLogLevels, ", "), c.LogLevel)
	}

	if !slices.Contains(validSyncModes, c.InitialSyncMode) {
		return fmt.Errorf("LANGSYNC_INITIAL_SYNC_MODE must be one of %s, got %q",
			strings.Join(validSyncModes, ", "), c.InitialSyncMode)
	}

	if c.PropagationWorkers < 1 {
		return fmt.Errorf("LANGSYNC_PROPAGATION_WORKERS must be positive, got %d", c.PropagationWorkers)
	}
	if c.PropagationQueueSize < 1 {
		return fmt.Errorf("LANGSYNC_PROPAGATION_QUEUE_SIZE must be positive, got %d", c.PropagationQueueSize)
	}
	if c.LockTTL < 1 {
		return fmt.Errorf("LANGSYNC_LOCK_TTL must be positive, got %d", c.LockTTL)
	}
	if c.ShutdownTimeout < 1 {
		return fmt.Errorf("LANGSYNC_SHUTDOWN_TIMEOUT must be positive, got %d", c.ShutdownTimeout)
	}
	if c.RequestTimeout < 1 {
		return fmt.Errorf("LANGSYNC_REQUEST_TIMEOUT must be positive, got %d", c.RequestTimeout)
	}
	if c.APIRateLimit <= 0 {
		return fmt.Errorf("LANGSYNC_API_RATE_LIMIT must be positive, got %v", c.APIRateLimit)
	}
	if c.EventRetentionDays < 0 {
		return fmt.Errorf("LANGSYNC_EVENT_RETENTION_DAYS must not be negative, got %d", c.EventRetentionDays)
	}

	langs := make([]string, 0, len(c.BootstrapLanguages))
	for _, code := range c.BootstrapLanguages {
		if code = strings.TrimSpace(code); code != "" {
			langs = append(langs, code)
		}
	}
	c.BootstrapLanguages = langs
	c.DefaultLanguage = strings.TrimSpace(c.DefaultLanguage)
	if c.DefaultLanguage == "" {
		return fmt.Errorf("LANGSYNC_DEFAULT_LANGUAGE must not be empty")
	}
	if !slices.Contains(c.BootstrapLanguages, c.DefaultLanguage) {
		return fmt.Errorf("LANGSYNC_DEFAULT_LANGUAGE %q must be listed in LANGSYNC_BOOTSTRAP_LANGUAGES", c.DefaultLanguage)
	}

	if _, err := cron.ParseStandard(c.ReconcileSchedule); err != nil {
		return fmt.Errorf("LANGSYNC_RECONCILE_SCHEDULE %q is invalid: %w", c.ReconcileSchedule, err)
	}

	return nil
}
