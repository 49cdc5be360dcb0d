// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Invalidator tells other service instances that the language set changed.
type Invalidator interface {
	Publish(ctx context.Context) error
}

// NopInvalidator is used when the service runs as a single instance.
type NopInvalidator struct{}

// Publish does nothing.
func (NopInvalidator) Publish(context.Context) error { return nil }

// RedisInvalidator broadcasts language-set changes over a Redis channel so
// every instance drops its LanguageCache.
type RedisInvalidator struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisInvalidator creates an invalidator publishing on prefix+"languages:invalidate".
func NewRedisInvalidator(client *redis.Client, prefix string, logger *slog.Logger) *RedisInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisInvalidator{
		client:  client,
		channel: prefix + "languages:invalidate",
		logger:  logger,
	}
}

// Publish announces a change.
func (r *RedisInvalidator) Publish(ctx context.Context) error {
	return r.client.Publish(ctx, r.channel, "1").Err()
}

// Listen invalidates c whenever another instance publishes, until ctx is done.
func (r *RedisInvalidator) Listen(ctx context.Context, c *LanguageCache) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Debug("listening for language invalidations", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("language invalidation channel closed")
			}
			c.Invalidate()
			r.logger.Debug("language cache invalidated by peer", "channel", msg.Channel)
		}
	}
}
