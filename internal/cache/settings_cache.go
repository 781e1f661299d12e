// Package cache keeps the system settings row in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/senseirm/internal/domain"
)

const settingsKey = "senseirm:settings"

// ErrMiss is returned when nothing is cached.
var ErrMiss = errors.New("cache miss")

// SettingsCache stores serialized settings under a single key.
type SettingsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSettingsCache returns a cache bound to client. A nil client yields a cache that
// always misses.
func NewSettingsCache(client *redis.Client, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SettingsCache{client: client, ttl: ttl}
}

// Get returns the cached settings or ErrMiss.
func (c *SettingsCache) Get(ctx context.Context) (domain.SystemSettings, error) {
	var settings domain.SystemSettings
	if c == nil || c.client == nil {
		return settings, ErrMiss
	}
	raw, err := c.client.Get(ctx, settingsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return settings, ErrMiss
	}
	if err != nil {
		return settings, err
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// Set stores settings for the configured TTL.
func (c *SettingsCache) Set(ctx context.Context, settings domain.SystemSettings) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, settingsKey, raw, c.ttl).Err()
}

// Invalidate drops the cached value.
func (c *SettingsCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, settingsKey).Err()
}
