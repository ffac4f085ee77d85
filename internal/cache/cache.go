// Package cache provides the Redis JSON read-through helpers shared by the
// catalog, voucher and analytics services.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-bookstore/internal/obs"
)

// JSON wraps Redis helpers for JSON payloads under a key prefix. A nil *JSON
// or one without a client behaves as an always-miss cache.
type JSON struct {
	client *redis.Client
	name   string
	ttl    time.Duration
}

// New constructs a cache helper. name prefixes every key and labels metrics.
func New(client *redis.Client, name string, ttl time.Duration) *JSON {
	return &JSON{client: client, name: name, ttl: ttl}
}

func (c *JSON) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func (c *JSON) key(k string) string {
	return c.name + ":" + k
}

// Get unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *JSON) Get(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			obs.CacheResult(c.name, false, nil)
			return false, nil
		}
		obs.CacheResult(c.name, false, err)
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		obs.CacheResult(c.name, false, err)
		return false, err
	}
	obs.CacheResult(c.name, true, nil)
	return true, nil
}

// Set serialises v as JSON and stores it with the configured TTL.
func (c *JSON) Set(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

// Delete removes keys. Missing keys are ignored.
func (c *JSON) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.key(k))
	}
	return c.client.Del(ctx, full...).Err()
}

// Version returns the current generation counter for a key family. Embedding
// it in keys lets Bump invalidate a whole family without scanning.
func (c *JSON) Version(ctx context.Context, family string) string {
	if !c.enabled() {
		return "0"
	}
	v, err := c.client.Get(ctx, c.key("ver:"+family)).Int64()
	if err != nil {
		return "0"
	}
	return strconv.FormatInt(v, 10)
}

// Bump advances the generation counter for a key family.
func (c *JSON) Bump(ctx context.Context, family string) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, c.key("ver:"+family)).Err()
}
