package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anronharry/TG-bot/internal/utils"
)

// FastCache is the key/value and list store used for session markers,
// rolling context and permission caching. Every operation degrades to a
// safe default (miss, empty list, false) when Redis is unreachable or was
// never configured, so callers treat an outage as a cold cache.
type FastCache struct {
	client *redis.Client
	logger *utils.Logger
}

// NewFastCache creates a cache over r. A nil r yields a cache that always misses.
func NewFastCache(r *RedisClient) *FastCache {
	c := &FastCache{logger: utils.NewLogger("fastcache")}
	if r != nil {
		c.client = r.client
	}
	return c
}

// Available reports whether a backing client is configured
func (c *FastCache) Available() bool {
	return c != nil && c.client != nil
}

// Client exposes the backing client for components that need raw commands.
// It is nil when the cache runs without Redis.
func (c *FastCache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.client
}

// Health reports the backend state without degrading
func (c *FastCache) Health(ctx context.Context) error {
	if !c.Available() {
		return fmt.Errorf("cache not configured")
	}
	return WrapRedisClient(c.client).Health(ctx)
}

func (c *FastCache) degrade(op, key string, err error) {
	c.logger.Warn("Cache operation failed, continuing without cache", "op", op, "key", key, "error", err)
}

// Get returns the string at key
func (c *FastCache) Get(ctx context.Context, key string) (string, bool) {
	if !c.Available() {
		return "", false
	}
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.degrade("get", key, err)
		return "", false
	}
	return val, true
}

// Set stores value at key. A zero ttl means no expiry.
func (c *FastCache) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if !c.Available() {
		return false
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.degrade("set", key, err)
		return false
	}
	return true
}

// Delete removes keys. It reports whether the command reached Redis, not
// whether any key existed.
func (c *FastCache) Delete(ctx context.Context, keys ...string) bool {
	if !c.Available() || len(keys) == 0 {
		return false
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.degrade("del", keys[0], err)
		return false
	}
	return true
}

// Exists reports whether key is present
func (c *FastCache) Exists(ctx context.Context, key string) bool {
	if !c.Available() {
		return false
	}
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		c.degrade("exists", key, err)
		return false
	}
	return n > 0
}

// IncrWithTTL increments key and sets ttl when the key was just created.
// It returns 0 on failure.
func (c *FastCache) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) int64 {
	if !c.Available() {
		return 0
	}
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		c.degrade("incr", key, err)
		return 0
	}
	if n == 1 && ttl > 0 {
		if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
			c.degrade("expire", key, err)
		}
	}
	return n
}

// LPush prepends values to the list at key
func (c *FastCache) LPush(ctx context.Context, key string, values ...string) bool {
	if !c.Available() || len(values) == 0 {
		return false
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := c.client.LPush(ctx, key, args...).Err(); err != nil {
		c.degrade("lpush", key, err)
		return false
	}
	return true
}

// LTrim keeps the inclusive range [start, stop] of the list
func (c *FastCache) LTrim(ctx context.Context, key string, start, stop int64) bool {
	if !c.Available() {
		return false
	}
	if err := c.client.LTrim(ctx, key, start, stop).Err(); err != nil {
		c.degrade("ltrim", key, err)
		return false
	}
	return true
}

// LRange returns the inclusive range [start, stop] of the list
func (c *FastCache) LRange(ctx context.Context, key string, start, stop int64) []string {
	if !c.Available() {
		return nil
	}
	vals, err := c.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		c.degrade("lrange", key, err)
		return nil
	}
	return vals
}

// Expire sets a ttl on key
func (c *FastCache) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	if !c.Available() {
		return false
	}
	ok, err := c.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		c.degrade("expire", key, err)
		return false
	}
	return ok
}

// GetJSON decodes the value at key into dest
func (c *FastCache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.degrade("get_json", key, err)
		return false
	}
	return true
}

// SetJSON encodes value and stores it at key
func (c *FastCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		c.degrade("set_json", key, err)
		return false
	}
	return c.Set(ctx, key, string(data), ttl)
}
