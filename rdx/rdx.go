// Package rdx wraps the Redis connection used for caching, locks and events.
// A Client built without an address is disabled: reads miss, writes are dropped
// and locks are always granted.
package rdx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/logger"
)

type Client struct {
	conn *redis.Client
	log  *logger.Logger
}

func New(addr, password string, db int, log *logger.Logger) *Client {
	if addr == "" {
		return &Client{log: log}
	}
	return &Client{log: log, conn: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Disabled returns a client that never talks to Redis.
func Disabled() *Client { return &Client{log: logger.Discard()} }

func (c *Client) Enabled() bool { return c != nil && c.conn != nil }

func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.conn.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.conn.Close()
}

// GetJSON decodes the cached value at key into dst. It reports false on a miss.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	raw, err := c.conn.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.Set(ctx, key, data, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.conn.Del(ctx, keys...).Err()
}

// AcquireLock tries to take key for ttl.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !c.Enabled() {
		return true, nil
	}
	return c.conn.SetNX(ctx, key, "1", ttl).Result()
}

func (c *Client) ReleaseLock(ctx context.Context, key string) {
	if !c.Enabled() {
		return
	}
	if err := c.conn.Del(ctx, key).Err(); err != nil {
		c.log.Error("releasing lock failed", "key", key, "err", err)
	}
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if !c.Enabled() {
		return nil
	}
	return c.conn.Publish(ctx, channel, payload).Err()
}
