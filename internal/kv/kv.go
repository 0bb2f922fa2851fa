// Package kv wraps the Redis client with the few primitives the redemption
// core relies on. Callers decide per call site whether an unavailable
// backend fails open (rate limiting) or closed (token consume).
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound means the key does not exist (or already expired).
	ErrNotFound = errors.New("kv: not found")
	// ErrUnavailable means the backend could not be reached or answered
	// with a server-side failure. The operation may succeed on retry.
	ErrUnavailable = errors.New("kv: unavailable")
)

// Client is a thin facade over *redis.Client with classified errors.
type Client struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// SetWithTTL stores value under key for ttl.
func (c *Client) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// SetIfAbsent stores value under key for ttl only when the key does not
// exist. Returns false when the key was already present.
func (c *Client) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, unavailable("setnx", err)
	}
	return ok, nil
}

// Get returns the value under key, or ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable("get", err)
	}
	return v, nil
}

// GetDel atomically reads and removes key. At most one caller can ever
// observe a given value; everyone else gets ErrNotFound.
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable("getdel", err)
	}
	return v, nil
}

// IncrWithTTL increments the counter at key and returns the new value.
// The first increment starts the ttl window; later increments leave the
// deadline untouched.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable("incr", err)
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return n, unavailable("expire", err)
		}
	}
	return n, nil
}

// TTL returns the remaining life of key. Missing keys report ErrNotFound;
// keys without an expiry report a negative duration.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, unavailable("ttl", err)
	}
	// go-redis passes Redis's raw -2 ("no such key") reply through unscaled.
	if d == time.Duration(-2) {
		return 0, ErrNotFound
	}
	return d, nil
}

// Del removes the given keys. Missing keys are not an error.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("kv %s: %w: %v", op, ErrUnavailable, err)
}
