package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestKV(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb), mr
}

// ── GetDel ────────────────────────────────────────────────────────────────────

func TestGetDel_SingleConsume(t *testing.T) {
	c, _ := newTestKV(t)
	ctx := context.Background()

	if err := c.SetWithTTL(ctx, "redeem:token:abc", "payload", time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}

	v, err := c.GetDel(ctx, "redeem:token:abc")
	if err != nil {
		t.Fatalf("GetDel: %v", err)
	}
	if v != "payload" {
		t.Errorf("value: got %q want %q", v, "payload")
	}

	// Second consume must miss.
	if _, err := c.GetDel(ctx, "redeem:token:abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second GetDel: got %v want ErrNotFound", err)
	}
}

func TestGetDel_ExpiredByTTL(t *testing.T) {
	c, mr := newTestKV(t)
	ctx := context.Background()

	c.SetWithTTL(ctx, "redeem:token:xyz", "payload", 30*time.Second) //nolint:errcheck
	mr.FastForward(31 * time.Second)

	if _, err := c.GetDel(ctx, "redeem:token:xyz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired GetDel: got %v want ErrNotFound", err)
	}
}

// ── SetIfAbsent ───────────────────────────────────────────────────────────────

func TestSetIfAbsent(t *testing.T) {
	c, _ := newTestKV(t)
	ctx := context.Background()

	ok, err := c.SetIfAbsent(ctx, "claim:daily:u1:o1:2025-06-02", "1", time.Hour)
	if err != nil {
		t.Fatalf("SetIfAbsent: %v", err)
	}
	if !ok {
		t.Fatal("first SetIfAbsent should win")
	}

	ok, err = c.SetIfAbsent(ctx, "claim:daily:u1:o1:2025-06-02", "1", time.Hour)
	if err != nil {
		t.Fatalf("SetIfAbsent: %v", err)
	}
	if ok {
		t.Error("second SetIfAbsent should lose")
	}
}

// ── IncrWithTTL ───────────────────────────────────────────────────────────────

func TestIncrWithTTL_FirstIncrementStartsWindow(t *testing.T) {
	c, mr := newTestKV(t)
	ctx := context.Background()

	n, err := c.IncrWithTTL(ctx, "limit:velocity:u1", time.Minute)
	if err != nil {
		t.Fatalf("IncrWithTTL: %v", err)
	}
	if n != 1 {
		t.Errorf("count: got %d want 1", n)
	}

	// Later increments must not push the deadline out.
	mr.FastForward(30 * time.Second)
	if n, _ = c.IncrWithTTL(ctx, "limit:velocity:u1", time.Minute); n != 2 {
		t.Errorf("count: got %d want 2", n)
	}

	ttl, err := c.TTL(ctx, "limit:velocity:u1")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl > 30*time.Second {
		t.Errorf("window extended: ttl %v", ttl)
	}

	// Window elapses and the counter resets.
	mr.FastForward(31 * time.Second)
	if n, _ = c.IncrWithTTL(ctx, "limit:velocity:u1", time.Minute); n != 1 {
		t.Errorf("count after expiry: got %d want 1", n)
	}
}

// ── TTL / Del ─────────────────────────────────────────────────────────────────

func TestTTL_MissingKey(t *testing.T) {
	c, _ := newTestKV(t)

	if _, err := c.TTL(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("TTL on missing key: got %v want ErrNotFound", err)
	}
}

func TestDel(t *testing.T) {
	c, _ := newTestKV(t)
	ctx := context.Background()

	c.SetWithTTL(ctx, "a", "1", time.Minute) //nolint:errcheck
	if err := c.Del(ctx, "a", "missing"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Del: got %v want ErrNotFound", err)
	}
	if err := c.Del(ctx); err != nil {
		t.Errorf("Del with no keys: %v", err)
	}
}

// ── unavailability classification ─────────────────────────────────────────────

func TestUnavailable_WhenBackendDown(t *testing.T) {
	c, mr := newTestKV(t)
	ctx := context.Background()

	mr.Close()

	if _, err := c.GetDel(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("GetDel on dead backend: got %v want ErrUnavailable", err)
	}
	if _, err := c.IncrWithTTL(ctx, "k", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Errorf("IncrWithTTL on dead backend: got %v want ErrUnavailable", err)
	}
	if _, err := c.SetIfAbsent(ctx, "k", "1", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Errorf("SetIfAbsent on dead backend: got %v want ErrUnavailable", err)
	}
}
