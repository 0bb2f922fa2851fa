// Package ratelimit bounds how fast a single user can fire claim attempts.
// Two counters run per user: a short velocity window and a rolling daily
// ceiling. The limiter fails open: when the counter backend is away the
// claim proceeds and the daily-uniqueness checks still hold the line.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/studentverse/redemption/internal/clock"
	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/kv"
)

const (
	velocityKeyPrefix = "limit:velocity:"
	dailyKeyPrefix    = "limit:daily:"

	dailyKeyTTL = 24 * time.Hour
)

// Config bounds claim attempts per user.
type Config struct {
	VelocityMax    int64         // attempts per velocity window
	VelocityWindow time.Duration // e.g. 60s
	DailyMax       int64         // attempts per calendar day
}

// Limiter counts claim attempts in the KV store.
type Limiter struct {
	kv  *kv.Client
	cfg Config
	clk clock.Clock
	loc *time.Location
	log *zap.Logger
}

func New(kvc *kv.Client, cfg Config, clk clock.Clock, loc *time.Location, log *zap.Logger) *Limiter {
	return &Limiter{kv: kvc, cfg: cfg, clk: clk, loc: loc, log: log}
}

func velocityKey(userID string) string {
	return velocityKeyPrefix + userID
}

func dailyKey(userID, day string) string {
	return fmt.Sprintf("%s%s:%s", dailyKeyPrefix, userID, day)
}

// Allow counts one attempt against both windows and rejects with
// RATE_LIMITED once either is exhausted. Rejected attempts still count.
func (l *Limiter) Allow(ctx context.Context, userID string) error {
	vKey := velocityKey(userID)
	n, err := l.kv.IncrWithTTL(ctx, vKey, l.cfg.VelocityWindow)
	if err != nil {
		l.log.Warn("rate limiter backend unavailable, admitting request",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if n > l.cfg.VelocityMax {
		return domain.RateLimited("too many claim attempts, slow down",
			l.resetIn(ctx, vKey, l.cfg.VelocityWindow))
	}

	day := clock.Day(l.clk.Now(), l.loc)
	dKey := dailyKey(userID, day)
	n, err = l.kv.IncrWithTTL(ctx, dKey, dailyKeyTTL)
	if err != nil {
		l.log.Warn("rate limiter backend unavailable, admitting request",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if n > l.cfg.DailyMax {
		return domain.RateLimited("daily claim attempt limit reached",
			l.resetIn(ctx, dKey, dailyKeyTTL))
	}
	return nil
}

// resetIn reads the tripped window's remaining life for the Retry-After
// hint, falling back to the full window when the read fails.
func (l *Limiter) resetIn(ctx context.Context, key string, window time.Duration) time.Duration {
	ttl, err := l.kv.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return window
	}
	return ttl
}

// Remaining reports the user's unused budget in both windows.
type Remaining struct {
	Velocity        int64
	VelocityResetIn time.Duration
	Daily           int64
	DailyResetIn    time.Duration
}

func (l *Limiter) Remaining(ctx context.Context, userID string) (Remaining, error) {
	r := Remaining{Velocity: l.cfg.VelocityMax, Daily: l.cfg.DailyMax}

	used, resetIn, err := l.window(ctx, velocityKey(userID))
	if err != nil {
		return Remaining{}, err
	}
	if r.Velocity -= used; r.Velocity < 0 {
		r.Velocity = 0
	}
	r.VelocityResetIn = resetIn

	day := clock.Day(l.clk.Now(), l.loc)
	used, resetIn, err = l.window(ctx, dailyKey(userID, day))
	if err != nil {
		return Remaining{}, err
	}
	if r.Daily -= used; r.Daily < 0 {
		r.Daily = 0
	}
	r.DailyResetIn = resetIn
	return r, nil
}

func (l *Limiter) window(ctx context.Context, key string) (used int64, resetIn time.Duration, err error) {
	v, err := l.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, domain.Wrap(domain.KindTransient, "rate limit lookup failed", err)
	}
	used, _ = strconv.ParseInt(v, 10, 64)

	ttl, err := l.kv.TTL(ctx, key)
	if err != nil || ttl < 0 {
		ttl = 0
	}
	return used, ttl, nil
}
