package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studentverse/redemption/internal/analytics"
	"github.com/studentverse/redemption/internal/clock"
	"github.com/studentverse/redemption/internal/config"
	"github.com/studentverse/redemption/internal/httpapi"
	"github.com/studentverse/redemption/internal/kv"
	"github.com/studentverse/redemption/internal/quota"
	"github.com/studentverse/redemption/internal/ratelimit"
	"github.com/studentverse/redemption/internal/redemption"
	"github.com/studentverse/redemption/internal/store"
	"github.com/studentverse/redemption/internal/token"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	configPath := flag.String("config", os.Getenv("REDEMPTION_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.Redemption.LocalTimezone)
	if err != nil {
		log.Fatal("invalid local timezone", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Store ─────────────────────────────────────────────────────────────────
	st, err := store.New(cfg.Store.DBPath)
	if err != nil {
		log.Fatal("store open failed", zap.Error(err))
	}
	defer st.Close() //nolint:errcheck

	// ── Redis ─────────────────────────────────────────────────────────────────
	kvc := kv.New(redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}))
	if err := kvc.Ping(ctx); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Service ───────────────────────────────────────────────────────────────
	clk := clock.System{}
	svc := redemption.NewService(
		st,
		quota.New(kvc),
		ratelimit.New(kvc, ratelimit.Config{
			VelocityMax:    int64(cfg.Limits.VelocityMax),
			VelocityWindow: time.Duration(cfg.Limits.VelocityWindowSec) * time.Second,
			DailyMax:       int64(cfg.Limits.DailyMax),
		}, clk, loc, log),
		token.New(kvc,
			time.Duration(cfg.Redemption.TokenTTLSec)*time.Second,
			cfg.Redemption.TokenEntropyBytes,
			clk),
		analytics.New(st, clk, log),
		clk, loc,
		redemption.Config{
			VoidWindow:     time.Duration(cfg.Redemption.VoidWindowHours) * time.Hour,
			PendingTimeout: time.Duration(cfg.Redemption.PendingTimeoutSec) * time.Second,
		},
		log,
	)

	// ── Sweeper ───────────────────────────────────────────────────────────────
	go svc.RunSweeper(ctx, time.Duration(cfg.Sweeper.IntervalSec)*time.Second)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := httpapi.NewRouter(svc, kvc,
		[]byte(cfg.Auth.JWTSecret),
		time.Duration(cfg.Redemption.IdempotencyTTLSec)*time.Second,
		log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
