package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REDEMPTION_JWT_SECRET", "test-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port: got %d want 8080", cfg.Server.Port)
	}
	if cfg.Store.DBPath != "redemption.db" {
		t.Errorf("store.db_path: got %q", cfg.Store.DBPath)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis.addr: got %q", cfg.Redis.Addr)
	}
	if cfg.Redemption.LocalTimezone != "Asia/Dubai" {
		t.Errorf("local_timezone: got %q", cfg.Redemption.LocalTimezone)
	}
	if cfg.Redemption.VoidWindowHours != 2 {
		t.Errorf("void_window_hours: got %d", cfg.Redemption.VoidWindowHours)
	}
	if cfg.Redemption.TokenTTLSec != 30 || cfg.Redemption.TokenEntropyBytes != 24 {
		t.Errorf("token params: got ttl=%d entropy=%d", cfg.Redemption.TokenTTLSec, cfg.Redemption.TokenEntropyBytes)
	}
	if cfg.Limits.VelocityMax != 10 || cfg.Limits.VelocityWindowSec != 60 || cfg.Limits.DailyMax != 150 {
		t.Errorf("limits: got %+v", cfg.Limits)
	}
	if cfg.Sweeper.IntervalSec != 60 {
		t.Errorf("sweeper.interval_sec: got %d", cfg.Sweeper.IntervalSec)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REDEMPTION_JWT_SECRET", "test-secret")
	t.Setenv("REDEMPTION_SERVER_PORT", "9090")
	t.Setenv("REDEMPTION_LOCAL_TIMEZONE", "Europe/London")
	t.Setenv("REDEMPTION_VELOCITY_MAX", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port: got %d want 9090", cfg.Server.Port)
	}
	if cfg.Redemption.LocalTimezone != "Europe/London" {
		t.Errorf("local_timezone: got %q", cfg.Redemption.LocalTimezone)
	}
	if cfg.Limits.VelocityMax != 3 {
		t.Errorf("velocity_max: got %d", cfg.Limits.VelocityMax)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Setenv("REDEMPTION_JWT_SECRET", "test-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("server:\n  port: 7070\nredemption:\n  void_window_hours: 4\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server.port: got %d want 7070", cfg.Server.Port)
	}
	if cfg.Redemption.VoidWindowHours != 4 {
		t.Errorf("void_window_hours: got %d want 4", cfg.Redemption.VoidWindowHours)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("REDEMPTION_JWT_SECRET", "test-secret")

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{
			"REDEMPTION_JWT_SECRET": "",
		}},
		{"bad timezone", map[string]string{
			"REDEMPTION_JWT_SECRET":     "s",
			"REDEMPTION_LOCAL_TIMEZONE": "Mars/Olympus",
		}},
		{"entropy too small", map[string]string{
			"REDEMPTION_JWT_SECRET":          "s",
			"REDEMPTION_TOKEN_ENTROPY_BYTES": "8",
		}},
		{"token ttl too small", map[string]string{
			"REDEMPTION_JWT_SECRET":    "s",
			"REDEMPTION_TOKEN_TTL_SEC": "1",
		}},
		{"multi daily claims unsupported", map[string]string{
			"REDEMPTION_JWT_SECRET":                 "s",
			"REDEMPTION_MAX_DAILY_CLAIMS_PER_OFFER": "2",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
