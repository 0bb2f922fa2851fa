package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Redemption RedemptionConfig
	Limits     LimitsConfig
	Sweeper    SweeperConfig
}

type ServerConfig struct {
	Port               int `mapstructure:"port"`
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"`
}

type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RedemptionConfig struct {
	LocalTimezone          string `mapstructure:"local_timezone"`
	VoidWindowHours        int    `mapstructure:"void_window_hours"`
	TokenTTLSec            int    `mapstructure:"token_ttl_sec"`
	TokenEntropyBytes      int    `mapstructure:"token_entropy_bytes"`
	MaxDailyClaimsPerOffer int    `mapstructure:"max_daily_claims_per_offer"`
	PendingTimeoutSec      int    `mapstructure:"pending_timeout_sec"`
	IdempotencyTTLSec      int    `mapstructure:"idempotency_ttl_sec"`
}

type LimitsConfig struct {
	VelocityMax       int `mapstructure:"velocity_max"`
	VelocityWindowSec int `mapstructure:"velocity_window_sec"`
	DailyMax          int `mapstructure:"daily_max"`
}

type SweeperConfig struct {
	IntervalSec int `mapstructure:"interval_sec"`
}

// Load reads configuration from an optional YAML file plus REDEMPTION_*
// environment variables. An explicit path must exist; otherwise the file
// is searched for and skipped when absent.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_sec", 10)
	v.SetDefault("store.db_path", "redemption.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redemption.local_timezone", "Asia/Dubai")
	v.SetDefault("redemption.void_window_hours", 2)
	v.SetDefault("redemption.token_ttl_sec", 30)
	v.SetDefault("redemption.token_entropy_bytes", 24)
	v.SetDefault("redemption.max_daily_claims_per_offer", 1)
	v.SetDefault("redemption.pending_timeout_sec", 900)
	v.SetDefault("redemption.idempotency_ttl_sec", 86400)
	v.SetDefault("limits.velocity_max", 10)
	v.SetDefault("limits.velocity_window_sec", 60)
	v.SetDefault("limits.daily_max", 150)
	v.SetDefault("sweeper.interval_sec", 60)

	// Config file (optional unless named explicitly)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/redemption")
		_ = v.ReadInConfig()
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"server.port":                           "REDEMPTION_SERVER_PORT",
		"server.shutdown_timeout_sec":           "REDEMPTION_SHUTDOWN_TIMEOUT_SEC",
		"store.db_path":                         "REDEMPTION_DB_PATH",
		"redis.addr":                            "REDEMPTION_REDIS_ADDR",
		"redis.password":                        "REDEMPTION_REDIS_PASSWORD",
		"redis.db":                              "REDEMPTION_REDIS_DB",
		"auth.jwt_secret":                       "REDEMPTION_JWT_SECRET",
		"redemption.local_timezone":             "REDEMPTION_LOCAL_TIMEZONE",
		"redemption.void_window_hours":          "REDEMPTION_VOID_WINDOW_HOURS",
		"redemption.token_ttl_sec":              "REDEMPTION_TOKEN_TTL_SEC",
		"redemption.token_entropy_bytes":        "REDEMPTION_TOKEN_ENTROPY_BYTES",
		"redemption.max_daily_claims_per_offer": "REDEMPTION_MAX_DAILY_CLAIMS_PER_OFFER",
		"redemption.pending_timeout_sec":        "REDEMPTION_PENDING_TIMEOUT_SEC",
		"redemption.idempotency_ttl_sec":        "REDEMPTION_IDEMPOTENCY_TTL_SEC",
		"limits.velocity_max":                   "REDEMPTION_VELOCITY_MAX",
		"limits.velocity_window_sec":            "REDEMPTION_VELOCITY_WINDOW_SEC",
		"limits.daily_max":                      "REDEMPTION_DAILY_MAX",
		"sweeper.interval_sec":                  "REDEMPTION_SWEEP_INTERVAL_SEC",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("required config missing: REDEMPTION_JWT_SECRET")
	}
	if c.Redemption.TokenEntropyBytes < 16 {
		return fmt.Errorf("redemption.token_entropy_bytes must be >= 16, got %d", c.Redemption.TokenEntropyBytes)
	}
	if c.Redemption.TokenTTLSec < 5 {
		return fmt.Errorf("redemption.token_ttl_sec must be >= 5, got %d", c.Redemption.TokenTTLSec)
	}
	if c.Redemption.VoidWindowHours <= 0 {
		return fmt.Errorf("redemption.void_window_hours must be positive, got %d", c.Redemption.VoidWindowHours)
	}
	if c.Redemption.MaxDailyClaimsPerOffer != 1 {
		return fmt.Errorf("redemption.max_daily_claims_per_offer must be 1 (the daily unique index admits one live claim), got %d", c.Redemption.MaxDailyClaimsPerOffer)
	}
	if _, err := time.LoadLocation(c.Redemption.LocalTimezone); err != nil {
		return fmt.Errorf("invalid redemption.local_timezone %q: %w", c.Redemption.LocalTimezone, err)
	}
	return nil
}
