package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the configuration from defaults, the TOML file at path (a
// missing file is ignored), a .env file when present, and AUCTION_*
// environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Port, "AUCTION_PORT")
	setStr(&cfg.LogLevel, "AUCTION_LOG_LEVEL")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setBool(&cfg.SeedDemo, "AUCTION_SEED_DEMO")

	setStr(&cfg.Store.Backend, "AUCTION_STORE_BACKEND")

	setStr(&cfg.Redis.Addr, "AUCTION_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTION_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTION_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AUCTION_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AUCTION_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AUCTION_REDIS_TLS_ENABLED")

	setStr(&cfg.Postgres.DSN, "AUCTION_POSTGRES_DSN")
	setInt(&cfg.Postgres.PoolMaxConns, "AUCTION_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AUCTION_POSTGRES_POOL_MIN_CONNS")

	setStringSlice(&cfg.Notify.Senders, "AUCTION_NOTIFY_SENDERS")
	setStringSlice(&cfg.Notify.Events, "AUCTION_NOTIFY_EVENTS")
	setStr(&cfg.Notify.RabbitURL, "AUCTION_RABBITMQ_URL")
	setStr(&cfg.Notify.RabbitQueue, "AUCTION_RABBITMQ_QUEUE")
	setStr(&cfg.Notify.RedisChannel, "AUCTION_REDIS_CHANNEL")

	setInt(&cfg.Engine.MaxBidAttempts, "AUCTION_MAX_BID_ATTEMPTS")
	setDuration(&cfg.Engine.NotifyTimeout, "AUCTION_NOTIFY_TIMEOUT")
	setBool(&cfg.Engine.AllowSelfOutbid, "AUCTION_ALLOW_SELF_OUTBID")

	setBool(&cfg.Sweeper.Enabled, "AUCTION_SWEEPER_ENABLED")
	setStr(&cfg.Sweeper.Spec, "AUCTION_SWEEPER_SPEC")
	setInt(&cfg.Sweeper.Concurrency, "AUCTION_SWEEPER_CONCURRENCY")
}

// Each helper only touches dst when the variable is set and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		*dst = cleaned
	}
}
