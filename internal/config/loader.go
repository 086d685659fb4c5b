package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over the built-in defaults, loads .env if
// present and applies DCABOT_* overrides. An empty path skips the file. Keys
// the file sets that Config does not know are an error, so a typo never
// silently falls back to a default. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from DCABOT_* environment
// variables that are set and non-empty, so secrets can be injected at deploy
// time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Top-level ──
	setStr(&cfg.LogLevel, "DCABOT_LOG_LEVEL")
	setBool(&cfg.DryRun, "DCABOT_DRY_RUN")
	setBool(&cfg.FailOnError, "DCABOT_FAIL_ON_ERROR")

	// ── Coinbase ──
	setStr(&cfg.Coinbase.APIBase, "DCABOT_COINBASE_API_BASE")
	setStr(&cfg.Coinbase.WSURL, "DCABOT_COINBASE_WS_URL")
	setStr(&cfg.Coinbase.APIKey, "DCABOT_COINBASE_API_KEY")
	setStr(&cfg.Coinbase.APISecret, "DCABOT_COINBASE_API_SECRET")
	setStr(&cfg.Coinbase.EncryptedSecretPath, "DCABOT_COINBASE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Coinbase.SecretPassword, "DCABOT_COINBASE_SECRET_PASSWORD")
	setStr(&cfg.Coinbase.PriceSource, "DCABOT_COINBASE_PRICE_SOURCE")
	setInt(&cfg.Coinbase.MaxCandles, "DCABOT_COINBASE_MAX_CANDLES")
	setDuration(&cfg.Coinbase.RequestTimeout, "DCABOT_COINBASE_REQUEST_TIMEOUT")
	setInt(&cfg.Coinbase.RequestsPerSecond, "DCABOT_COINBASE_REQUESTS_PER_SECOND")

	// ── Strategy ──
	setFloat64(&cfg.Strategy.K, "DCABOT_STRATEGY_K")
	setFloat64(&cfg.Strategy.MinShrink, "DCABOT_STRATEGY_MIN_SHRINK")
	setFloat64(&cfg.Strategy.MaxBoost, "DCABOT_STRATEGY_MAX_BOOST")
	setFloat64(&cfg.Strategy.ReserveFraction, "DCABOT_STRATEGY_RESERVE_FRACTION")
	setFloat64(&cfg.Strategy.PerRunCapUSD, "DCABOT_STRATEGY_PER_RUN_CAP_USD")
	setFloat64(&cfg.Strategy.MinOrderUSD, "DCABOT_STRATEGY_MIN_ORDER_USD")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DCABOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DCABOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DCABOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DCABOT_NOTIFY_EVENTS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DCABOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DCABOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DCABOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DCABOT_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "DCABOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "DCABOT_REDIS_LOCK_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "DCABOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DCABOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DCABOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DCABOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DCABOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DCABOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DCABOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DCABOT_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "DCABOT_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "DCABOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DCABOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DCABOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "DCABOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DCABOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DCABOT_S3_SECRET_KEY")
	setStr(&cfg.S3.Prefix, "DCABOT_S3_PREFIX")

	// ── Metrics ──
	setStr(&cfg.Metrics.PushgatewayURL, "DCABOT_METRICS_PUSHGATEWAY_URL")
	setStr(&cfg.Metrics.Job, "DCABOT_METRICS_JOB")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present, non-empty and parses.

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
