// Package config defines the dcabot configuration file, its defaults and
// validation.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/alanyoungcy/dcabot/internal/crypto"
	"github.com/alanyoungcy/dcabot/internal/domain"
	"github.com/alanyoungcy/dcabot/internal/notify"
)

// maxCandlesPerRequest is the most buckets Coinbase returns for one candles
// call. Horizons longer than this cannot be fetched in a single request.
const maxCandlesPerRequest = 350

// Price sources for the current price.
const (
	PriceSourceREST      = "rest"
	PriceSourceWebsocket = "websocket"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DCABOT_* environment variables.
type Config struct {
	LogLevel    string `toml:"log_level"`
	DryRun      bool   `toml:"dry_run"`
	FailOnError bool   `toml:"fail_on_error"`

	Coinbase CoinbaseConfig `toml:"coinbase"`
	Pairs    []PairConfig   `toml:"pairs"`
	Strategy StrategyConfig `toml:"strategy"`
	Notify   NotifyConfig   `toml:"notify"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// CoinbaseConfig holds Advanced Trade endpoints and API credentials.
type CoinbaseConfig struct {
	APIBase             string   `toml:"api_base"`
	WSURL               string   `toml:"ws_url"`
	APIKey              string   `toml:"api_key"`
	APISecret           string   `toml:"api_secret"`
	EncryptedSecretPath string   `toml:"encrypted_secret_path"`
	SecretPassword      string   `toml:"secret_password"`
	PriceSource         string   `toml:"price_source"`
	MaxCandles          int      `toml:"max_candles"`
	RequestTimeout      duration `toml:"request_timeout"`
	RequestsPerSecond   int      `toml:"requests_per_second"`
}

// PairConfig is one [[pairs]] entry.
type PairConfig struct {
	ProductID          string  `toml:"product_id"`
	USDToBuy           float64 `toml:"usd_to_buy"`
	PriceAdjustmentPct float64 `toml:"price_adjustment_percentage"`
	// PostOnly defaults to true when omitted.
	PostOnly      *bool   `toml:"post_only"`
	PriceCeiling  float64 `toml:"price_ceiling"`
	PriceDecimals int32   `toml:"price_decimals"`
}

// HorizonConfig is a lookback window, e.g. { periods = 30, granularity = "ONE_DAY" }.
type HorizonConfig struct {
	Periods     int    `toml:"periods"`
	Granularity string `toml:"granularity"`
}

// StrategyConfig holds the sizing knobs shared by every pair.
type StrategyConfig struct {
	Short  HorizonConfig `toml:"short"`
	Medium HorizonConfig `toml:"medium"`
	Long   HorizonConfig `toml:"long"`

	LowerPercentile float64 `toml:"lower_percentile"`
	UpperPercentile float64 `toml:"upper_percentile"`

	K         float64 `toml:"k"`
	MinShrink float64 `toml:"min_shrink"`
	MaxBoost  float64 `toml:"max_boost"`

	WindowBoost float64 `toml:"window_boost"`
	WindowCut   float64 `toml:"window_cut"`

	ReserveFraction         float64 `toml:"reserve_fraction"`
	DeepDipReleaseThreshold float64 `toml:"deep_dip_release_threshold"`
	ReserveReleaseBoost     float64 `toml:"reserve_release_boost"`

	PerRunCapUSD float64 `toml:"per_run_cap_usd"`
	MinOrderUSD  float64 `toml:"min_order_usd"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	DiscordUsername   string   `toml:"discord_username"`
	Events            []string `toml:"events"`
}

// RedisConfig holds Redis connection parameters for the run lock and the
// shared request throttle.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LockTTL    duration `toml:"lock_ttl"`
}

// PostgresConfig holds audit log connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds run archive storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// MetricsConfig controls the end-of-run Pushgateway push. An empty URL
// disables it.
type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	Job            string `toml:"job"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values in config.example.toml,
// minus pairs and credentials.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Coinbase: CoinbaseConfig{
			APIBase:           "https://api.coinbase.com",
			WSURL:             "wss://advanced-trade-ws.coinbase.com",
			PriceSource:       PriceSourceREST,
			MaxCandles:        maxCandlesPerRequest,
			RequestTimeout:    duration{15 * time.Second},
			RequestsPerSecond: 10,
		},
		Strategy: StrategyConfig{
			Short:                   HorizonConfig{Periods: 24, Granularity: "ONE_HOUR"},
			Medium:                  HorizonConfig{Periods: 30, Granularity: "ONE_DAY"},
			Long:                    HorizonConfig{Periods: 300, Granularity: "ONE_DAY"},
			LowerPercentile:         25,
			UpperPercentile:         75,
			K:                       1.0,
			MinShrink:               0.25,
			MaxBoost:                3.0,
			WindowBoost:             1.25,
			WindowCut:               0.75,
			ReserveFraction:         0.2,
			DeepDipReleaseThreshold: 0.15,
			ReserveReleaseBoost:     1.2,
			PerRunCapUSD:            100,
			MinOrderUSD:             1.0,
		},
		Notify: NotifyConfig{
			DiscordUsername: "dcabot",
			Events:          slices.Clone(notify.KnownEvents),
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   4,
			MaxRetries: 3,
			LockTTL:    duration{10 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "dcabot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  0,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "dcabot-runs",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Metrics: MetricsConfig{
			Job: "dcabot",
		},
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Coinbase
	cb := c.Coinbase
	if cb.APIBase == "" {
		add("coinbase: api_base must not be empty")
	}
	switch strings.ToLower(cb.PriceSource) {
	case PriceSourceREST:
	case PriceSourceWebsocket:
		if cb.WSURL == "" {
			add("coinbase: ws_url must not be empty when price_source is websocket")
		}
	default:
		add("coinbase: unknown price_source %q (valid: rest, websocket)", cb.PriceSource)
	}
	if cb.MaxCandles < 1 || cb.MaxCandles > maxCandlesPerRequest {
		add("coinbase: max_candles must be 1-%d, got %d", maxCandlesPerRequest, cb.MaxCandles)
	}
	if cb.RequestTimeout.Duration <= 0 {
		add("coinbase: request_timeout must be > 0")
	}
	if cb.RequestsPerSecond < 0 {
		add("coinbase: requests_per_second must be >= 0")
	}
	if !c.DryRun {
		if cb.APIKey == "" {
			add("coinbase: api_key is required unless dry_run is set")
		}
		if cb.APISecret == "" && cb.EncryptedSecretPath == "" {
			add("coinbase: either api_secret or encrypted_secret_path must be set unless dry_run is set")
		}
	}
	if cb.APISecret == "" && cb.EncryptedSecretPath != "" && cb.SecretPassword == "" {
		add("coinbase: secret_password is required when encrypted_secret_path is set")
	}

	// Pairs
	if len(c.Pairs) == 0 {
		add("pairs: at least one [[pairs]] entry is required")
	}
	seen := make(map[string]bool, len(c.Pairs))
	for i, p := range c.Pairs {
		id := strings.ToUpper(strings.TrimSpace(p.ProductID))
		name := fmt.Sprintf("pairs[%d]", i)
		if id == "" {
			add("%s: product_id must not be empty", name)
		} else {
			name = fmt.Sprintf("pairs[%d] (%s)", i, id)
			if seen[id] {
				add("%s: duplicate product_id", name)
			}
			seen[id] = true
		}
		if p.USDToBuy <= 0 {
			add("%s: usd_to_buy must be > 0", name)
		}
		if p.PriceAdjustmentPct < 0 || p.PriceAdjustmentPct >= 1 {
			add("%s: price_adjustment_percentage must be in [0, 1), got %g", name, p.PriceAdjustmentPct)
		}
		if p.PriceCeiling < 0 {
			add("%s: price_ceiling must be >= 0", name)
		}
		if p.PriceDecimals < 0 || p.PriceDecimals > 12 {
			add("%s: price_decimals must be 0-12, got %d", name, p.PriceDecimals)
		}
	}

	// Strategy
	s := c.Strategy
	for _, h := range []struct {
		name string
		cfg  HorizonConfig
	}{{"short", s.Short}, {"medium", s.Medium}, {"long", s.Long}} {
		if h.cfg.Periods < 1 || h.cfg.Periods > cb.MaxCandles {
			add("strategy.%s: periods must be 1-%d (coinbase.max_candles), got %d", h.name, cb.MaxCandles, h.cfg.Periods)
		}
		if _, ok := domain.ParseGranularity(h.cfg.Granularity); !ok {
			add("strategy.%s: unknown granularity %q", h.name, h.cfg.Granularity)
		}
	}
	if s.LowerPercentile < 0 || s.LowerPercentile > 100 || s.UpperPercentile < 0 || s.UpperPercentile > 100 {
		add("strategy: percentiles must be within [0, 100]")
	}
	if s.LowerPercentile > s.UpperPercentile {
		add("strategy: lower_percentile must not exceed upper_percentile")
	}
	if s.K < 0 {
		add("strategy: k must be >= 0")
	}
	if s.MinShrink <= 0 || s.MaxBoost <= 0 {
		add("strategy: min_shrink and max_boost must be > 0")
	}
	if s.MinShrink > s.MaxBoost {
		add("strategy: min_shrink must not exceed max_boost")
	}
	if s.WindowBoost <= 0 || s.WindowCut <= 0 {
		add("strategy: window_boost and window_cut must be > 0")
	}
	if s.ReserveFraction < 0 || s.ReserveFraction >= 1 {
		add("strategy: reserve_fraction must be in [0, 1), got %g", s.ReserveFraction)
	}
	if s.DeepDipReleaseThreshold < 0 || s.DeepDipReleaseThreshold >= 1 {
		add("strategy: deep_dip_release_threshold must be in [0, 1), got %g", s.DeepDipReleaseThreshold)
	}
	if s.ReserveReleaseBoost <= 0 {
		add("strategy: reserve_release_boost must be > 0")
	}
	if s.PerRunCapUSD < 0 {
		add("strategy: per_run_cap_usd must be >= 0 (0 disables the cap)")
	}
	if s.MinOrderUSD < 0 {
		add("strategy: min_order_usd must be >= 0")
	}
	if s.PerRunCapUSD > 0 && s.MinOrderUSD > s.PerRunCapUSD {
		add("strategy: min_order_usd must not exceed per_run_cap_usd")
	}

	// Notify
	for _, e := range c.Notify.Events {
		if !slices.Contains(notify.KnownEvents, strings.TrimSpace(e)) {
			add("notify: unknown event %q (valid: %s)", e, strings.Join(notify.KnownEvents, ", "))
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			add("redis: lock_ttl must be > 0")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		pg := c.Postgres
		if strings.TrimSpace(pg.DSN) == "" {
			if pg.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if pg.Port <= 0 || pg.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", pg.Port)
			}
			if pg.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if pg.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if pg.PoolMinConns < 0 || pg.PoolMinConns > pg.PoolMaxConns {
			add("postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
	}

	// Metrics
	if c.Metrics.PushgatewayURL != "" {
		u, err := url.Parse(c.Metrics.PushgatewayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("metrics: pushgateway_url must be an http(s) URL, got %q", c.Metrics.PushgatewayURL)
		}
		if c.Metrics.Job == "" {
			add("metrics: job must not be empty when pushgateway_url is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// StrategyParams converts the [strategy] table into engine parameters.
// Call after Validate.
func (c *Config) StrategyParams() domain.StrategyParams {
	s := c.Strategy
	return domain.StrategyParams{
		Short:                   s.Short.horizon(),
		Medium:                  s.Medium.horizon(),
		Long:                    s.Long.horizon(),
		LowerPercentile:         s.LowerPercentile,
		UpperPercentile:         s.UpperPercentile,
		K:                       s.K,
		MinShrink:               s.MinShrink,
		MaxBoost:                s.MaxBoost,
		WindowBoost:             s.WindowBoost,
		WindowCut:               s.WindowCut,
		ReserveFraction:         s.ReserveFraction,
		DeepDipReleaseThreshold: s.DeepDipReleaseThreshold,
		ReserveReleaseBoost:     s.ReserveReleaseBoost,
		PerRunCapUSD:            s.PerRunCapUSD,
		MinOrderUSD:             s.MinOrderUSD,
	}
}

func (h HorizonConfig) horizon() domain.Horizon {
	g, _ := domain.ParseGranularity(h.Granularity)
	return domain.Horizon{Periods: h.Periods, Granularity: g}
}

// DomainPairs converts the [[pairs]] entries in file order.
func (c *Config) DomainPairs() []domain.Pair {
	out := make([]domain.Pair, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		postOnly := true
		if p.PostOnly != nil {
			postOnly = *p.PostOnly
		}
		out = append(out, domain.Pair{
			ProductID:          strings.ToUpper(strings.TrimSpace(p.ProductID)),
			BaselineUSD:        p.USDToBuy,
			PriceAdjustmentPct: p.PriceAdjustmentPct,
			PostOnly:           postOnly,
			PriceCeiling:       p.PriceCeiling,
			PriceDecimals:      p.PriceDecimals,
		})
	}
	return out
}

// HasCredentials reports whether an API key and some form of secret are
// configured.
func (c *Config) HasCredentials() bool {
	return c.Coinbase.APIKey != "" && (c.Coinbase.APISecret != "" || c.Coinbase.EncryptedSecretPath != "")
}

// SecretSource says where the API secret lives.
func (c *Config) SecretSource() crypto.SecretSource {
	return crypto.SecretSource{
		Raw:           c.Coinbase.APISecret,
		EncryptedPath: c.Coinbase.EncryptedSecretPath,
		Password:      c.Coinbase.SecretPassword,
	}
}
