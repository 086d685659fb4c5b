package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/dcabot/internal/blob/s3"
	"github.com/alanyoungcy/dcabot/internal/cache/redis"
	"github.com/alanyoungcy/dcabot/internal/config"
	"github.com/alanyoungcy/dcabot/internal/crypto"
	"github.com/alanyoungcy/dcabot/internal/domain"
	"github.com/alanyoungcy/dcabot/internal/market"
	"github.com/alanyoungcy/dcabot/internal/metrics"
	"github.com/alanyoungcy/dcabot/internal/notify"
	"github.com/alanyoungcy/dcabot/internal/platform/coinbase"
	"github.com/alanyoungcy/dcabot/internal/service"
	"github.com/alanyoungcy/dcabot/internal/sizing"
	"github.com/alanyoungcy/dcabot/internal/store/postgres"
)

// SummaryNotifier delivers the end-of-run summary.
type SummaryNotifier interface {
	NotifySummary(ctx context.Context, report domain.RunReport) error
}

// RunArchiver stores a finished run report.
type RunArchiver interface {
	Archive(ctx context.Context, report domain.RunReport) (string, error)
}

// MetricsPusher ships collected metrics somewhere.
type MetricsPusher interface {
	Push(ctx context.Context) error
}

// Dependencies bundles everything a run needs. Optional backends are nil when
// disabled in the configuration.
type Dependencies struct {
	Service *service.DCAService
	Pairs   []domain.Pair

	LockManager domain.LockManager
	LockTTL     time.Duration

	Notifier   SummaryNotifier
	AuditStore domain.AuditStore
	Archiver   RunArchiver
	Metrics    *metrics.Recorder
	Pusher     MetricsPusher
}

// Wire constructs all concrete dependency implementations from cfg and
// returns them together with a cleanup function that releases connections.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Pairs:   cfg.DomainPairs(),
		LockTTL: cfg.Redis.LockTTL.Duration,
		Metrics: metrics.NewRecorder(),
	}

	// --- Coinbase ---
	var signer *coinbase.Signer
	if cfg.HasCredentials() {
		secret, err := crypto.LoadSecret(cfg.SecretSource())
		if err != nil {
			return fail(fmt.Errorf("wire: coinbase secret: %w", err))
		}
		signer, err = coinbase.NewSigner(cfg.Coinbase.APIKey, secret)
		if err != nil {
			return fail(fmt.Errorf("wire: coinbase signer: %w", err))
		}
	}
	timeout := cfg.Coinbase.RequestTimeout.Duration
	client, err := coinbase.NewClient(cfg.Coinbase.APIBase, signer, timeout, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: coinbase: %w", err))
	}

	// --- Redis (run lock + shared throttle) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		if rps := cfg.Coinbase.RequestsPerSecond; rps > 0 {
			client.SetThrottle(redis.NewRateLimiter(redisClient, rps, time.Second))
		}
	}

	// --- Market data ---
	var source market.Source = client
	if strings.EqualFold(cfg.Coinbase.PriceSource, config.PriceSourceWebsocket) {
		source = coinbase.MarketData{
			Client: client,
			Prices: coinbase.NewTickerSource(cfg.Coinbase.WSURL, signer, timeout, logger),
		}
	}
	aggregator := market.NewAggregator(source, cfg.Coinbase.MaxCandles, logger)

	var orders service.OrderSubmitter = client
	if cfg.DryRun {
		orders = service.NewPaperSubmitter(logger)
	}

	// --- PostgreSQL audit log ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
	}

	// --- S3 run archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		// An unreachable bucket only costs the archive, so the run goes on.
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "run archive bucket unreachable", slog.String("error", err.Error()))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), cfg.S3.Prefix, deps.AuditStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, cfg.Notify.DiscordUsername))
	}
	var outcomeNotifier service.OutcomeNotifier
	if notifier := notify.NewNotifier(senders, cfg.Notify.Events, logger); notifier.Enabled() {
		deps.Notifier = notifier
		outcomeNotifier = notifier
	}

	// --- Metrics ---
	if cfg.Metrics.PushgatewayURL != "" {
		deps.Pusher = metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, deps.Metrics)
	}

	deps.Service = service.NewDCAService(
		aggregator,
		sizing.NewEngine(cfg.StrategyParams()),
		orders,
		outcomeNotifier,
		deps.AuditStore,
		cfg.DryRun,
		logger,
	)

	return deps, cleanup, nil
}
