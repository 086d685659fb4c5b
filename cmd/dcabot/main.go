// Command dcabot performs one scheduled DCA pass: it loads and validates the
// configuration, buys every configured pair once and exits. Scheduling is left
// to cron, a systemd timer or a Kubernetes CronJob.
//
// Exit status is 0 once every pair was attempted, 1 when the configuration is
// invalid or wiring fails, and 1 after a run with failed pairs when
// fail_on_error is set. A run blocked by the run lock exits 0.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/dcabot/internal/app"
	"github.com/alanyoungcy/dcabot/internal/config"
	"github.com/alanyoungcy/dcabot/internal/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	dryRun := flag.Bool("dry-run", false, "size orders but do not submit them (overrides config)")
	failOnError := flag.Bool("fail-on-error", false, "exit 1 when any pair failed (overrides config)")
	flag.Parse()

	logger := newLogger("info")
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		return 1
	}
	if *dryRun {
		cfg.DryRun = true
	}
	if *failOnError {
		cfg.FailOnError = true
	}

	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger.Debug("configuration loaded", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := application.Run(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return 0
		}
		logger.Error("run aborted", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	counts := report.Counts()
	logger.Info("dcabot finished",
		slog.String("run_id", report.RunID),
		slog.Int("placed", counts[domain.OutcomePlaced]),
		slog.Int("skipped", counts[domain.OutcomeSkipped]),
		slog.Int("failed", counts[domain.OutcomeFailed]),
	)

	if cfg.FailOnError && report.Failed() {
		return 1
	}
	return 0
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
