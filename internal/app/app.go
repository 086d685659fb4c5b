// Package app provides the lifecycle of one scheduled dcabot invocation: it
// wires dependencies, takes the run lock, processes every pair and hands the
// report to the configured sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dcabot/internal/cache/redis"
	"github.com/alanyoungcy/dcabot/internal/config"
	"github.com/alanyoungcy/dcabot/internal/domain"
)

// sinkTimeout bounds report publication. Sinks run on a context detached from
// shutdown signals so an interrupted run still reports what it did.
const sinkTimeout = 30 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run wires all dependencies and performs one DCA pass. It returns the run
// report, or an error wrapping domain.ErrLockHeld when another run is in
// progress, in which case no pair was touched.
func (a *App) Run(ctx context.Context) (domain.RunReport, error) {
	a.logger.InfoContext(ctx, "starting run",
		slog.Int("pairs", len(a.cfg.Pairs)),
		slog.Bool("dry_run", a.cfg.DryRun),
		slog.String("price_source", a.cfg.Coinbase.PriceSource),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return Execute(ctx, deps, a.logger.With(slog.String("component", "app")))
}

// Execute runs the DCA service over deps.Pairs under the run lock, then
// publishes the report.
func Execute(ctx context.Context, deps *Dependencies, logger *slog.Logger) (domain.RunReport, error) {
	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, redis.RunLockKey, deps.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				logger.WarnContext(ctx, "another run holds the lock, exiting")
			}
			return domain.RunReport{}, fmt.Errorf("app: run lock: %w", err)
		}
		defer unlock()
	}

	report := deps.Service.Run(ctx, deps.Pairs)

	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	Publish(sinkCtx, deps, report, logger)

	return report, nil
}

// Publish fans report out to every configured sink concurrently. Sink
// failures are logged and never change the run result.
func Publish(ctx context.Context, deps *Dependencies, report domain.RunReport, logger *slog.Logger) {
	if deps.Metrics != nil {
		deps.Metrics.ObserveReport(report)
	}

	var g errgroup.Group
	sink := func(name string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				logger.ErrorContext(ctx, "report sink failed",
					slog.String("sink", name),
					slog.String("run_id", report.RunID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}

	if deps.Notifier != nil {
		sink("notify", func() error { return deps.Notifier.NotifySummary(ctx, report) })
	}
	if deps.AuditStore != nil {
		sink("audit", func() error {
			return deps.AuditStore.Log(ctx, domain.AuditRunCompleted, RunDetail(report))
		})
	}
	if deps.Archiver != nil {
		sink("archive", func() error {
			key, err := deps.Archiver.Archive(ctx, report)
			if err == nil {
				logger.InfoContext(ctx, "run report archived", slog.String("key", key))
			}
			return err
		})
	}
	if deps.Pusher != nil {
		sink("metrics", func() error { return deps.Pusher.Push(ctx) })
	}

	_ = g.Wait()
}

// RunDetail is the audit detail of a run_completed row.
func RunDetail(r domain.RunReport) map[string]any {
	counts := r.Counts()
	return map[string]any{
		"run_id":      r.RunID,
		"dry_run":     r.DryRun,
		"started_at":  r.StartedAt.Format(time.RFC3339Nano),
		"finished_at": r.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms": r.Duration().Milliseconds(),
		"pairs":       len(r.Outcomes),
		"placed":      counts[domain.OutcomePlaced],
		"skipped":     counts[domain.OutcomeSkipped],
		"failed":      counts[domain.OutcomeFailed],
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
