package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

// MarketData gathers everything the sizing engine needs about one pair.
type MarketData interface {
	Snapshot(ctx context.Context, productID string, params domain.StrategyParams) (domain.MarketSnapshot, error)
}

// Sizer turns a snapshot into an order size and limit price, or a skip.
type Sizer interface {
	Size(snap domain.MarketSnapshot, pair domain.Pair) (domain.SizingResult, error)
	Params() domain.StrategyParams
}

// OrderSubmitter places post-only limit buys.
type OrderSubmitter interface {
	SubmitLimitBuy(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

// OutcomeNotifier reports a pair outcome to people.
type OutcomeNotifier interface {
	NotifyOutcome(ctx context.Context, outcome domain.PairOutcome) error
}

// DCAService runs one scheduled pass over the configured pairs. Pairs are
// processed one after another and a failure on one never stops the next.
type DCAService struct {
	market   MarketData
	sizer    Sizer
	orders   OrderSubmitter
	notifier OutcomeNotifier
	audit    domain.AuditStore
	dryRun   bool
	now      func() time.Time
	logger   *slog.Logger
}

// NewDCAService creates a DCAService. notifier and audit may be nil.
func NewDCAService(
	market MarketData,
	sizer Sizer,
	orders OrderSubmitter,
	notifier OutcomeNotifier,
	audit domain.AuditStore,
	dryRun bool,
	logger *slog.Logger,
) *DCAService {
	return &DCAService{
		market:   market,
		sizer:    sizer,
		orders:   orders,
		notifier: notifier,
		audit:    audit,
		dryRun:   dryRun,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "dca_service")),
	}
}

// Run attempts every pair exactly once and returns the collected outcomes.
func (s *DCAService) Run(ctx context.Context, pairs []domain.Pair) domain.RunReport {
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now().UTC(),
		DryRun:    s.dryRun,
		Outcomes:  make([]domain.PairOutcome, 0, len(pairs)),
	}

	s.logger.InfoContext(ctx, "run started",
		slog.String("run_id", report.RunID),
		slog.Int("pairs", len(pairs)),
		slog.Bool("dry_run", s.dryRun),
	)

	for _, pair := range pairs {
		outcome := s.ProcessPair(ctx, pair)
		s.report(ctx, report.RunID, outcome)
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.FinishedAt = s.now().UTC()
	counts := report.Counts()
	s.logger.InfoContext(ctx, "run finished",
		slog.String("run_id", report.RunID),
		slog.Int("placed", counts[domain.OutcomePlaced]),
		slog.Int("skipped", counts[domain.OutcomeSkipped]),
		slog.Int("failed", counts[domain.OutcomeFailed]),
		slog.Duration("duration", report.Duration()),
	)
	return report
}

// ProcessPair fetches data, sizes and submits the order for one pair. It
// never returns an error: every problem is folded into the outcome.
func (s *DCAService) ProcessPair(ctx context.Context, pair domain.Pair) domain.PairOutcome {
	if err := ctx.Err(); err != nil {
		return domain.NewFailedOutcome(pair.ProductID, nil, fmt.Errorf("run cancelled: %w", err))
	}

	snap, err := s.market.Snapshot(ctx, pair.ProductID, s.sizer.Params())
	if err != nil {
		return domain.NewFailedOutcome(pair.ProductID, nil, err)
	}

	sizing, err := s.sizer.Size(snap, pair)
	if err != nil {
		return domain.NewFailedOutcome(pair.ProductID, &sizing, err)
	}
	if sizing.Skip {
		return domain.NewSkippedOutcome(pair.ProductID, &sizing, sizing.SkipReason)
	}

	submittedAt := s.now()
	req := domain.OrderRequest{
		ProductID:     pair.ProductID,
		BaseSize:      sizing.BaseSize,
		LimitPrice:    sizing.LimitPrice,
		PostOnly:      pair.PostOnly,
		ClientOrderID: ClientOrderID(pair.ProductID, submittedAt),
	}

	result, err := s.orders.SubmitLimitBuy(ctx, req)
	if err != nil {
		out := domain.NewFailedOutcome(pair.ProductID, &sizing, err)
		if result.ClientOrderID == "" {
			result.ClientOrderID = req.ClientOrderID
		}
		out.Order = &result
		return out
	}

	return domain.PairOutcome{
		ProductID: pair.ProductID,
		Status:    domain.OutcomePlaced,
		Sizing:    &sizing,
		Order:     &result,
	}
}

// ClientOrderID derives the idempotency token for one submission attempt from
// the product and the submission instant.
func ClientOrderID(productID string, at time.Time) string {
	return productID + "_" + strconv.FormatInt(at.UnixNano(), 10)
}

// report logs, audits and notifies one outcome. Delivery and audit failures
// are logged only.
func (s *DCAService) report(ctx context.Context, runID string, o domain.PairOutcome) {
	attrs := []any{
		slog.String("run_id", runID),
		slog.String("product_id", o.ProductID),
		slog.String("status", string(o.Status)),
	}
	if o.Sizing != nil {
		attrs = append(attrs,
			slog.Float64("price", o.Sizing.Price),
			slog.Float64("multiplier", o.Sizing.Multiplier),
			slog.Float64("effective_usd", o.Sizing.EffectiveUSD),
		)
	}
	switch o.Status {
	case domain.OutcomePlaced:
		s.logger.InfoContext(ctx, "order placed", append(attrs,
			slog.String("order_id", o.Order.OrderID),
			slog.String("client_order_id", o.Order.ClientOrderID),
			slog.String("base_size", o.Sizing.BaseSize.StringFixed(8)),
			slog.String("limit_price", o.Sizing.LimitPrice.String()),
		)...)
	case domain.OutcomeSkipped:
		s.logger.InfoContext(ctx, "pair skipped", append(attrs,
			slog.String("kind", o.Kind),
			slog.String("reason", o.Reason),
		)...)
	default:
		s.logger.ErrorContext(ctx, "pair failed", append(attrs,
			slog.String("kind", o.Kind),
			slog.String("error", o.Reason),
		)...)
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, domain.AuditPairOutcome, AuditDetail(runID, s.dryRun, o)); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("product_id", o.ProductID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyOutcome(ctx, o); err != nil {
			s.logger.WarnContext(ctx, "notification failed",
				slog.String("product_id", o.ProductID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// AuditDetail flattens an outcome into the JSON detail of an audit row.
func AuditDetail(runID string, dryRun bool, o domain.PairOutcome) map[string]any {
	detail := map[string]any{
		"run_id":     runID,
		"dry_run":    dryRun,
		"product_id": o.ProductID,
		"status":     string(o.Status),
	}
	if o.Kind != "" {
		detail["kind"] = o.Kind
		detail["reason"] = o.Reason
	}
	if sz := o.Sizing; sz != nil {
		detail["price"] = sz.Price
		detail["short_avg"] = sz.ShortAvg
		detail["medium_avg"] = sz.MediumAvg
		detail["zone"] = string(sz.Zone)
		detail["window_zone"] = string(sz.WindowZone)
		detail["dynamic"] = sz.Dynamic
		detail["window"] = sz.Window
		detail["reserve"] = sz.Reserve
		detail["deep_dip"] = sz.DeepDip
		detail["multiplier"] = sz.Multiplier
		detail["effective_usd"] = sz.EffectiveUSD
		detail["capped"] = sz.Capped
		detail["limit_price"] = sz.LimitPrice.String()
		detail["base_size"] = sz.BaseSize.StringFixed(8)
	}
	if o.Order != nil {
		detail["order_id"] = o.Order.OrderID
		detail["client_order_id"] = o.Order.ClientOrderID
		detail["paper"] = o.Order.Paper
	}
	return detail
}
