package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

// PaperSubmitter stands in for the exchange in dry-run mode. It accepts every
// order without sending anything.
type PaperSubmitter struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewPaperSubmitter creates a PaperSubmitter.
func NewPaperSubmitter(logger *slog.Logger) *PaperSubmitter {
	return &PaperSubmitter{
		now:    time.Now,
		logger: logger.With(slog.String("component", "paper")),
	}
}

// SubmitLimitBuy acknowledges req with a synthetic order id.
func (p *PaperSubmitter) SubmitLimitBuy(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	res := domain.OrderResult{
		Success:       true,
		OrderID:       "paper-" + uuid.NewString(),
		ClientOrderID: req.ClientOrderID,
		SubmittedAt:   p.now().UTC(),
		Paper:         true,
	}
	p.logger.InfoContext(ctx, "paper order accepted",
		slog.String("product_id", req.ProductID),
		slog.String("order_id", res.OrderID),
		slog.String("base_size", req.BaseSizeString()),
		slog.String("limit_price", req.LimitPriceString()),
		slog.Bool("post_only", req.PostOnly),
	)
	return res, nil
}
