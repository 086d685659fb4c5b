package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrendZone classifies the current price against the short and medium
// averages.
type TrendZone string

const (
	TrendZoneCheap     TrendZone = "cheap"
	TrendZoneExpensive TrendZone = "expensive"
	TrendZoneMixed     TrendZone = "mixed"
)

// WindowZone classifies the long-horizon last close against the percentile
// band.
type WindowZone string

const (
	WindowZoneCheap       WindowZone = "cheap"
	WindowZoneExpensive   WindowZone = "expensive"
	WindowZoneNormal      WindowZone = "normal"
	WindowZoneUnavailable WindowZone = "unavailable"
)

// SizingResult is the output of the sizing engine for one pair. Every
// intermediate multiplier is kept for audit and notification.
type SizingResult struct {
	ProductID string  `json:"product_id"`
	Price     float64 `json:"price"`
	ShortAvg  float64 `json:"short_avg"`
	MediumAvg float64 `json:"medium_avg"`

	Zone       TrendZone  `json:"zone"`
	Dynamic    float64    `json:"dynamic"`
	WindowZone WindowZone `json:"window_zone"`
	Window     float64    `json:"window"`
	DeepDip    bool       `json:"deep_dip"`
	Reserve    float64    `json:"reserve"`
	Raw        float64    `json:"raw"`
	Multiplier float64    `json:"multiplier"` // Raw clamped to [MinShrink, MaxBoost]

	EffectiveUSD float64         `json:"effective_usd"`
	Capped       bool            `json:"capped"`
	LimitPrice   decimal.Decimal `json:"limit_price"`
	BaseSize     decimal.Decimal `json:"base_size"`

	Skip       bool  `json:"skip"`
	SkipReason error `json:"-"`
}

// OrderRequest is a post-only limit buy ready for submission.
type OrderRequest struct {
	ProductID     string
	BaseSize      decimal.Decimal
	LimitPrice    decimal.Decimal
	PostOnly      bool
	ClientOrderID string // idempotency token, unique per attempt
}

// BaseSizeString renders the base size with eight decimals.
func (r OrderRequest) BaseSizeString() string {
	return r.BaseSize.StringFixed(8)
}

// LimitPriceString renders the limit price without trailing zeros, so a
// whole-unit limit is sent as an integer string.
func (r OrderRequest) LimitPriceString() string {
	return r.LimitPrice.String()
}

// OrderResult is the exchange acknowledgement of a submitted order.
type OrderResult struct {
	Success       bool      `json:"success"`
	OrderID       string    `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"`
	SubmittedAt   time.Time `json:"submitted_at"`
	Paper         bool      `json:"paper,omitempty"`
}
