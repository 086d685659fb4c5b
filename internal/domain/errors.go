package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDataUnavailable     = errors.New("market data unavailable")
	ErrInsufficientHistory = errors.New("insufficient price history")
	ErrDustOrder           = errors.New("order below minimum size")
	ErrOrderRejected       = errors.New("order rejected by exchange")
	ErrSubmissionFailure   = errors.New("order submission failed")
	ErrInvalidHorizon      = errors.New("invalid history horizon")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrAbovePriceCeiling   = errors.New("price above configured ceiling")
	ErrLimitPriceTooLow    = errors.New("limit price rounds to zero")
	ErrLockHeld            = errors.New("lock already held")
	ErrRateLimited         = errors.New("rate limited")
)

// RejectionError carries the exchange-provided detail for a declined order.
// It unwraps to ErrOrderRejected.
type RejectionError struct {
	Code    string // e.g. INVALID_LIMIT_PRICE_POST_ONLY
	Message string
	Details string
}

func (e *RejectionError) Error() string {
	msg := e.Code
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return fmt.Sprintf("%s: %s", ErrOrderRejected, msg)
}

func (e *RejectionError) Unwrap() error { return ErrOrderRejected }

// ErrorKind maps an error onto the stable taxonomy names used in
// notifications, audit rows and metrics labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrDustOrder):
		return "dust_order"
	case errors.Is(err, ErrAbovePriceCeiling):
		return "above_price_ceiling"
	case errors.Is(err, ErrLimitPriceTooLow):
		return "limit_price_too_low"
	case errors.Is(err, ErrOrderRejected):
		return "order_rejected"
	case errors.Is(err, ErrSubmissionFailure):
		return "submission_failure"
	case errors.Is(err, ErrInvalidHorizon):
		return "invalid_horizon"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	default:
		return "internal"
	}
}
