package coinbase

import "fmt"

// --------------------------------------------------------------------------
// Advanced Trade REST DTOs
// --------------------------------------------------------------------------

// Product is the subset of GET /products/{id} the bot reads. Prices are
// decimal strings.
type Product struct {
	ProductID       string `json:"product_id"`
	Price           string `json:"price"`
	Status          string `json:"status"`
	BaseIncr        string `json:"base_increment"`
	QuoteIncr       string `json:"quote_increment"`
	TradingDisabled bool   `json:"trading_disabled"`
}

// CandleDTO is one bucket as returned by GET /products/{id}/candles. Start is
// a unix-seconds string; the list is newest first.
type CandleDTO struct {
	Start  string `json:"start"`
	Low    string `json:"low"`
	High   string `json:"high"`
	Open   string `json:"open"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

type candlesResponse struct {
	Candles []CandleDTO `json:"candles"`
}

// LimitGTC is the limit_limit_gtc order configuration.
type LimitGTC struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
	PostOnly   bool   `json:"post_only"`
}

// OrderConfiguration wraps the single order-type variant the bot uses.
type OrderConfiguration struct {
	LimitGTC *LimitGTC `json:"limit_limit_gtc,omitempty"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	ClientOrderID      string             `json:"client_order_id"`
	ProductID          string             `json:"product_id"`
	Side               string             `json:"side"`
	OrderConfiguration OrderConfiguration `json:"order_configuration"`
}

// CreateOrderResponse is the body returned by POST /orders. Exactly one of
// SuccessResponse and ErrorResponse is populated.
type CreateOrderResponse struct {
	Success         bool                `json:"success"`
	FailureReason   string              `json:"failure_reason"`
	OrderID         string              `json:"order_id"`
	SuccessResponse *OrderSuccessDetail `json:"success_response,omitempty"`
	ErrorResponse   *OrderErrorDetail   `json:"error_response,omitempty"`
}

// OrderSuccessDetail is the success_response object.
type OrderSuccessDetail struct {
	OrderID       string `json:"order_id"`
	ProductID     string `json:"product_id"`
	Side          string `json:"side"`
	ClientOrderID string `json:"client_order_id"`
}

// OrderErrorDetail is the error_response object.
type OrderErrorDetail struct {
	Error                 string `json:"error"`
	Message               string `json:"message"`
	ErrorDetails          string `json:"error_details"`
	PreviewFailureReason  string `json:"preview_failure_reason"`
	NewOrderFailureReason string `json:"new_order_failure_reason"`
}

// APIError is a non-2xx response from the REST API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
	Details    string `json:"error_details"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
}

// --------------------------------------------------------------------------
// WebSocket messages
// --------------------------------------------------------------------------

type wsSubscribe struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channel    string   `json:"channel"`
	JWT        string   `json:"jwt,omitempty"`
}

type wsMessage struct {
	Channel string    `json:"channel"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Events  []wsEvent `json:"events"`
}

type wsEvent struct {
	Type    string     `json:"type"`
	Tickers []wsTicker `json:"tickers"`
}

type wsTicker struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
}
