package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultWSURL is the public market-data WebSocket endpoint.
	DefaultWSURL = "wss://advanced-trade-ws.coinbase.com"

	wsWriteWait     = 10 * time.Second
	wsDefaultWindow = 15 * time.Second
)

// TickerSource reads current prices from the ticker channel. Each call opens
// a connection, waits for the first ticker for the product and closes it;
// runs are short-lived so nothing is kept open between pairs.
type TickerSource struct {
	wsURL   string
	signer  *Signer
	timeout time.Duration
	dialer  websocket.Dialer
	logger  *slog.Logger
}

// NewTickerSource creates a TickerSource for wsURL. signer may be nil; the
// ticker channel does not require authentication. timeout bounds the whole
// dial-subscribe-read exchange.
func NewTickerSource(wsURL string, signer *Signer, timeout time.Duration, logger *slog.Logger) *TickerSource {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	if timeout <= 0 {
		timeout = wsDefaultWindow
	}
	return &TickerSource{
		wsURL:   wsURL,
		signer:  signer,
		timeout: timeout,
		dialer:  websocket.Dialer{HandshakeTimeout: timeout},
		logger:  logger.With(slog.String("component", "coinbase_ws")),
	}
}

// CurrentPrice returns the price from the first ticker event for productID.
func (s *TickerSource) CurrentPrice(ctx context.Context, productID string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return 0, fmt.Errorf("coinbase/ws: connect: %w", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(deadline)

	// Unblock ReadMessage when the caller cancels.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	sub := wsSubscribe{Type: "subscribe", ProductIDs: []string{productID}, Channel: "ticker"}
	if s.signer != nil {
		if sub.JWT, err = s.signer.WSToken(); err != nil {
			return 0, err
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(sub); err != nil {
		return 0, fmt.Errorf("coinbase/ws: subscribe: %w", err)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, fmt.Errorf("coinbase/ws: waiting for %s ticker: %w", productID, ctxErr)
			}
			return 0, fmt.Errorf("coinbase/ws: read: %w", err)
		}

		price, found, err := parseTicker(raw, productID)
		if err != nil {
			return 0, err
		}
		if found {
			s.logger.DebugContext(ctx, "ticker price received",
				slog.String("product_id", productID),
				slog.Float64("price", price),
			)
			return price, nil
		}
	}
}

// parseTicker extracts productID's price from one channel message. Messages
// from other channels are ignored; an error message from the server is
// returned as an error.
func parseTicker(raw []byte, productID string) (float64, bool, error) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, false, fmt.Errorf("coinbase/ws: decode message: %w", err)
	}
	if msg.Type == "error" {
		return 0, false, fmt.Errorf("coinbase/ws: server error: %s", msg.Message)
	}
	if msg.Channel != "ticker" {
		return 0, false, nil
	}
	for _, ev := range msg.Events {
		for _, t := range ev.Tickers {
			if !strings.EqualFold(t.ProductID, productID) {
				continue
			}
			price, err := strconv.ParseFloat(strings.TrimSpace(t.Price), 64)
			if err != nil {
				return 0, false, fmt.Errorf("coinbase/ws: parse price %q: %w", t.Price, err)
			}
			return price, true, nil
		}
	}
	return 0, false, nil
}

// MarketData serves candles from the REST client and current prices from an
// alternative source such as a TickerSource.
type MarketData struct {
	*Client
	Prices interface {
		CurrentPrice(ctx context.Context, productID string) (float64, error)
	}
}

// CurrentPrice delegates to Prices.
func (m MarketData) CurrentPrice(ctx context.Context, productID string) (float64, error) {
	return m.Prices.CurrentPrice(ctx, productID)
}
