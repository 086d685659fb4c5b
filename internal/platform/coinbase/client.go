// Package coinbase is a small client for the Coinbase Advanced Trade API:
// product prices, historical candles and limit order placement.
package coinbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

const (
	// DefaultBaseURL is the production REST root.
	DefaultBaseURL = "https://api.coinbase.com"

	// MaxCandles is the largest number of buckets one candles request returns.
	MaxCandles = 350

	brokeragePath = "/api/v3/brokerage"
	throttleKey   = "coinbase:rest"
	userAgent     = "dcabot/1.0"
)

// Throttle blocks until a request is allowed.
type Throttle interface {
	Wait(ctx context.Context, key string) error
}

// Client is the REST client for Coinbase Advanced Trade. Without a Signer it
// only reaches the public market-data endpoints.
type Client struct {
	baseURL    string
	host       string
	signer     *Signer
	httpClient *http.Client
	throttle   Throttle
	now        func() time.Time
	logger     *slog.Logger
}

// NewClient creates a Client rooted at baseURL. signer may be nil for
// read-only public access.
func NewClient(baseURL string, signer *Signer, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("coinbase: invalid base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		host:       u.Host,
		signer:     signer,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		logger:     logger.With(slog.String("component", "coinbase")),
	}, nil
}

// SetThrottle makes every subsequent request wait on t first.
func (c *Client) SetThrottle(t Throttle) { c.throttle = t }

// Authenticated reports whether the client can reach private endpoints.
func (c *Client) Authenticated() bool { return c.signer != nil }

// CurrentPrice returns the last traded price of productID.
func (c *Client) CurrentPrice(ctx context.Context, productID string) (float64, error) {
	var product Product
	if err := c.get(ctx, c.productPath(productID), nil, &product); err != nil {
		return 0, fmt.Errorf("coinbase: get product %s: %w", productID, err)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(product.Price), 64)
	if err != nil {
		return 0, fmt.Errorf("coinbase: parse price %q for %s: %w", product.Price, productID, err)
	}
	return price, nil
}

// Candles returns up to count buckets of granularity ending now, oldest
// first. count must not exceed MaxCandles.
func (c *Client) Candles(ctx context.Context, productID string, granularity domain.Granularity, count int) ([]domain.Candle, error) {
	if count <= 0 || count > MaxCandles {
		return nil, fmt.Errorf("coinbase: candles %s: count %d outside 1..%d", productID, count, MaxCandles)
	}
	width := granularity.Duration()
	if width == 0 {
		return nil, fmt.Errorf("coinbase: candles %s: unsupported granularity %q", productID, granularity)
	}

	end := c.now().UTC()
	start := end.Add(-time.Duration(count) * width)
	query := url.Values{
		"start":       {strconv.FormatInt(start.Unix(), 10)},
		"end":         {strconv.FormatInt(end.Unix(), 10)},
		"granularity": {string(granularity)},
		"limit":       {strconv.Itoa(count)},
	}

	var resp candlesResponse
	if err := c.get(ctx, c.productPath(productID)+"/candles", query, &resp); err != nil {
		return nil, fmt.Errorf("coinbase: get candles %s: %w", productID, err)
	}

	out := make([]domain.Candle, 0, len(resp.Candles))
	for _, dto := range resp.Candles {
		candle, err := dto.toDomain()
		if err != nil {
			c.logger.WarnContext(ctx, "dropping malformed candle",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, candle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// SubmitLimitBuy places a GTC limit buy. A declined order is returned as a
// *domain.RejectionError; transport, auth and HTTP failures wrap
// domain.ErrSubmissionFailure.
func (c *Client) SubmitLimitBuy(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	result := domain.OrderResult{ClientOrderID: req.ClientOrderID, SubmittedAt: c.now().UTC()}
	if c.signer == nil {
		return result, fmt.Errorf("coinbase: create order: %w: no api credentials", domain.ErrSubmissionFailure)
	}

	body := CreateOrderRequest{
		ClientOrderID: req.ClientOrderID,
		ProductID:     req.ProductID,
		Side:          "BUY",
		OrderConfiguration: OrderConfiguration{
			LimitGTC: &LimitGTC{
				BaseSize:   req.BaseSizeString(),
				LimitPrice: req.LimitPriceString(),
				PostOnly:   req.PostOnly,
			},
		},
	}

	var resp CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, brokeragePath+"/orders", nil, body, &resp); err != nil {
		return result, fmt.Errorf("coinbase: create order %s: %w: %w", req.ProductID, domain.ErrSubmissionFailure, err)
	}

	if !resp.Success {
		rej := &domain.RejectionError{Code: resp.FailureReason}
		if e := resp.ErrorResponse; e != nil {
			rej.Code = firstNonEmpty(e.Error, e.PreviewFailureReason, e.NewOrderFailureReason, resp.FailureReason)
			rej.Message = e.Message
			rej.Details = e.ErrorDetails
		}
		if rej.Code == "" {
			rej.Code = "UNKNOWN_FAILURE_REASON"
		}
		return result, fmt.Errorf("coinbase: create order %s: %w", req.ProductID, rej)
	}

	result.Success = true
	result.OrderID = resp.OrderID
	if s := resp.SuccessResponse; s != nil {
		result.OrderID = firstNonEmpty(s.OrderID, resp.OrderID)
		if s.ClientOrderID != "" {
			result.ClientOrderID = s.ClientOrderID
		}
	}
	return result, nil
}

// productPath picks the authenticated product endpoint when a signer is
// configured and the public market endpoint otherwise.
func (c *Client) productPath(productID string) string {
	if c.signer == nil {
		return brokeragePath + "/market/products/" + url.PathEscape(productID)
	}
	return brokeragePath + "/products/" + url.PathEscape(productID)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// do sends one request, authenticating it when a signer is configured, and
// decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody, out any) error {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx, throttleKey); err != nil {
			return fmt.Errorf("throttle: %w", err)
		}
	}

	var bodyReader io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.signer != nil {
		token, err := c.signer.RESTToken(method, c.host, path)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, apiErr); jsonErr != nil {
			apiErr.Message = truncate(string(respBody), 256)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", domain.ErrRateLimited, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (dto CandleDTO) toDomain() (domain.Candle, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(dto.Start), 10, 64)
	if err != nil || ts <= 0 {
		return domain.Candle{}, fmt.Errorf("bad start %q", dto.Start)
	}
	closePrice, err := strconv.ParseFloat(strings.TrimSpace(dto.Close), 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("bad close %q: %w", dto.Close, err)
	}
	// Open/high/low/volume are informational; a malformed value reads as 0.
	open, _ := strconv.ParseFloat(dto.Open, 64)
	high, _ := strconv.ParseFloat(dto.High, 64)
	low, _ := strconv.ParseFloat(dto.Low, 64)
	volume, _ := strconv.ParseFloat(dto.Volume, 64)
	return domain.Candle{
		Start:  time.Unix(ts, 0).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
