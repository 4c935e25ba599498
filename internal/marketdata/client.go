// Package marketdata talks to the upstream price provider: an HTTP endpoint
// for daily OHLCV history and a WebSocket feed of live trade ticks.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"viklyst/internal/domain"
	"viklyst/internal/storage"
)

// ErrProviderUnavailable indicates the provider is down or the circuit
// breaker is open.
var ErrProviderUnavailable = errors.New("market data provider unavailable")

// Default configuration values.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultRatePerSecond = 5
	DefaultBurst         = 10
)

// Client fetches daily bar history from the provider's JSON API. Requests
// are rate limited and routed through a circuit breaker so a dead provider
// fails fast instead of piling up blocked calls.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithRateLimit sets the sustained request rate and burst size.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a provider client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRatePerSecond), DefaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "marketdata",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return c
}

// barRow is the provider's wire format for one daily bar.
type barRow struct {
	Day    string  `json:"day"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type barsResponse struct {
	Symbol string   `json:"symbol"`
	Bars   []barRow `json:"bars"`
}

// GetDailyBars fetches the daily bar history for symbol over [from, to],
// inclusive, sorted by day ascending. An unknown symbol surfaces
// storage.ErrNotFound.
func (c *Client) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]*domain.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchDailyBars(ctx, symbol, from, to)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return nil, err
	}

	return result.([]*domain.Bar), nil
}

func (c *Client) fetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]*domain.Bar, error) {
	q := url.Values{}
	q.Set("from", domain.FormatDay(from))
	q.Set("to", domain.FormatDay(to))
	endpoint := fmt.Sprintf("%s/v1/instruments/%s/bars/daily?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("symbol %s: %w", symbol, storage.ErrNotFound)
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var wire barsResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	bars := make([]*domain.Bar, 0, len(wire.Bars))
	for _, row := range wire.Bars {
		day, err := domain.ParseDay(row.Day)
		if err != nil {
			return nil, fmt.Errorf("bad day %q: %w", row.Day, err)
		}
		bars = append(bars, &domain.Bar{
			Symbol: symbol,
			Day:    day,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}

	return bars, nil
}
