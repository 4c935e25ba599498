// Package oracle is the HTTP client for the Probability Oracle, the model
// service that scores next-day up-move probabilities for an instrument.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"viklyst/internal/backtest"
	"viklyst/internal/domain"
	"viklyst/internal/observability"
)

// Compile-time interface check.
var _ backtest.ProbabilitySource = (*Client)(nil)

// Sentinel errors for oracle failures.
var (
	// ErrUnavailable indicates the oracle could not be reached or refused
	// the request. Callers treat it as a per-day "no signal".
	ErrUnavailable = errors.New("oracle unavailable")

	// ErrInvalidResponse indicates the oracle answered with a payload the
	// client could not interpret.
	ErrInvalidResponse = errors.New("oracle returned invalid response")
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 200 * time.Millisecond
)

// Client calls the oracle's predict endpoint over HTTP.
type Client struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates an oracle client for the given base URL
// (e.g. "http://localhost:8001").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// predictRequest is the wire request for POST /predict.
type predictRequest struct {
	Symbol   string `json:"symbol"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

// predictResponse is the wire response for POST /predict.
type predictResponse struct {
	Symbol    string  `json:"symbol"`
	ModelFile string  `json:"model_file"`
	AsOf      string  `json:"as_of"`
	ProbUp    float64 `json:"prob_up"`
	Predicted int     `json:"predicted"` // 1 = up, 0 = down
}

// Predict asks the oracle for the up-move probability for symbol as of asOf,
// using history from the given from date through asOf. Transport failures and
// 5xx answers are retried; a still-failing call surfaces ErrUnavailable.
func (c *Client) Predict(ctx context.Context, symbol string, from, asOf time.Time) (*domain.Prediction, error) {
	body, err := json.Marshal(predictRequest{
		Symbol:   symbol,
		FromDate: domain.FormatDay(from),
		ToDate:   domain.FormatDay(asOf),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	pred, err := c.predict(ctx, body)
	observability.RecordOracleCall(time.Since(start).Seconds(), failureReason(err))
	return pred, err
}

func (c *Client) predict(ctx context.Context, body []byte) (*domain.Prediction, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		pred, retry, err := c.predictOnce(ctx, body)
		if err == nil {
			return pred, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "unavailable"
	}
}

// predictOnce performs a single predict call. The retry result reports
// whether the failure is worth another attempt.
func (c *Client) predictOnce(ctx context.Context, body []byte) (pred *domain.Prediction, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
	default:
		// 4xx answers are definitive; the oracle understood and refused.
		return nil, false, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, respBody)
	}

	var wire predictResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	asOf, err := domain.ParseDay(wire.AsOf)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad as_of %q", ErrInvalidResponse, wire.AsOf)
	}
	if wire.ProbUp < 0 || wire.ProbUp > 1 {
		return nil, false, fmt.Errorf("%w: prob_up %v out of [0,1]", ErrInvalidResponse, wire.ProbUp)
	}

	return &domain.Prediction{
		Symbol:    wire.Symbol,
		AsOf:      asOf,
		ProbUp:    wire.ProbUp,
		Predicted: wire.Predicted,
		ModelFile: wire.ModelFile,
	}, false, nil
}
