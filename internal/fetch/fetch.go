// Package fetch provides the shared HTTP fetcher used by every poller.
// Responses are classified (429 rate-limited, 5xx/transport transient, other
// 4xx permanent) and transient failures are retried with exponential backoff
// inside a single GetJSON call.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/pkg/types"
)

const (
	// MaxAttempts bounds retries of a transient failure within one call.
	MaxAttempts = 5
	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay = 1 * time.Second
	// MaxDelay caps the backoff delay.
	MaxDelay = 32 * time.Second

	defaultTimeout = 10 * time.Second
)

// Config holds fetcher configuration.
type Config struct {
	Logger    *zap.Logger
	Timeout   time.Duration
	UserAgent string
	// BaseDelay overrides the first backoff delay. Tests shrink it.
	BaseDelay time.Duration
}

// Response carries the raw result of a successful GET.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client is a shared-connection-pool HTTP fetcher.
type Client struct {
	http      *resty.Client
	logger    *zap.Logger
	baseDelay time.Duration
}

// New creates a fetcher. Retry policy is handled explicitly in Get rather
// than by resty, because 429 must surface immediately to the caller.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		httpClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = BaseDelay
	}

	return &Client{
		http:      httpClient,
		logger:    cfg.Logger,
		baseDelay: baseDelay,
	}
}

// Get performs a GET with classification and backoff. On HTTP 429 it returns
// a *types.RateLimitedError immediately; transient failures are retried up
// to MaxAttempts before the last error is surfaced; other 4xx responses
// return a permanent *types.FetchError without retry.
func (c *Client) Get(ctx context.Context, url string, params, headers map[string]string) (*Response, error) {
	var lastErr error
	delay := c.baseDelay

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		resp, err := c.do(ctx, url, params, headers)
		if err == nil {
			return resp, nil
		}

		if types.IsRateLimited(err) || types.IsPermanent(err) {
			return nil, err
		}

		lastErr = err
		if attempt == MaxAttempts {
			break
		}

		RetriesTotal.Inc()
		c.logger.Warn("fetch-retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > MaxDelay {
			delay = MaxDelay
		}
	}

	return nil, lastErr
}

// do performs a single attempt and classifies the outcome.
func (c *Client) do(ctx context.Context, url string, params, headers map[string]string) (*Response, error) {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(url)
	if err != nil {
		RequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, &types.FetchError{Class: types.FetchTransient, URL: url, Err: err}
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests:
		RequestsTotal.WithLabelValues("rate_limited").Inc()
		return nil, &types.RateLimitedError{URL: url, RetryAfter: 60 * time.Second}
	case status >= 500:
		RequestsTotal.WithLabelValues("server_error").Inc()
		return nil, &types.FetchError{Class: types.FetchTransient, URL: url, StatusCode: status}
	case status >= 400:
		RequestsTotal.WithLabelValues("client_error").Inc()
		return nil, &types.FetchError{Class: types.FetchPermanent, URL: url, StatusCode: status}
	}

	RequestsTotal.WithLabelValues("ok").Inc()

	return &Response{
		StatusCode: status,
		Body:       resp.Body(),
		Header:     resp.Header(),
	}, nil
}

// GetJSON performs Get and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, url string, params, headers map[string]string, out interface{}) error {
	resp, err := c.Get(ctx, url, params, headers)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}

	return nil
}
