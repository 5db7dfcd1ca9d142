// Package vendorhttp is the outbound HTTP layer shared by every vendor
// adapter: JSON envelopes, Retry-After handling on 429, bounded backoff
// on 5xx, and response errors that carry enough context for the error
// catalogue to match on.
package vendorhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 2 * time.Minute
	defaultMaxAttempts = 3
	maxBodySnippet     = 1 << 16
)

// ResponseError wraps a non-2xx vendor response with the identity the
// error catalogue matches against.
type ResponseError struct {
	Vendor     string
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Vendor, e.StatusCode, e.Body)
}

// RawResponse exposes the body for regex-based alert matching.
func (e *ResponseError) RawResponse() string { return e.Body }

// Stats receives network accounting from the client. The run lifecycle
// implements it to report calls, retries and wait time per sync.
type Stats interface {
	IncrNetworkCalls(int)
	IncrRetries(int)
	AddNetworkWait(time.Duration)
}

type noopStats struct{}

func (noopStats) IncrNetworkCalls(int)       {}
func (noopStats) IncrRetries(int)            {}
func (noopStats) AddNetworkWait(time.Duration) {}

type Option func(*Client)

// WithRateLimit paces requests client-side, on top of honoring the
// vendor's own Retry-After responses.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func WithStats(s Stats) Option {
	return func(c *Client) {
		c.stats = s
	}
}

// Client is a retrying JSON client bound to one vendor.
type Client struct {
	vendor      string
	http        *http.Client
	logger      *zap.Logger
	limiter     *rate.Limiter
	maxAttempts int
	stats       Stats

	// sleep is swapped in tests.
	sleep func(context.Context, time.Duration) error
}

func NewClient(vendor string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		vendor:      vendor,
		http:        &http.Client{Timeout: defaultTimeout},
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		stats:       noopStats{},
		sleep:       sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Request describes one vendor call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    any
}

// DoJSON performs the request and decodes the response body into out
// (skipped when out is nil). 429 responses sleep the advertised
// Retry-After and retry; 5xx responses retry with exponential backoff up
// to the attempt budget. 4xx responses fail immediately with a
// ResponseError.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		status, retryHeader, body, err := c.doOnce(ctx, req)
		if err != nil {
			// Transport-level failure: retry within the budget.
			lastErr = err
			if attempt+1 >= c.maxAttempts {
				return fmt.Errorf("%s: %w", c.vendor, err)
			}

			c.stats.IncrRetries(1)
			if err := c.backoff(ctx, attempt); err != nil {
				return err
			}
			continue
		}

		switch {
		case status >= 200 && status < 300:
			if out == nil || len(body) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%s: decode response: %w", c.vendor, err)
			}
			return nil

		case status == http.StatusTooManyRequests:
			// Rate limits are handled here and never surfaced.
			wait := retryAfter(retryHeader)
			c.logger.Warn("vendor rate limited, honoring Retry-After",
				zap.String("vendor", c.vendor),
				zap.Duration("wait", wait))

			c.stats.IncrRetries(1)
			if err := c.sleepAndCount(ctx, wait); err != nil {
				return err
			}
			continue

		case status >= 500:
			lastErr = &ResponseError{Vendor: c.vendor, StatusCode: status, Body: string(body)}
			if attempt+1 >= c.maxAttempts {
				return lastErr
			}

			c.stats.IncrRetries(1)
			if err := c.backoff(ctx, attempt); err != nil {
				return err
			}
			continue

		default:
			return &ResponseError{Vendor: c.vendor, StatusCode: status, Body: string(body)}
		}
	}
}

func (c *Client) doOnce(ctx context.Context, req Request) (int, string, []byte, error) {
	var reader io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return 0, "", nil, err
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		return 0, "", nil, err
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	c.stats.IncrNetworkCalls(1)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))
	if err != nil {
		return 0, "", nil, err
	}

	return resp.StatusCode, resp.Header.Get("Retry-After"), body, nil
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * time.Second
	return c.sleepAndCount(ctx, delay)
}

func (c *Client) sleepAndCount(ctx context.Context, d time.Duration) error {
	start := time.Now()
	err := c.sleep(ctx, d)
	c.stats.AddNetworkWait(time.Since(start))
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}
