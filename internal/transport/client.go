// Package transport provides the HTTP client used by checkers that
// inspect a live target endpoint.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultUserAgent identifies outbound scanner traffic.
const defaultUserAgent = "scanhub-scanner/1.0"

// Client is the interface for outbound HTTP used by checkers.
type Client interface {
	// Get fetches the URL and returns the response with a size-capped body.
	Get(ctx context.Context, url string) (*Response, error)

	// Stats returns aggregate transport statistics.
	Stats() *Stats
}

// Response is a fetched HTTP response. Body holds at most the number of
// bytes the client was configured to read.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	URL        string
}

// Stats holds aggregate statistics for the transport client.
type Stats struct {
	TotalRequests int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
}

// ClientOptions holds configuration for creating a new DefaultClient.
type ClientOptions struct {
	// Timeout is the per-request timeout. Defaults to 10 seconds.
	Timeout time.Duration

	// MaxRPS is the maximum requests per second (0 = unlimited).
	MaxRPS float64

	// MaxBodyBytes caps how much of the response body is read.
	// Defaults to 5000 bytes.
	MaxBodyBytes int64

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// UserAgent overrides the default scanner User-Agent.
	UserAgent string
}

// DefaultClient is the default implementation of Client, backed by
// net/http.
type DefaultClient struct {
	httpClient *http.Client
	opts       ClientOptions
	limiter    *rate.Limiter

	mu              sync.RWMutex
	totalRequests   int64
	totalDurationNs int64
}

// Compile-time check that DefaultClient implements Client.
var _ Client = (*DefaultClient)(nil)

// NewClient creates a new DefaultClient with the given options.
func NewClient(opts ClientOptions) *DefaultClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5000
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
		ForceAttemptHTTP2: true,
	}

	dc := &DefaultClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}

	if opts.MaxRPS > 0 {
		dc.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}

	return dc
}

// Get fetches the URL. The response body is read up to MaxBodyBytes and
// the remainder is discarded.
func (c *DefaultClient) Get(ctx context.Context, url string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("transport: rate limiter: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.opts.UserAgent)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("transport: executing request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("transport: reading response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Duration:   duration,
		URL:        httpResp.Request.URL.String(),
	}

	c.mu.Lock()
	c.totalRequests++
	c.totalDurationNs += duration.Nanoseconds()
	c.mu.Unlock()

	return resp, nil
}

// Stats returns aggregate transport statistics.
func (c *DefaultClient) Stats() *Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &Stats{
		TotalRequests: c.totalRequests,
		TotalDuration: time.Duration(c.totalDurationNs),
	}
	if c.totalRequests > 0 {
		stats.AvgDuration = time.Duration(c.totalDurationNs / c.totalRequests)
	}
	return stats
}
