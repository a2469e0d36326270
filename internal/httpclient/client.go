// Package httpclient provides the HTTP client used by the HTTP
// registry: bounded retries with exponential backoff, optional bearer
// authentication, and an in-memory TTL response cache keyed by URL.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetries  = 3
	defaultCacheTTL = 5 * time.Minute

	userAgent = "promptscript-go/1.0"
)

// Client defines the interface for HTTP fetch operations.
type Client interface {
	// Get performs a GET request and returns the response body.
	Get(ctx context.Context, url string) ([]byte, error)
}

// Options configures the default client.
type Options struct {
	// Timeout bounds each individual request attempt. Zero means the
	// default of 30s.
	Timeout time.Duration

	// Retries is the number of attempts for retryable failures. Zero
	// means the default of 3; use 1 to disable retrying.
	Retries int

	// BearerToken, when non-empty, is sent as an Authorization header.
	BearerToken string

	// CacheEnabled turns on the in-memory response cache.
	CacheEnabled bool

	// CacheTTL bounds how long a cached response is served. Zero means
	// the default of 5m.
	CacheTTL time.Duration
}

// defaultClient implements Client on net/http.
type defaultClient struct {
	httpClient *http.Client
	retries    int
	token      string
	cache      *gocache.Cache
	cacheTTL   time.Duration
}

var _ Client = (*defaultClient)(nil)

// New creates a client with the given options.
func New(opts Options) Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}

	c := &defaultClient{
		httpClient: &http.Client{Timeout: opts.Timeout},
		retries:    opts.Retries,
		token:      opts.BearerToken,
		cacheTTL:   opts.CacheTTL,
	}
	if opts.CacheEnabled {
		c.cache = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return c
}

// NewDefaultClient creates a client with the default retry policy and
// no cache. A zero timeout uses the default.
func NewDefaultClient(timeout time.Duration) Client {
	return New(Options{Timeout: timeout})
}

// Get performs a GET request with retries. Responses are cached by URL
// when caching is enabled; a cache hit skips the network entirely.
func (c *defaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	if c.cache != nil {
		if cached, found := c.cache.Get(url); found {
			if body, ok := cached.([]byte); ok {
				slog.Debug("http cache hit", "url", url)
				return body, nil
			}
		}
	}

	operation := func() ([]byte, error) {
		return c.getOnce(ctx, url)
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.retries)), //nolint:gosec // retries is a small positive int
	)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(url, body, c.cacheTTL)
	}
	return body, nil
}

func (c *defaultClient) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain, application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		httpErr := NewHTTPError(resp.StatusCode, url, resp.Status)
		// Client errors will not improve on retry; server errors might.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(httpErr)
		}
		return nil, httpErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
