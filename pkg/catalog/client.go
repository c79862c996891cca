// Package catalog provides the snapshot API client: rate limited, token
// budget aware, circuit-breaker protected, with a two-tier TTL cache in
// front of the wire.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arbscout/sourcing-cli/internal/model"
	"github.com/arbscout/sourcing-cli/internal/resilience"
)

// Client fetches raw product snapshots.
type Client interface {
	// Product returns the snapshot for one product ID, from cache when fresh.
	Product(ctx context.Context, asin string) (*model.RawSnapshot, error)

	// TokensLeft reports the request-token balance from the most recent
	// upstream response, or -1 before the first call.
	TokensLeft() int64
}

// ErrTokensExhausted is returned when the upstream token balance has dropped
// below the configured reserve; tokens refill upstream over time.
var ErrTokensExhausted = eris.New("catalog: token budget exhausted")

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit sets the request rate in calls per minute.
func WithRateLimit(perMinute float64) Option {
	return func(c *httpClient) {
		if perMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perMinute/60), 1)
		}
	}
}

// WithTokenReserve stops issuing requests once the upstream balance falls to
// this floor.
func WithTokenReserve(reserve int64) Option {
	return func(c *httpClient) { c.tokenReserve = reserve }
}

// WithBreaker installs a circuit breaker around upstream calls.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) { c.breaker = b }
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(c *httpClient) { c.retry = p }
}

// WithCache installs the snapshot cache.
func WithCache(cache *Cache) Option {
	return func(c *httpClient) { c.cache = cache }
}

type httpClient struct {
	apiKey  string
	domain  int
	baseURL string
	http    *http.Client

	limiter      *rate.Limiter
	breaker      *resilience.Breaker
	retry        resilience.RetryPolicy
	cache        *Cache
	tokenReserve int64

	mu         sync.Mutex
	tokensLeft int64
}

// NewClient builds a catalog client for one marketplace domain.
func NewClient(apiKey string, domain int, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		domain:  domain,
		baseURL: "https://api.keepa.com",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:    rate.NewLimiter(rate.Limit(20.0/60), 1),
		retry:      resilience.DefaultRetryPolicy(),
		tokensLeft: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.LogRetries("product")
	}
	return c
}

// wireResponse is the upstream envelope.
type wireResponse struct {
	TokensLeft int64                `json:"tokensLeft"`
	Products   []*model.RawSnapshot `json:"products"`
	Error      string               `json:"error,omitempty"`
}

func (c *httpClient) Product(ctx context.Context, asin string) (*model.RawSnapshot, error) {
	if c.cache != nil {
		if snap, ok := c.cache.Get(ctx, c.cacheKey(asin)); ok {
			return snap, nil
		}
	}

	if err := c.checkBudget(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "catalog: rate limit wait")
	}

	fetch := func(ctx context.Context) (*model.RawSnapshot, error) {
		return c.fetchProduct(ctx, asin)
	}
	var snap *model.RawSnapshot
	var err error
	if c.breaker != nil {
		snap, err = resilience.Guard(ctx, c.breaker, func(ctx context.Context) (*model.RawSnapshot, error) {
			return resilience.RetryVal(ctx, c.retry, fetch)
		})
	} else {
		snap, err = resilience.RetryVal(ctx, c.retry, fetch)
	}
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Put(ctx, c.cacheKey(asin), snap)
	}
	return snap, nil
}

func (c *httpClient) TokensLeft() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokensLeft
}

func (c *httpClient) cacheKey(asin string) string {
	return fmt.Sprintf("product:%d:%s", c.domain, asin)
}

func (c *httpClient) checkBudget() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokensLeft >= 0 && c.tokensLeft <= c.tokenReserve {
		return eris.Wrapf(ErrTokensExhausted, "%d tokens left, reserve %d", c.tokensLeft, c.tokenReserve)
	}
	return nil
}

func (c *httpClient) noteTokens(left int64) {
	c.mu.Lock()
	c.tokensLeft = left
	c.mu.Unlock()
}

func (c *httpClient) fetchProduct(ctx context.Context, asin string) (*model.RawSnapshot, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("domain", fmt.Sprintf("%d", c.domain))
	q.Set("asin", asin)

	reqURL := fmt.Sprintf("%s/product?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: request failed")
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, eris.Wrap(readErr, "catalog: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("catalog: status %d: %s", resp.StatusCode, string(body))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.MarkTransient(err, resp.StatusCode)
		}
		return nil, err
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, eris.Wrap(err, "catalog: decode response")
	}
	c.noteTokens(wire.TokensLeft)
	if wire.Error != "" {
		return nil, eris.Errorf("catalog: upstream error: %s", wire.Error)
	}
	if len(wire.Products) == 0 || wire.Products[0] == nil {
		return nil, eris.Errorf("catalog: no product in response for %s", asin)
	}

	zap.L().Debug("snapshot fetched",
		zap.String("asin", asin),
		zap.Int64("tokens_left", wire.TokensLeft))
	return wire.Products[0], nil
}
