package cardsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tcgvault/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	userAgent       = "TCGVault-Importer/1.0"
	maxBodyBytes    = 4 << 20
	maxErrorSnippet = 512
)

// Config holds the card search client settings
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
}

// Client handles communication with the card search service
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	maxRetries  int
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new card search client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		maxRetries:  retries,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:      logger.Named("cardsearch"),
		sleep:       sleepContext,
	}
}

// Search queries the card search service.
// A response with Success false is returned as is, not as an error.
func (c *Client) Search(ctx context.Context, query string, game domain.Game, limit int) (*domain.SearchResponse, error) {
	if query == "" {
		return nil, domain.ErrInvalidRequest
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("game", string(game))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	reqURL := fmt.Sprintf("%s/cards/search?%s", c.baseURL, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrSearchFailure, ctx.Err())
			}
			c.logger.Debug("request error", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := readLimitedBody(resp.Body, maxBodyBytes)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%w: read body: %v", domain.ErrSearchFailure, readErr)
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.Debug("search service error",
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode),
				zap.String("body", snippet(body)))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrSearchFailure, resp.StatusCode)
			if !retryable(resp.StatusCode) {
				return nil, lastErr
			}
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		var env searchEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		out := mapToSearchResponse(&env, game)
		c.logger.Debug("search finished",
			zap.String("query", query),
			zap.String("game", string(game)),
			zap.Bool("success", out.Success),
			zap.Int("results", len(out.Data)))
		return out, nil
	}

	c.logger.Warn("all retries failed", zap.String("query", query), zap.Error(lastErr))
	return nil, lastErr
}

// doRequest executes an HTTP GET request with proper headers
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailure, err)
	}
	return resp, nil
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	if attempt >= c.maxRetries {
		return nil
	}
	if err := c.sleep(ctx, exponentialBackoff(attempt)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSearchFailure, err)
	}
	return nil
}

// retryable reports whether a status is worth another attempt
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// readLimitedBody reads at most limit bytes
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

func snippet(b []byte) string {
	if len(b) > maxErrorSnippet {
		return string(b[:maxErrorSnippet])
	}
	return string(b)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
