// Package statsapi implements the statistics provider API client.
// The provider computes per-student learning metrics and serves them as
// JSON by student id. This package handles all communication with it,
// including retries, fault tolerance and authentication.
package statsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/shared"
	"github.com/skypro-hub/bonus-hub/internal/domain/student"
	"github.com/skypro-hub/bonus-hub/pkg/circuitbreaker"
	"github.com/skypro-hub/bonus-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the stats API client.
type ClientConfig struct {
	// BaseURL is the stats API endpoint URL
	BaseURL string

	// Token is sent in the X-Authorization-Token header
	Token string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL, token string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Token:   token,
		Timeout: 5 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrUnavailable reports that the stats API could not serve the request.
// It carries the transient kind so callers can classify it with
// shared.IsRetryable.
var ErrUnavailable = shared.NewDomainError("statsapi", "GetStats", shared.ErrServiceUnavailable, "stats api unavailable")

// StatusError reports a non-200 response from the provider.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stats api: unexpected status %s", e.Status)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the statistics provider API client.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	retrier        *retry.Retrier
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewClient creates a new stats API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	logger := config.Logger

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger,
		retrier: retry.StatsAPIRetrier(),
		circuitBreaker: circuitbreaker.StatsAPIBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("stats api circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		}),
	}
}

// GetStats fetches the statistics of one student.
//
// Timeouts and 5xx responses are retried with exponential backoff.
// When every attempt fails, the error wraps ErrUnavailable; callers
// decide whether to fall back to the last stored snapshot.
func (c *Client) GetStats(ctx context.Context, id student.ID) (student.Statistics, error) {
	var stats student.Statistics

	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			fetched, err := c.fetchStats(ctx, id)
			if err != nil {
				return err
			}
			stats = fetched
			return nil
		})
	})
	if err != nil {
		c.logger.Error("stats fetch failed",
			"student_id", int64(id), "error", err)
		return nil, fmt.Errorf("get stats for student %d: %w: %v", id, ErrUnavailable, err)
	}

	return stats, nil
}

// fetchStats performs one request. Retryable failures are wrapped so the
// retrier distinguishes them from permanent ones.
func (c *Client) fetchStats(ctx context.Context, id student.ID) (student.Statistics, error) {
	reqURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("parse base url: %w", err))
	}
	q := reqURL.Query()
	q.Set("student_id", strconv.FormatInt(int64(id), 10))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Authorization-Token", c.config.Token)

	if c.config.Debug {
		c.logger.Debug("stats api request", "student_id", int64(id))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are worth retrying.
		return nil, retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, retry.Retryable(statusErr)
		}
		return nil, retry.Permanent(statusErr)
	}

	var stats student.Statistics
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode stats: %w", err))
	}

	return stats, nil
}

// IsHealthy checks if the stats API answers at all.
func (c *Client) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("X-Authorization-Token", c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
