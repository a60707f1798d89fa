// Package sheets implements the spreadsheet API client.
// Editorial tables (statistics, challenges, products) live in a shared
// spreadsheet; purchase reports are appended to another one. This package
// handles both directions.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/shared"
	"github.com/skypro-hub/bonus-hub/internal/infrastructure/export"
	"github.com/skypro-hub/bonus-hub/pkg/circuitbreaker"
	"github.com/skypro-hub/bonus-hub/pkg/retry"
)

// ErrUnavailable reports that the spreadsheet API could not serve the
// request after retries.
var ErrUnavailable = shared.NewDomainError("sheets", "Request", shared.ErrServiceUnavailable, "sheets api unavailable")

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the spreadsheet API client.
type ClientConfig struct {
	// BaseURL is the spreadsheet API root.
	BaseURL string

	// SpreadsheetID identifies the document.
	SpreadsheetID string

	// Token is the bearer token for API access.
	Token string

	// ReportSheet is the sheet appended rows are written to.
	ReportSheet string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(spreadsheetID, token string) ClientConfig {
	return ClientConfig{
		BaseURL:       "https://sheets.googleapis.com/v4/spreadsheets",
		SpreadsheetID: spreadsheetID,
		Token:         token,
		ReportSheet:   "purchases",
		Timeout:       30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the spreadsheet API client.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	retrier        *retry.Retrier
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewClient creates a new spreadsheet client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	}
	if config.ReportSheet == "" {
		config.ReportSheet = "purchases"
	}

	logger := config.Logger

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger,
		retrier: retry.SheetsRetrier(),
		circuitBreaker: circuitbreaker.SheetsAPIBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("sheets circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		}),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS (feed loading)
// ══════════════════════════════════════════════════════════════════════════════

// valuesResponse is the wire format of a range read.
type valuesResponse struct {
	Range  string     `json:"range"`
	Values [][]string `json:"values"`
}

// GetSheetValues fetches all rows of one sheet by name.
func (c *Client) GetSheetValues(ctx context.Context, sheetName string) ([][]string, error) {
	path := fmt.Sprintf("/%s/values/%s",
		url.PathEscape(c.config.SpreadsheetID), url.PathEscape(sheetName))

	var response valuesResponse
	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.doRequest(ctx, http.MethodGet, path, nil, &response)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get sheet %q: %w: %v", sheetName, ErrUnavailable, err)
	}

	c.logger.Debug("sheet loaded", "sheet", sheetName, "rows", len(response.Values))
	return response.Values, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// APPEND OPERATIONS (purchase report sink)
// ══════════════════════════════════════════════════════════════════════════════

// appendRequest is the wire format of an append call.
type appendRequest struct {
	Values [][]string `json:"values"`
}

// appendResponse carries the portion of the reply we verify.
type appendResponse struct {
	Updates struct {
		UpdatedRows int `json:"updatedRows"`
	} `json:"updates"`
}

// AppendRow appends a single row to the report sheet.
func (c *Client) AppendRow(ctx context.Context, row export.Row) error {
	return c.AppendRows(ctx, []export.Row{row})
}

// AppendRows appends a batch of rows. The API reports how many rows it
// wrote; a mismatch is treated as a failure so the caller can retry.
func (c *Client) AppendRows(ctx context.Context, rows []export.Row) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]string, len(rows))
	for i, r := range rows {
		values[i] = r
	}

	path := fmt.Sprintf("/%s/values/%s:append?valueInputOption=USER_ENTERED",
		url.PathEscape(c.config.SpreadsheetID),
		url.PathEscape(c.config.ReportSheet+"!A1"))

	var response appendResponse
	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, http.MethodPost, path, appendRequest{Values: values}, &response)
	})
	if err != nil {
		return fmt.Errorf("append %d rows: %w: %v", len(rows), ErrUnavailable, err)
	}

	if response.Updates.UpdatedRows != len(rows) {
		return fmt.Errorf("append: expected %d updated rows, got %d",
			len(rows), response.Updates.UpdatedRows)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a single HTTP request against the spreadsheet API.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return retry.Retryable(fmt.Errorf("sheets api: status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return retry.Permanent(fmt.Errorf("sheets api: status %d: %s", resp.StatusCode, string(respBody)))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
	}

	return nil
}
