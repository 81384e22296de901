package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bicepspshop/newcoach/internal/metrics"
)

const (
	restPrefix   = "/rest/v1"
	maxRetries   = 3
	initialDelay = 500 * time.Millisecond
	maxDelay     = 10 * time.Second
)

// Client talks to a Supabase PostgREST endpoint. Every request carries the
// fixed apikey/bearer credential pair; mutations ask for the full affected-row
// representation back so callers get server-assigned ids without a re-read.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// NewClient creates a new store client for the given Supabase project URL
func NewClient(supabaseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    supabaseURL + restPrefix,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Fetch performs a filtered read against a collection. A query that matches
// no rows returns an empty slice, never nil.
func (c *Client) Fetch(ctx context.Context, collection string, filter Filter, opts *FetchOptions) ([]json.RawMessage, error) {
	endpoint := "/" + collection + encodeQuery(filter, opts)

	body, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", collection, err)
	}

	return decodeRows(body)
}

// Insert creates a record and returns the stored representation, including
// the server-assigned id and timestamps.
func (c *Client) Insert(ctx context.Context, collection string, record any) ([]json.RawMessage, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/"+collection, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}

	return decodeRows(body)
}

// Update applies a partial record to every row matching the filter and
// returns the affected rows.
func (c *Client) Update(ctx context.Context, collection string, filter Filter, partial any) ([]json.RawMessage, error) {
	payload, err := json.Marshal(partial)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal partial record: %w", err)
	}

	endpoint := "/" + collection + encodeQuery(filter, nil)
	body, err := c.doRequest(ctx, http.MethodPatch, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", collection, err)
	}

	return decodeRows(body)
}

// Delete removes every row matching the filter and returns the deleted rows
func (c *Client) Delete(ctx context.Context, collection string, filter Filter) ([]json.RawMessage, error) {
	endpoint := "/" + collection + encodeQuery(filter, nil)
	body, err := c.doRequest(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to delete from %s: %w", collection, err)
	}

	return decodeRows(body)
}

// doRequest performs an HTTP request with retries for transient failures.
// Transport errors, 429 and 5xx retry with exponential backoff; any other
// non-2xx status surfaces as a *StoreError for the caller to decide on.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	requestID := uuid.NewString()
	collection, _, _ := strings.Cut(strings.TrimPrefix(endpoint, "/"), "?")

	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Info("retrying store request", "request_id", requestID, "attempt", attempt, "delay_ms", delay.Milliseconds())
			metrics.StoreRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
		req.Header.Set("X-Request-Id", requestID)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		if err != nil {
			lastErr = err
			c.logger.Error("store request failed", "request_id", requestID, "method", method, "endpoint", endpoint, "error", err, "attempt", attempt)
			continue
		}

		statusStr := strconv.Itoa(resp.StatusCode)
		metrics.StoreRequestsTotal.WithLabelValues(collection, method, statusStr).Inc()
		metrics.StoreRequestDuration.WithLabelValues(collection, method, statusStr).Observe(duration.Seconds())

		c.logger.Info("store_request", "request_id", requestID, "method", method, "endpoint", endpoint, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read response body: %w", err)
			}
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			if retryAfter := parseRetryAfter(resp.Header); retryAfter > 0 {
				delay = retryAfter
			}
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error (%d)", resp.StatusCode)
			continue
		default:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, &StoreError{
				StatusCode: resp.StatusCode,
				Body:       string(body),
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// decodeRows unmarshals a PostgREST response body into raw rows. An empty
// body (204-style delete responses) decodes as an empty slice.
func decodeRows(body []byte) ([]json.RawMessage, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []json.RawMessage{}, nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	if rows == nil {
		rows = []json.RawMessage{}
	}
	return rows, nil
}

// parseRetryAfter extracts retry delay from Retry-After header
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	seconds, err := strconv.Atoi(retryAfter)
	if err != nil {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
