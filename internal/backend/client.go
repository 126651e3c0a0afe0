// Package backend provides the resilient HTTP client for the Signal
// Harvester backend API: per-attempt timeouts composed with caller
// cancellation, exponential backoff on transient failures, and a single
// normalized error shape for every failure path.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"signal-harvester-go/internal/config"
	"signal-harvester-go/internal/metrics"
)

// Client sends requests to the Signal Harvester backend API.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	retry          RetryPolicy
	attemptTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// New creates a Client with connection pooling from the backend section of
// the config. The metrics parameter is optional; pass nil to disable backend
// metrics recording.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Backend.IdleConnections,
		MaxIdleConnsPerHost: cfg.Backend.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	// Zero config values mean "unset", mirroring config.setDefaults.
	retry := DefaultRetryPolicy()
	if cfg.Backend.MaxRetries > 0 {
		retry.MaxRetries = cfg.Backend.MaxRetries
	}
	if cfg.Backend.RetryDelayMs > 0 {
		retry.BaseDelay = time.Duration(cfg.Backend.RetryDelayMs) * time.Millisecond
	}
	if len(cfg.Backend.RetryStatuses) > 0 {
		retry.Statuses = statusSet(cfg.Backend.RetryStatuses)
	}

	attemptTimeout := DefaultAttemptTimeout
	if cfg.Backend.TimeoutMs > 0 {
		attemptTimeout = time.Duration(cfg.Backend.TimeoutMs) * time.Millisecond
	}

	return &Client{
		baseURL:        cfg.Backend.BaseURL,
		apiKey:         cfg.Backend.APIKey,
		httpClient:     &http.Client{Transport: transport},
		retry:          retry,
		attemptTimeout: attemptTimeout,
		logger:         logger.With("component", "backend_client"),
		metrics:        m,
	}
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions, out any) error {
	return c.Do(ctx, http.MethodGet, path, opts, out)
}

// Post issues a POST request and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, path string, opts *RequestOptions, out any) error {
	return c.Do(ctx, http.MethodPost, path, opts, out)
}

// Patch issues a PATCH request and decodes the JSON response into out.
func (c *Client) Patch(ctx context.Context, path string, opts *RequestOptions, out any) error {
	return c.Do(ctx, http.MethodPatch, path, opts, out)
}

// Delete issues a DELETE request and decodes the JSON response into out.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions, out any) error {
	return c.Do(ctx, http.MethodDelete, path, opts, out)
}

// Do executes one logical request against the backend, retrying transient
// failures with exponential backoff. Attempts are numbered 0..MaxRetries;
// after a retryable failure on attempt k the loop waits BaseDelay*2^k.
// On success the JSON body is decoded into out (left untouched for 204
// responses and non-JSON content types). Every failure is returned as an
// *APIError.
func (c *Client) Do(ctx context.Context, method, path string, opts *RequestOptions, out any) error {
	if opts == nil {
		opts = &RequestOptions{}
	}

	target := c.buildURL(path, opts.Query)

	var body []byte
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return &APIError{Message: fmt.Sprintf("encode request body: %v", err), Err: err}
		}
		body = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		retryable, err := c.doAttempt(ctx, method, target, body, opts.Header, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable || attempt == c.retry.MaxRetries {
			return err
		}

		delay := c.retry.delay(attempt)
		c.logger.Debug("retrying backend request",
			"method", method,
			"path", path,
			"attempt", attempt,
			"delay", delay,
			"err", err,
		)
		if c.metrics != nil {
			c.metrics.BackendRetries.WithLabelValues(retryReason(err)).Inc()
		}
		if err := sleep(ctx, delay); err != nil {
			return &APIError{Message: "request cancelled during backoff", Err: err}
		}
	}

	if lastErr != nil {
		return lastErr
	}
	return &APIError{StatusCode: http.StatusInternalServerError, Message: "all retry attempts failed"}
}

// doAttempt performs a single attempt under its own timeout. The returned
// bool reports whether the failure is eligible for retry.
func (c *Client) doAttempt(ctx context.Context, method, target string, body []byte, extra http.Header, out any) (bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, target, reader)
	if err != nil {
		return false, &APIError{Message: fmt.Sprintf("build request: %v", err), Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	// Caller headers win, including over Accept/Content-Type/X-API-Key.
	for key, vals := range extra {
		for i, v := range vals {
			if i == 0 {
				req.Header.Set(key, v)
			} else {
				req.Header.Add(key, v)
			}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()

	methodLabel := metrics.NormalizeMethod(method)
	if c.metrics != nil {
		c.metrics.BackendDuration.WithLabelValues(methodLabel).Observe(duration)
	}

	if err != nil {
		// The caller's signal must not be mistaken for the attempt timeout.
		if ctx.Err() != nil {
			return false, &APIError{Message: "request cancelled", Err: ctx.Err()}
		}
		if attemptCtx.Err() == context.DeadlineExceeded {
			// Timeouts are terminal, even when 408 is in the retry set.
			return false, &APIError{
				StatusCode: http.StatusRequestTimeout,
				Message:    fmt.Sprintf("request timed out after %s", c.attemptTimeout),
				Payload:    map[string]any{"timeout_ms": c.attemptTimeout.Milliseconds()},
				Err:        err,
			}
		}
		return true, &APIError{Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if c.metrics != nil {
		c.metrics.BackendResponses.WithLabelValues(methodLabel, strconv.Itoa(resp.StatusCode)).Inc()
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if resp.StatusCode == http.StatusNoContent || out == nil {
			return false, nil
		}
		if !isJSONContent(resp.Header.Get("Content-Type")) {
			return false, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, &APIError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("decode response: %v", err),
				Err:        err,
			}
		}
		return false, nil
	}

	payload := decodeErrorBody(resp)
	return c.retry.retryable(resp.StatusCode), newStatusError(resp.StatusCode, payload)
}

// buildURL joins the configured base with path, stripping exactly one
// trailing slash from the base and one leading slash from the path. An empty
// base yields the path verbatim. Query parameters with nil values are
// omitted; if none remain, no "?" is appended.
func (c *Client) buildURL(path string, query map[string]any) string {
	target := path
	if base := strings.TrimSuffix(c.baseURL, "/"); base != "" {
		target = base + "/" + strings.TrimPrefix(path, "/")
	}

	q := url.Values{}
	for key, val := range query {
		if val == nil {
			continue
		}
		q.Set(key, fmt.Sprint(val))
	}
	if encoded := q.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target
}

// decodeErrorBody decodes a non-2xx response body when it declares JSON.
func decodeErrorBody(resp *http.Response) any {
	if !isJSONContent(resp.Header.Get("Content-Type")) {
		return nil
	}
	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil
	}
	return payload
}

func isJSONContent(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// retryReason labels a retryable failure for metrics: "status" for a
// retryable HTTP status, "network" otherwise.
func retryReason(err error) string {
	if apiErr, ok := AsAPIError(err); ok && apiErr.StatusCode > 0 {
		return "status"
	}
	return "network"
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
