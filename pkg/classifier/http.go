package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Stats tracks request outcomes for one classifier backend.
type Stats struct {
	TotalRequests         int64
	FailedRequests        int64
	ConsecutiveFailures   int
	LastError             error
	LastSuccessfulRequest time.Time
}

// HTTPClient is the shared transport for HTTP classifier backends. It performs
// exactly one attempt per call: the monitoring cycle falls back on failure
// instead of blocking on retries.
type HTTPClient struct {
	config Config
	client *http.Client
	logger *slog.Logger

	stats   Stats
	statsMu sync.RWMutex
}

// NewHTTPClient creates an HTTP client with connection pooling and the
// configured request timeout.
func NewHTTPClient(config Config, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		logger: logger.With("component", "classifier", "provider", config.Provider),
	}
}

// Name returns the configured provider name.
func (c *HTTPClient) Name() string {
	return c.config.Provider
}

// Config returns the client configuration.
func (c *HTTPClient) Config() Config {
	return c.config
}

// Stats returns a snapshot of the request statistics.
func (c *HTTPClient) Stats() Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// Healthy reports whether the backend has not failed three times in a row.
func (c *HTTPClient) Healthy() bool {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats.ConsecutiveFailures < 3
}

func (c *HTTPClient) record(err error) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	c.stats.TotalRequests++
	if err == nil {
		c.stats.ConsecutiveFailures = 0
		c.stats.LastError = nil
		c.stats.LastSuccessfulRequest = time.Now()
		return
	}

	c.stats.FailedRequests++
	c.stats.ConsecutiveFailures++
	c.stats.LastError = err
	if c.stats.ConsecutiveFailures == 3 {
		c.logger.Warn("classifier marked unhealthy",
			"consecutive_failures", c.stats.ConsecutiveFailures,
			"error", err,
		)
	}
}

// DoJSON posts reqBody as JSON and decodes a 2xx response into respBody.
// Non-2xx responses map to AuthError, RateLimitError or ProviderError; a
// deadline maps to TimeoutError; an undecodable body maps to ParseError.
func (c *HTTPClient) DoJSON(ctx context.Context, url string, reqBody, respBody any, headers map[string]string) error {
	err := c.doJSON(ctx, url, reqBody, respBody, headers)
	c.record(err)
	return err
}

func (c *HTTPClient) doJSON(ctx context.Context, url string, reqBody, respBody any, headers map[string]string) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug("sending classifier request", "url", url)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return &TimeoutError{Provider: c.config.Provider, Timeout: c.config.Timeout}
		}
		return fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return &TimeoutError{Provider: c.config.Provider, Timeout: c.config.Timeout}
		}
		return &ParseError{
			Provider: c.config.Provider,
			Cause:    fmt.Errorf("failed to read response: %w", err),
		}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Provider: c.config.Provider, Message: string(responseBytes)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:   c.config.Provider,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(responseBytes),
		}
	default:
		return &ProviderError{
			Provider:   c.config.Provider,
			StatusCode: resp.StatusCode,
			Message:    string(responseBytes),
		}
	}

	if err := json.Unmarshal(responseBytes, respBody); err != nil {
		return &ParseError{
			Provider:    c.config.Provider,
			RawResponse: string(responseBytes),
			Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}

	return nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
