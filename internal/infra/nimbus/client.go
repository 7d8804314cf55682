// Package nimbus implements the HTTP client for the Nimbus Note API:
// session login, note listing, tag enrichment, export submission, the
// export-events channel, and artifact download. Every outbound call
// goes through one shared token bucket before it touches the wire.
package nimbus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/metrics"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/ratelimit"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/retry"
)

// Config holds client construction parameters.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   retry.Config
}

// Client is stateless beyond the session token and the shared bucket;
// methods are safe for concurrent use.
type Client struct {
	httpClient *http.Client
	base       string
	token      string
	timeout    time.Duration
	bucket     *ratelimit.Bucket
	retryCfg   retry.Config
	log        *slog.Logger
}

// New creates a client. The bucket is owned by the caller and shared
// with any other outbound callers of the same account. cfg.Timeout
// bounds individual API calls only; downloads run under whatever
// deadline the caller's context carries, so the transport itself has
// no timeout.
func New(cfg Config, bucket *ratelimit.Bucket, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  timeout,
		bucket:   bucket,
		retryCfg: cfg.Retry,
		log:      log,
	}
}

// doJSON performs one rate-limited call and decodes the response into
// out. It does not retry; call sites wrap it as needed. endpoint is a
// fixed metric label, kept separate from path so per-resource paths
// never mint new series.
func (c *Client) doJSON(ctx context.Context, method, path, endpoint string, body, out any) error {
	if err := c.bucket.Take(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("EverHelper-Session-Id", c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("nimbus %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		return err
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyStatus maps non-2xx responses to typed errors. A rate-limit
// status always becomes RateLimitedError.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return &retry.RateLimitedError{Code: resp.StatusCode}
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &retry.StatusError{
		Code:   resp.StatusCode,
		Detail: strings.TrimSpace(string(detail)),
	}
}

// Probe issues a cheap rate-limited HEAD against an absolute URL and
// reports whether it resolves. Used by timeout recovery only.
func (c *Client) Probe(ctx context.Context, url string) bool {
	if err := c.bucket.Take(ctx); err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	if c.token != "" {
		req.Header.Set("EverHelper-Session-Id", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
