package nimbus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/metrics"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/retry"
)

// Download streams an artifact to dest, writing through a temp file so
// a partial download never looks like a completion marker to a later
// archive scan. Returns bytes written.
func (c *Client) Download(ctx context.Context, url, dest string) (int64, error) {
	return retry.Run(ctx, c.retryCfg, func(ctx context.Context) (int64, error) {
		return c.downloadOnce(ctx, url, dest)
	})
}

func (c *Client) downloadOnce(ctx context.Context, url, dest string) (int64, error) {
	if err := c.bucket.Take(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("EverHelper-Session-Id", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch artifact: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create artifact file: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("finalize artifact: %w", err)
	}

	metrics.DownloadBytes.Add(float64(n))
	return n, nil
}
