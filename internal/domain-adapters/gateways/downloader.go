package gateways

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	// maxRetries is the maximum number of retry attempts for transient failures
	maxRetries = 3
	// initialBackoff is the initial backoff duration
	initialBackoff = 1 * time.Second
	// maxBackoff is the maximum backoff duration
	maxBackoff = 32 * time.Second

	userAgent = "verifydeps/1.0"
)

// errRemoteNotFound is returned when the remote answers 404 or 410
var errRemoteNotFound = errors.New("remote file not found")

// Downloader fetches repository files over HTTP with retry on transient failures
type Downloader struct {
	httpClient *http.Client
	backoff    func(attempt int) time.Duration
}

// NewDownloader creates a new downloader
func NewDownloader() *Downloader {
	return &Downloader{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for large artifacts
		},
		backoff: calculateBackoff,
	}
}

// isRetryableError checks if an HTTP status code is retryable
func isRetryableError(statusCode int) bool {
	switch statusCode {
	case http.StatusForbidden, // 403 - rate limit on some mirrors
		http.StatusTooManyRequests,     // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

// calculateBackoff returns the backoff duration for a retry attempt
func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

// doWithRetry executes a GET request with exponential backoff retry.
// The returned response is never a retryable status unless retries ran out.
func (d *Downloader) doWithRetry(ctx context.Context, url string) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.backoff(attempt - 1)):
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			return nil, fmt.Errorf("failed to create request: %w", reqErr)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err = d.httpClient.Do(req)
		if err != nil {
			// Network errors are retryable unless the caller gave up
			if ctx.Err() == nil && attempt < maxRetries {
				continue
			}
			return nil, err
		}

		// Success or non-retryable error
		if !isRetryableError(resp.StatusCode) {
			return resp, nil
		}

		if attempt < maxRetries {
			//nolint:errcheck,gosec // G104: Best effort close before retry
			resp.Body.Close()
			continue
		}
	}

	return resp, err
}

// Download fetches url into dest. The file is written to a temporary name in
// the destination directory and renamed once complete, so readers of the
// cache never observe partial downloads.
func (d *Downloader) Download(ctx context.Context, url, dest string) error {
	resp, err := d.doWithRetry(ctx, url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%s: %w", url, errRemoteNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: HTTP %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		//nolint:errcheck,gosec // G104: Best effort cleanup of partial download
		tmp.Close()
		//nolint:errcheck,gosec // G104: Best effort cleanup of partial download
		os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		//nolint:errcheck,gosec // G104: Best effort cleanup of partial download
		os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		//nolint:errcheck,gosec // G104: Best effort cleanup of partial download
		os.Remove(tmpName)
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}
