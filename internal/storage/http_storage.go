package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const maxFetchAttempts = 3

// HTTPFetcher downloads assets over HTTP(S) with retries on transient errors
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  func(attempt int) time.Duration
}

// NewHTTPFetcher creates an HTTP fetcher. maxBytes <= 0 disables the size check.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
	}
}

// Fetch downloads the body at assetURL. 4xx responses are not retried.
func (h *HTTPFetcher) Fetch(ctx context.Context, assetURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		data, retry, err := h.fetchOnce(ctx, assetURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry || attempt == maxFetchAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(h.backoff(attempt)):
		}
	}

	return nil, fmt.Errorf("failed to fetch asset after %d attempts: %w", maxFetchAttempts, lastErr)
}

// fetchOnce performs one request and reports whether a failure is retryable.
func (h *HTTPFetcher) fetchOnce(ctx context.Context, assetURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/vnd.adobe.photoshop, image/jpeg, image/png, image/webp, */*")
	req.Header.Set("User-Agent", "Mockup-Compositor/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: status code 404", ErrNotFound)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if h.maxBytes > 0 && resp.ContentLength > h.maxBytes {
		return nil, false, fmt.Errorf("%w: content length %d > %d", ErrTooLarge, resp.ContentLength, h.maxBytes)
	}
	data, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}
