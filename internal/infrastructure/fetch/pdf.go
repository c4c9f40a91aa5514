package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"trendsurf/internal/config"
	"trendsurf/internal/domain"
	"trendsurf/internal/ports"
)

var (
	// ErrTooLarge reports a document over the configured byte ceiling,
	// declared or actual. Never retried.
	ErrTooLarge = errors.New("document exceeds size limit")
	// ErrDownload reports a download that failed after all retry attempts.
	ErrDownload = errors.New("document download failed")
)

// Fetcher downloads binary documents with a size ceiling and sequential
// retries under exponential backoff. Redirects are followed; partially
// received bytes from a failed attempt are discarded.
type Fetcher struct {
	client      *http.Client
	maxBytes    int64
	userAgent   string
	attempts    int
	backoffUnit time.Duration
	timeout     time.Duration
}

var _ ports.Downloader = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; a nil client gets a plain default, which
// follows redirects.
func NewFetcher(cfg config.PDFConfig, userAgent string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}

	maxMB := cfg.MaxMB
	if maxMB <= 0 {
		maxMB = 40
	}
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Fetcher{
		client:      client,
		maxBytes:    int64(maxMB) << 20,
		userAgent:   userAgent,
		attempts:    attempts,
		backoffUnit: time.Second,
		timeout:     timeout,
	}
}

// Fetch downloads the document at rawURL. Transport-level failures and
// non-success statuses are retried with backoff starting at one unit and
// doubling; size-limit failures are terminal immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.FetchedDocument, error) {
	delay := f.backoffUnit
	var lastErr error

	for attempt := 0; attempt < f.attempts; attempt++ {
		doc, err := f.attempt(ctx, rawURL)
		if err == nil {
			return doc, nil
		}
		if errors.Is(err, ErrTooLarge) {
			return domain.FetchedDocument{}, err
		}

		lastErr = err
		if attempt == f.attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return domain.FetchedDocument{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return domain.FetchedDocument{}, fmt.Errorf("%w after %d attempts: %v", ErrDownload, f.attempts, lastErr)
}

// attempt performs one independently cancellable download; the timeout bounds
// the attempt, not the whole retry loop.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (domain.FetchedDocument, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.FetchedDocument{}, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.FetchedDocument{}, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.FetchedDocument{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	// Declared length is checked before touching the body.
	if resp.ContentLength > f.maxBytes {
		return domain.FetchedDocument{}, fmt.Errorf("%w: declared %d bytes", ErrTooLarge, resp.ContentLength)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return domain.FetchedDocument{}, fmt.Errorf("read document: %w", err)
	}

	// Re-check the actual length; the declared header can be missing or wrong.
	if int64(len(content)) > f.maxBytes {
		return domain.FetchedDocument{}, fmt.Errorf("%w: body over %d bytes", ErrTooLarge, f.maxBytes)
	}

	return domain.FetchedDocument{
		Content:      content,
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}
