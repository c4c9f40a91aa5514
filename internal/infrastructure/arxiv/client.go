package arxiv

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"trendsurf/internal/config"
	"trendsurf/internal/domain"
	"trendsurf/internal/ports"
)

// Client queries the arXiv export API. All requests issued through one client
// share a single limiter enforcing the minimum spacing the feed operator asks
// for; concurrent callers serialise inside limiter.Wait.
type Client struct {
	client           *http.Client
	baseURL          string
	userAgent        string
	limiter          *rate.Limiter
	maxResultsPerRun int
	logger           *slog.Logger
}

var _ ports.PaperSource = (*Client)(nil)

// NewClient wires an HTTP client; a nil client gets a 30s-timeout default.
func NewClient(cfg config.ArxivConfig, client *http.Client, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	delay := time.Duration(cfg.DelayMS) * time.Millisecond
	if delay <= 0 {
		delay = 3200 * time.Millisecond
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://export.arxiv.org/api/query"
	}
	maxResults := cfg.MaxResultsPerRun
	if maxResults <= 0 {
		maxResults = 40
	}

	return &Client{
		client:           client,
		baseURL:          baseURL,
		userAgent:        cfg.UserAgent,
		limiter:          rate.NewLimiter(rate.Every(delay), 1),
		maxResultsPerRun: maxResults,
		logger:           logger,
	}
}

// Query fetches one page of results, sorted by the feed's last-updated order.
func (c *Client) Query(ctx context.Context, searchQuery string, start, maxResults int) ([]domain.FeedPaper, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url %s: %w", c.baseURL, err)
	}
	query := parsed.Query()
	query.Set("search_query", searchQuery)
	query.Set("start", strconv.Itoa(start))
	query.Set("max_results", strconv.Itoa(maxResults))
	query.Set("sortBy", "lastUpdatedDate")
	query.Set("sortOrder", "descending")
	parsed.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	c.debug("feed page fetched", "query", searchQuery, "start", start, "max_results", maxResults)
	return ParseFeed(body)
}

// IterateTopic lazily pages through results for the topic filters until the
// per-run ceiling is reached or a page comes back empty. The offset advances
// by the requested batch size; the sequence is not restartable.
func (c *Client) IterateTopic(ctx context.Context, filters domain.TopicFilters, pageSize int) iter.Seq2[domain.FeedPaper, error] {
	searchQuery := BuildSearchQuery(filters)
	if pageSize <= 0 {
		pageSize = 20
	}

	return func(yield func(domain.FeedPaper, error) bool) {
		fetched := 0
		start := 0

		for fetched < c.maxResultsPerRun {
			batch := pageSize
			if remaining := c.maxResultsPerRun - fetched; remaining < batch {
				batch = remaining
			}

			entries, err := c.Query(ctx, searchQuery, start, batch)
			if err != nil {
				yield(domain.FeedPaper{}, err)
				return
			}
			if len(entries) == 0 {
				return
			}

			for _, entry := range entries {
				if !yield(entry, nil) {
					return
				}
			}

			fetched += len(entries)
			start += batch
		}
	}
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
