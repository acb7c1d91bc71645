// Package searxng queries a SearXNG instance through its JSON API.
package searxng

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/telemetry"
)

// Waiter paces outbound requests.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Options configure the client.
type Options struct {
	BaseURL    string
	Categories string
	UserAgent  string
	Timeout    time.Duration
	Limiter    Waiter
}

// Client is a SearXNG search client.
type Client struct {
	http       *resty.Client
	categories string
	limiter    Waiter
}

var _ crunchbase.Searcher = (*Client)(nil)

// NewClient creates a client for the instance at opts.BaseURL.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Categories == "" {
		opts.Categories = "general"
	}
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	telemetry.InstrumentResty(client, "searxng")

	return &Client{http: client, categories: opts.Categories, limiter: opts.Limiter}
}

type searchResponse struct {
	Query   string         `json:"query"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Search runs query and returns at most limit result URLs in rank order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.http.BaseURL); err != nil {
			return nil, fmt.Errorf("searxng: %w", err)
		}
	}

	var body searchResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":          query,
			"format":     "json",
			"categories": c.categories,
			"pageno":     strconv.Itoa(1),
		}).
		SetResult(&body).
		Get("/search")
	if err != nil {
		return nil, crunchbase.NewTransportError("searxng search", 0, err)
	}
	if res.IsError() {
		return nil, crunchbase.NewTransportError("searxng search", res.StatusCode(), fmt.Errorf("%s", res.String()))
	}

	urls := make([]string, 0, len(body.Results))
	for _, r := range body.Results {
		if r.URL == "" {
			continue
		}
		urls = append(urls, r.URL)
		if limit > 0 && len(urls) == limit {
			break
		}
	}
	return urls, nil
}
