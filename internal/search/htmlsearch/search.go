// Package htmlsearch scrapes result links from an HTML search results page.
package htmlsearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/metrics"
)

// Waiter paces outbound requests.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Options configure the searcher.
type Options struct {
	// URLTemplate holds one %s that receives the query-escaped search terms.
	URLTemplate    string
	ResultSelector string
	UserAgent      string
	Timeout        time.Duration
	Limiter        Waiter
}

// Searcher implements crunchbase.Searcher on top of a Colly collector.
type Searcher struct {
	opts          Options
	baseCollector *colly.Collector
}

var _ crunchbase.Searcher = (*Searcher)(nil)

// New builds a Searcher.
func New(opts Options) *Searcher {
	if opts.ResultSelector == "" {
		opts.ResultSelector = "a.result__a"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}
	c.SetRequestTimeout(opts.Timeout)
	return &Searcher{opts: opts, baseCollector: c}
}

// Search fetches the results page for query and returns at most limit result URLs.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]string, error) {
	target := fmt.Sprintf(s.opts.URLTemplate, url.QueryEscape(query))
	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx, target); err != nil {
			return nil, fmt.Errorf("html search: %w", err)
		}
	}

	var (
		urls     []string
		seen     = map[string]bool{}
		fetchErr error
		status   int
	)
	collector := s.baseCollector.Clone()
	collector.OnHTML(s.opts.ResultSelector, func(e *colly.HTMLElement) {
		if limit > 0 && len(urls) >= limit {
			return
		}
		link := resultURL(e.Request.AbsoluteURL(e.Attr("href")))
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		urls = append(urls, link)
	})
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		metrics.ObserveOutbound("html_search", 0)
		return nil, crunchbase.NewTransportError("html search", 0, ctx.Err())
	case err := <-done:
		metrics.ObserveOutbound("html_search", status)
		if err == nil {
			err = fetchErr
		}
		if err != nil {
			return nil, crunchbase.NewTransportError("html search", status, err)
		}
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// resultURL unwraps redirect links of the form /l/?uddg=<target>.
func resultURL(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if !strings.HasPrefix(u.Scheme, "http") {
		return ""
	}
	return href
}
