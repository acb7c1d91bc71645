// Package search builds the configured web search backend.
package search

import (
	"fmt"

	"github.com/JakeFAU/crunchbase-miner/internal/config"
	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/policy/ratelimit"
	"github.com/JakeFAU/crunchbase-miner/internal/search/htmlsearch"
	"github.com/JakeFAU/crunchbase-miner/internal/search/searxng"
)

// NewSearcher creates the searcher selected by cfg.Provider. All providers
// share one per-host rate limiter.
func NewSearcher(cfg config.SearchConfig) (crunchbase.Searcher, error) {
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RequestsPerSecond,
		DefaultBurst: cfg.Burst,
	})

	switch cfg.Provider {
	case "searxng":
		if cfg.SearXNG.BaseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		return searxng.NewClient(searxng.Options{
			BaseURL:    cfg.SearXNG.BaseURL,
			Categories: cfg.SearXNG.Categories,
			UserAgent:  cfg.UserAgent,
			Timeout:    cfg.Timeout,
			Limiter:    limiter,
		}), nil

	case "html", "":
		if cfg.HTML.URLTemplate == "" {
			return nil, fmt.Errorf("html search url template is missing")
		}
		return htmlsearch.New(htmlsearch.Options{
			URLTemplate:    cfg.HTML.URLTemplate,
			ResultSelector: cfg.HTML.ResultSelector,
			UserAgent:      cfg.UserAgent,
			Timeout:        cfg.Timeout,
			Limiter:        limiter,
		}), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Provider)
	}
}
