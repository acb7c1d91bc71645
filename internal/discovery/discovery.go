// Package discovery resolves free-text company names to crunchbase profile URLs.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/metrics"
)

const (
	// ProfilePrefix is the URL prefix of an organization profile page.
	ProfilePrefix = "https://www.crunchbase.com/organization/"
	// SlashCount is the number of slashes in a bare profile URL.
	SlashCount = 4
	// DefaultKeyword is appended to every query.
	DefaultKeyword = "crunchbase"
	// DefaultMaxResults bounds the candidates scanned per query.
	DefaultMaxResults = 10
	// DefaultValidity is how long a discovery answer may be cached by callers.
	DefaultValidity = 180 * 24 * time.Hour
)

// MatchProfileURL reports whether candidate is a bare organization profile URL.
// Both conditions must hold: sub-pages such as .../organization/acme/people
// have too many slashes, and other entity types lack the prefix.
func MatchProfileURL(candidate string) bool {
	return strings.Count(candidate, "/") == SlashCount && strings.Contains(candidate, ProfilePrefix)
}

// SelectProfile returns the first candidate that is a profile URL.
func SelectProfile(candidates []string) (string, error) {
	for _, c := range candidates {
		if MatchProfileURL(c) {
			return c, nil
		}
	}
	return "", crunchbase.ErrNotFound
}

// Result pairs the searched company name with its resolved profile.
type Result struct {
	Name string
	URL  string
}

// Config tunes the discoverer.
type Config struct {
	Keyword    string
	MaxResults int
	Validity   time.Duration
}

// Discoverer resolves names through a search backend.
type Discoverer struct {
	searcher crunchbase.Searcher
	clock    crunchbase.Clock
	logger   *zap.Logger
	cfg      Config
}

// New constructs a Discoverer. Zero config values fall back to the defaults.
func New(searcher crunchbase.Searcher, clock crunchbase.Clock, logger *zap.Logger, cfg Config) *Discoverer {
	if cfg.Keyword == "" {
		cfg.Keyword = DefaultKeyword
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Validity <= 0 {
		cfg.Validity = DefaultValidity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{searcher: searcher, clock: clock, logger: logger, cfg: cfg}
}

// Discover searches for name and returns the first profile URL among the results.
func (d *Discoverer) Discover(ctx context.Context, name string) (Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, fmt.Errorf("discover: empty company name: %w", crunchbase.ErrInvalidInput)
	}
	query := name + " " + d.cfg.Keyword

	candidates, err := d.searcher.Search(ctx, query, d.cfg.MaxResults)
	if err != nil {
		metrics.ObserveDiscovery(crunchbase.ErrorTypeTransport)
		if errors.Is(err, crunchbase.ErrTransport) {
			return Result{}, fmt.Errorf("discover %q: %w", name, err)
		}
		return Result{}, fmt.Errorf("discover %q: %w", name, crunchbase.NewTransportError("search", 0, err))
	}
	if len(candidates) > d.cfg.MaxResults {
		candidates = candidates[:d.cfg.MaxResults]
	}

	url, err := SelectProfile(candidates)
	if err != nil {
		metrics.ObserveDiscovery(crunchbase.ErrorTypeNotFound)
		d.logger.Info("no profile found",
			zap.String("query", query),
			zap.Int("candidates", len(candidates)),
		)
		return Result{}, fmt.Errorf("discover %q: %w", name, err)
	}
	metrics.ObserveDiscovery("found")
	d.logger.Debug("profile found", zap.String("query", query), zap.String("url", url))
	return Result{Name: name, URL: url}, nil
}

// DiscoverOne answers a single-name lookup in the response shape of the
// discovery endpoints. Errors are returned unchanged.
func (d *Discoverer) DiscoverOne(ctx context.Context, companyID, name string) (crunchbase.FinalDiscoveryResponse, error) {
	res, err := d.Discover(ctx, name)
	if err != nil {
		return crunchbase.FinalDiscoveryResponse{}, err
	}
	if companyID == "" {
		companyID = name
	}
	return crunchbase.FinalDiscoveryResponse{
		Identifiers: map[string]crunchbase.DiscoveryResponse{
			companyID: {Handles: []string{res.URL}},
		},
		Validity: d.validUntil(),
	}, nil
}

// DiscoverBatch resolves every request. Companies without a match get empty
// handles; a failing search backend aborts the batch.
func (d *Discoverer) DiscoverBatch(ctx context.Context, reqs []crunchbase.DiscoveryRequest) (crunchbase.FinalDiscoveryResponse, error) {
	out := crunchbase.FinalDiscoveryResponse{
		Identifiers: make(map[string]crunchbase.DiscoveryResponse, len(reqs)),
		Validity:    d.validUntil(),
	}
	for _, req := range reqs {
		handles := []string{}
		res, err := d.Discover(ctx, req.Name)
		switch {
		case err == nil:
			handles = append(handles, res.URL)
		case errors.Is(err, crunchbase.ErrNotFound), errors.Is(err, crunchbase.ErrInvalidInput):
		default:
			return crunchbase.FinalDiscoveryResponse{}, err
		}
		out.Identifiers[req.CompanyID] = crunchbase.DiscoveryResponse{Handles: handles}
	}
	return out, nil
}

func (d *Discoverer) validUntil() time.Time {
	return d.clock.Now().Add(d.cfg.Validity)
}
