// Package apify runs the crunchbase scraping actor on the Apify platform.
package apify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/metrics"
	"github.com/JakeFAU/crunchbase-miner/internal/telemetry"
)

// Run statuses reported by the platform.
const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusTimedOut  = "TIMED-OUT"
	StatusAborted   = "ABORTED"
)

const datasetPageSize = 1000

var errRunFailed = errors.New("actor run did not succeed")

// Options configure the client.
type Options struct {
	BaseURL      string
	Token        string
	ActorID      string
	MinDelay     int
	MaxDelay     int
	UseProxy     bool
	ProxyGroups  []string
	PollInterval time.Duration
	// WaitTimeout bounds how long one run may take before it counts as failed.
	WaitTimeout time.Duration
	Timeout     time.Duration
}

// Client starts actor runs and reads their datasets.
type Client struct {
	http   *resty.Client
	opts   Options
	logger *zap.Logger
}

var _ crunchbase.Scraper = (*Client)(nil)

// NewClient creates an Apify client.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.apify.com"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetAuthToken(opts.Token).
		SetHeader("Accept", "application/json")
	telemetry.InstrumentResty(client, "apify")

	return &Client{http: client, opts: opts, logger: logger}
}

// RunInput is the actor input for scraping a list of company pages.
type RunInput struct {
	Action   string      `json:"action"`
	Cursor   string      `json:"cursor"`
	MinDelay int         `json:"minDelay"`
	MaxDelay int         `json:"maxDelay"`
	URLs     []string    `json:"scrapeCompanyUrls.urls"`
	Proxy    ProxyConfig `json:"proxy"`
}

// ProxyConfig selects the platform proxy.
type ProxyConfig struct {
	UseApifyProxy    bool     `json:"useApifyProxy"`
	ApifyProxyGroups []string `json:"apifyProxyGroups,omitempty"`
}

// Run is the subset of an actor run object the miner uses.
type Run struct {
	ID               string `json:"id"`
	ActID            string `json:"actId"`
	Status           string `json:"status"`
	StatusMessage    string `json:"statusMessage"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// Terminal reports whether the run reached a final status.
func (r Run) Terminal() bool {
	switch r.Status {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusAborted:
		return true
	default:
		return false
	}
}

type runEnvelope struct {
	Data Run `json:"data"`
}

// NewRunInput builds the actor input for urls.
func (c *Client) NewRunInput(urls []string) RunInput {
	in := RunInput{
		Action:   "scrapeCompanyUrls",
		Cursor:   "",
		MinDelay: c.opts.MinDelay,
		MaxDelay: c.opts.MaxDelay,
		URLs:     urls,
		Proxy:    ProxyConfig{UseApifyProxy: c.opts.UseProxy},
	}
	if c.opts.UseProxy {
		in.Proxy.ApifyProxyGroups = c.opts.ProxyGroups
	}
	return in
}

// ScrapeCompanies runs the actor once for all urls, waits for it to finish
// and returns every dataset item. Any failure is a transport error.
func (c *Client) ScrapeCompanies(ctx context.Context, urls []string) ([]crunchbase.RawRecord, error) {
	start := time.Now()
	run, err := c.StartRun(ctx, c.NewRunInput(urls))
	if err != nil {
		return nil, err
	}
	logger := c.logger.With(zap.String("run_id", run.ID))
	logger.Info("actor run started", zap.Int("urls", len(urls)))

	run, err = c.WaitForRun(ctx, run)
	metrics.ObserveScrape(run.Status, time.Since(start))
	if err != nil {
		return nil, err
	}
	if run.Status != StatusSucceeded {
		return nil, crunchbase.NewTransportError("apify run "+run.ID, 0,
			fmt.Errorf("%w: %s %s", errRunFailed, run.Status, run.StatusMessage))
	}

	items, err := c.DatasetItems(ctx, run.DefaultDatasetID)
	if err != nil {
		return nil, err
	}
	logger.Info("actor run finished",
		zap.Int("items", len(items)),
		zap.Duration("duration", time.Since(start)),
	)
	return items, nil
}

// StartRun launches the actor with input.
func (c *Client) StartRun(ctx context.Context, input RunInput) (Run, error) {
	var env runEnvelope
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("actor", actorPath(c.opts.ActorID)).
		SetBody(input).
		SetResult(&env).
		Post("/v2/acts/{actor}/runs")
	if err := check("apify start run", res, err); err != nil {
		return Run{}, err
	}
	return env.Data, nil
}

// GetRun fetches the current state of a run, waiting server-side up to wait.
func (c *Client) GetRun(ctx context.Context, runID string, wait time.Duration) (Run, error) {
	var env runEnvelope
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("run", runID).
		SetResult(&env)
	if secs := int(wait / time.Second); secs > 0 {
		req.SetQueryParam("waitForFinish", strconv.Itoa(secs))
	}
	res, err := req.Get("/v2/actor-runs/{run}")
	if err := check("apify get run", res, err); err != nil {
		return Run{}, err
	}
	return env.Data, nil
}

// WaitForRun polls run until it reaches a terminal status.
func (c *Client) WaitForRun(ctx context.Context, run Run) (Run, error) {
	if c.opts.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.WaitTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for !run.Terminal() {
		select {
		case <-ctx.Done():
			return run, crunchbase.NewTransportError("apify wait run "+run.ID, 0, ctx.Err())
		case <-ticker.C:
		}
		next, err := c.GetRun(ctx, run.ID, 0)
		if err != nil {
			return run, err
		}
		run = next
	}
	return run, nil
}

// DatasetItems reads all items of a dataset page by page.
func (c *Client) DatasetItems(ctx context.Context, datasetID string) ([]crunchbase.RawRecord, error) {
	items := []crunchbase.RawRecord{}
	for offset := 0; ; offset += datasetPageSize {
		var page []crunchbase.RawRecord
		res, err := c.http.R().
			SetContext(ctx).
			SetPathParam("dataset", datasetID).
			SetQueryParams(map[string]string{
				"format": "json",
				"clean":  "true",
				"offset": strconv.Itoa(offset),
				"limit":  strconv.Itoa(datasetPageSize),
			}).
			SetResult(&page).
			Get("/v2/datasets/{dataset}/items")
		if err := check("apify dataset items", res, err); err != nil {
			return nil, err
		}
		items = append(items, page...)
		if len(page) < datasetPageSize {
			return items, nil
		}
	}
}

// actorPath converts "user/actor" into the "user~actor" form used in API paths.
func actorPath(actorID string) string {
	return strings.ReplaceAll(actorID, "/", "~")
}

func check(op string, res *resty.Response, err error) error {
	if err != nil {
		return crunchbase.NewTransportError(op, 0, err)
	}
	if res.IsError() {
		return crunchbase.NewTransportError(op, res.StatusCode(), fmt.Errorf("%s", strings.TrimSpace(res.String())))
	}
	return nil
}
