// Package mining orchestrates one scrape batch: URL selection, a single actor
// run, normalization, delivery and the completion report.
package mining

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/extract"
	"github.com/JakeFAU/crunchbase-miner/internal/metrics"
)

const (
	// URLFieldType is the only handle field type the miner reads.
	URLFieldType = "url"
	// SiteMarker identifies an organization profile link.
	SiteMarker = "crunchbase.com/organization/"
	// OutcomeDelivered labels companies that reached the analytics backend.
	OutcomeDelivered = "delivered"
)

// Extractor normalizes one raw record.
type Extractor interface {
	Extract(raw crunchbase.RawRecord) (crunchbase.Company, error)
}

// Options holds the optional side channels of a Service. Nil members are skipped.
type Options struct {
	Archive       crunchbase.BlobStore
	ArchivePrefix string
	Publisher     crunchbase.Publisher
	Topic         string
	Ledger        crunchbase.TaskLedger
}

// Service runs scrape batches.
type Service struct {
	scraper   crunchbase.Scraper
	extractor Extractor
	analytics crunchbase.Analytics
	clock     crunchbase.Clock
	ids       crunchbase.IDGenerator
	logger    *zap.Logger
	opts      Options
}

// NewService wires a Service.
func NewService(
	scraper crunchbase.Scraper,
	extractor Extractor,
	analytics crunchbase.Analytics,
	clock crunchbase.Clock,
	ids crunchbase.IDGenerator,
	logger *zap.Logger,
	opts Options,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ArchivePrefix == "" {
		opts.ArchivePrefix = "raw"
	}
	return &Service{
		scraper:   scraper,
		extractor: extractor,
		analytics: analytics,
		clock:     clock,
		ids:       ids,
		logger:    logger,
		opts:      opts,
	}
}

// Result summarizes one processed batch.
type Result struct {
	TaskID    int64                           `json:"task_id"`
	BatchID   string                          `json:"batch_id"`
	Delivered int                             `json:"delivered"`
	Errors    map[string]crunchbase.ErrorInfo `json:"errors"`
}

// CompletionEvent is published once a batch finished.
type CompletionEvent struct {
	TaskID     int64                           `json:"task_id"`
	BatchID    string                          `json:"batch_id"`
	Source     string                          `json:"source"`
	Requested  int                             `json:"requested"`
	Delivered  int                             `json:"delivered"`
	Errors     map[string]crunchbase.ErrorInfo `json:"errors,omitempty"`
	FinishedAt string                          `json:"finished_at"`
}

// target is one company with a usable profile URL.
type target struct {
	companyID string
	url       string
	slug      string
}

// ProcessCompanies mines every company of req. Per-company failures are
// collected in the result instead of failing the request; only an empty batch
// is rejected. The completion report is always sent, and an error is
// returned if that call fails.
func (s *Service) ProcessCompanies(ctx context.Context, token string, req crunchbase.CompaniesRequest) (Result, error) {
	if len(req.Companies) == 0 {
		return Result{}, fmt.Errorf("process companies: no companies in task %d: %w", req.TaskID, crunchbase.ErrInvalidInput)
	}

	startedAt := s.clock.Now()
	batchID, err := s.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("process companies: %w", err)
	}
	logger := s.logger.With(zap.Int64("task_id", req.TaskID), zap.String("batch_id", batchID))

	result := Result{
		TaskID:  req.TaskID,
		BatchID: batchID,
		Errors:  map[string]crunchbase.ErrorInfo{},
	}
	fail := func(companyID string, err error) {
		info := crunchbase.NewErrorInfo(err)
		result.Errors[companyID] = info
		metrics.ObserveCompany(info.ErrorType)
		logger.Warn("company failed",
			zap.String("company_id", companyID),
			zap.String("error_type", info.ErrorType),
			zap.Error(err),
		)
	}

	targets := s.selectTargets(req, fail)
	if len(targets) > 0 {
		s.scrapeAndDeliver(ctx, token, req.TaskID, batchID, targets, &result, fail, logger)
	}

	report := crunchbase.TaskReport{TaskID: req.TaskID, Errors: result.Errors}
	finishErr := s.analytics.CrawlingFinished(ctx, token, report)
	if finishErr != nil {
		logger.Error("crawling finished report failed", zap.Error(finishErr))
	}

	s.recordBatch(ctx, crunchbase.TaskRecord{
		TaskID:     req.TaskID,
		BatchID:    batchID,
		Requested:  len(req.Companies),
		Delivered:  result.Delivered,
		Errors:     result.Errors,
		StartedAt:  startedAt,
		FinishedAt: s.clock.Now(),
	}, logger)

	logger.Info("batch finished",
		zap.Int("requested", len(req.Companies)),
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", len(result.Errors)),
	)
	if finishErr != nil {
		return result, fmt.Errorf("process companies: %w", finishErr)
	}
	return result, nil
}

// selectTargets picks one profile URL per company in company id order.
func (s *Service) selectTargets(req crunchbase.CompaniesRequest, fail func(string, error)) []target {
	ids := make([]string, 0, len(req.Companies))
	for id := range req.Companies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	targets := make([]target, 0, len(ids))
	for _, id := range ids {
		url, ok := ProfileURL(req.Companies[id])
		if !ok {
			fail(id, fmt.Errorf("no %s handle containing %q: %w", URLFieldType, SiteMarker, crunchbase.ErrInvalidInput))
			continue
		}
		targets = append(targets, target{companyID: id, url: url, slug: Slug(url)})
	}
	return targets
}

func (s *Service) scrapeAndDeliver(
	ctx context.Context,
	token string,
	taskID int64,
	batchID string,
	targets []target,
	result *Result,
	fail func(string, error),
	logger *zap.Logger,
) {
	urls := make([]string, len(targets))
	for i, t := range targets {
		urls[i] = t.url
	}

	records, err := s.scraper.ScrapeCompanies(ctx, urls)
	if err != nil {
		if !errors.Is(err, crunchbase.ErrTransport) {
			err = crunchbase.NewTransportError("scrape", 0, err)
		}
		for _, t := range targets {
			fail(t.companyID, err)
		}
		return
	}
	logger.Info("scrape finished", zap.Int("urls", len(urls)), zap.Int("records", len(records)))

	bySlug := indexBySlug(records)
	for _, t := range targets {
		raw, ok := bySlug[t.slug]
		if !ok {
			fail(t.companyID, fmt.Errorf("no scraped record for %s: %w", t.url, crunchbase.ErrNotFound))
			continue
		}
		s.archive(ctx, taskID, batchID, t.companyID, raw, logger)

		company, err := s.extractor.Extract(raw)
		if err != nil {
			s.observePartial(t.companyID, err, logger)
		}

		submission := crunchbase.Submission{
			SourceName: crunchbase.SourceName,
			CompanyID:  t.companyID,
			RawData:    company,
		}
		if err := s.analytics.FeedRawData(ctx, token, submission); err != nil {
			fail(t.companyID, err)
			continue
		}
		result.Delivered++
		metrics.ObserveCompany(OutcomeDelivered)
	}
}

func (s *Service) observePartial(companyID string, err error, logger *zap.Logger) {
	var partial *extract.PartialExtractionError
	if !errors.As(err, &partial) {
		logger.Warn("extraction error", zap.String("company_id", companyID), zap.Error(err))
		return
	}
	for _, section := range partial.FailedSections {
		metrics.ObserveSectionFailure(section)
	}
	for _, issue := range partial.Issues {
		metrics.ObserveFieldIssue(issue.Section)
	}
	logger.Warn("partial extraction, delivering anyway",
		zap.String("company_id", companyID),
		zap.Strings("failed_sections", partial.FailedSections),
		zap.Int("field_issues", len(partial.Issues)),
	)
}

func (s *Service) archive(ctx context.Context, taskID int64, batchID, companyID string, raw crunchbase.RawRecord, logger *zap.Logger) {
	if s.opts.Archive == nil {
		return
	}
	data, err := json.Marshal(raw)
	if err != nil {
		logger.Warn("archive marshal failed", zap.String("company_id", companyID), zap.Error(err))
		return
	}
	key := path.Join(s.opts.ArchivePrefix, fmt.Sprint(taskID), batchID, companyID+".json")
	uri, err := s.opts.Archive.PutObject(ctx, key, "application/json", bytes.NewReader(data))
	if err != nil {
		logger.Warn("archive raw record failed", zap.String("company_id", companyID), zap.Error(err))
		return
	}
	logger.Debug("raw record archived", zap.String("company_id", companyID), zap.String("uri", uri))
}

func (s *Service) recordBatch(ctx context.Context, rec crunchbase.TaskRecord, logger *zap.Logger) {
	if s.opts.Publisher != nil {
		event := CompletionEvent{
			TaskID:     rec.TaskID,
			BatchID:    rec.BatchID,
			Source:     crunchbase.SourceName,
			Requested:  rec.Requested,
			Delivered:  rec.Delivered,
			Errors:     rec.Errors,
			FinishedAt: rec.FinishedAt.Format(time.RFC3339),
		}
		if id, err := s.opts.Publisher.Publish(ctx, s.opts.Topic, event); err != nil {
			logger.Warn("publish completion event failed", zap.Error(err))
		} else {
			logger.Debug("completion event published", zap.String("message_id", id))
		}
	}
	if s.opts.Ledger != nil {
		if err := s.opts.Ledger.RecordTask(ctx, rec); err != nil {
			logger.Warn("record task failed", zap.Error(err))
		}
	}
}

// ProfileURL returns the first url handle that links to an organization profile.
func ProfileURL(fields map[string][]string) (string, bool) {
	for _, handle := range fields[URLFieldType] {
		handle = strings.TrimSpace(handle)
		if strings.Contains(handle, SiteMarker) {
			return handle, true
		}
	}
	return "", false
}

// Slug returns the lower-cased organization slug of a profile URL or permalink.
func Slug(s string) string {
	if i := strings.Index(s, SiteMarker); i >= 0 {
		s = s[i+len(SiteMarker):]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// indexBySlug keys raw records by their organization slug. Records without a
// recognizable slug cannot be attributed and are dropped; the first record wins
// on duplicates.
func indexBySlug(records []crunchbase.RawRecord) map[string]crunchbase.RawRecord {
	out := make(map[string]crunchbase.RawRecord, len(records))
	for _, raw := range records {
		slug := recordSlug(raw)
		if slug == "" {
			continue
		}
		if _, dup := out[slug]; !dup {
			out[slug] = raw
		}
	}
	return out
}

func recordSlug(raw crunchbase.RawRecord) string {
	root := extract.Node(raw)
	for _, p := range []string{"identifier.permalink", "url", "link"} {
		if v, ok := root.Lookup(p); ok {
			if s, ok := v.(string); ok && s != "" {
				return Slug(s)
			}
		}
	}
	return ""
}
