package mining_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/extract"
	"github.com/JakeFAU/crunchbase-miner/internal/metrics"
	"github.com/JakeFAU/crunchbase-miner/internal/mining"
	"github.com/JakeFAU/crunchbase-miner/internal/normalization"
	memorypub "github.com/JakeFAU/crunchbase-miner/internal/publisher/memory"
	"github.com/JakeFAU/crunchbase-miner/internal/storage/memory"
)

const token = "secret-token"

type fakeScraper struct {
	records []crunchbase.RawRecord
	err     error
	calls   [][]string
}

func (f *fakeScraper) ScrapeCompanies(_ context.Context, urls []string) ([]crunchbase.RawRecord, error) {
	f.calls = append(f.calls, append([]string(nil), urls...))
	return f.records, f.err
}

type fakeAnalytics struct {
	mu          sync.Mutex
	feedErr     map[string]error
	finishErr   error
	submissions []crunchbase.Submission
	reports     []crunchbase.TaskReport
	tokens      []string
}

func (f *fakeAnalytics) RegisterMeasurements(context.Context, string, int, normalization.Mapping) (normalization.Mapping, error) {
	panic("not used")
}

func (f *fakeAnalytics) FeedRawData(_ context.Context, tok string, s crunchbase.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, tok)
	if err := f.feedErr[s.CompanyID]; err != nil {
		return err
	}
	f.submissions = append(f.submissions, s)
	return nil
}

func (f *fakeAnalytics) CrawlingFinished(_ context.Context, tok string, report crunchbase.TaskReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, tok)
	f.reports = append(f.reports, report)
	return f.finishErr
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type staticIDs struct{ id string }

func (s staticIDs) NewID() (string, error) { return s.id, nil }

type recordingLedger struct {
	records []crunchbase.TaskRecord
	err     error
}

func (l *recordingLedger) RecordTask(_ context.Context, rec crunchbase.TaskRecord) error {
	l.records = append(l.records, rec)
	return l.err
}

func profile(slug string) map[string][]string {
	return map[string][]string{
		"url": {"https://www.crunchbase.com/organization/" + slug},
	}
}

func rawCompany(slug, name string) crunchbase.RawRecord {
	return crunchbase.RawRecord{
		"identifier":        map[string]any{"permalink": slug, "value": name},
		"short_description": name + " makes things",
	}
}

func newService(scraper *fakeScraper, analytics *fakeAnalytics, opts mining.Options) *mining.Service {
	metrics.Init()
	return mining.NewService(
		scraper,
		extract.New(nil),
		analytics,
		fixedClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		staticIDs{id: "batch-1"},
		nil,
		opts,
	)
}

func TestProcessCompaniesRejectsEmptyBatch(t *testing.T) {
	scraper := &fakeScraper{}
	analytics := &fakeAnalytics{}
	svc := newService(scraper, analytics, mining.Options{})

	_, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{TaskID: 1})
	require.ErrorIs(t, err, crunchbase.ErrInvalidInput)
	assert.Empty(t, scraper.calls)
	assert.Empty(t, analytics.reports)
}

func TestProcessCompaniesDeliversEveryMatchedCompany(t *testing.T) {
	scraper := &fakeScraper{records: []crunchbase.RawRecord{
		rawCompany("beta", "Beta"),
		rawCompany("acme", "Acme"),
	}}
	analytics := &fakeAnalytics{}
	svc := newService(scraper, analytics, mining.Options{})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID: 7,
		Companies: map[string]map[string][]string{
			"c2": profile("beta"),
			"c1": profile("Acme"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), res.TaskID)
	assert.Equal(t, "batch-1", res.BatchID)
	assert.Equal(t, 2, res.Delivered)
	assert.Empty(t, res.Errors)

	require.Len(t, scraper.calls, 1)
	assert.Equal(t, []string{
		"https://www.crunchbase.com/organization/Acme",
		"https://www.crunchbase.com/organization/beta",
	}, scraper.calls[0])

	require.Len(t, analytics.submissions, 2)
	assert.Equal(t, "c1", analytics.submissions[0].CompanyID)
	assert.Equal(t, crunchbase.SourceName, analytics.submissions[0].SourceName)
	require.NotNil(t, analytics.submissions[0].RawData.Name)
	assert.Equal(t, "Acme", *analytics.submissions[0].RawData.Name)
	assert.Equal(t, "c2", analytics.submissions[1].CompanyID)

	require.Len(t, analytics.reports, 1)
	assert.Equal(t, int64(7), analytics.reports[0].TaskID)
	assert.Empty(t, analytics.reports[0].Errors)
	for _, tok := range analytics.tokens {
		assert.Equal(t, token, tok)
	}
}

func TestProcessCompaniesWithoutProfileURLIsInvalidInput(t *testing.T) {
	scraper := &fakeScraper{records: []crunchbase.RawRecord{rawCompany("acme", "Acme")}}
	analytics := &fakeAnalytics{}
	svc := newService(scraper, analytics, mining.Options{})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID: 1,
		Companies: map[string]map[string][]string{
			"c1": profile("acme"),
			"c2": {"url": {"https://example.com"}, "linkedin": {"https://www.crunchbase.com/organization/beta"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	require.Contains(t, res.Errors, "c2")
	assert.Equal(t, crunchbase.ErrorTypeInvalidInput, res.Errors["c2"].ErrorType)
	assert.Equal(t, []string{"https://www.crunchbase.com/organization/acme"}, scraper.calls[0])
	assert.Equal(t, res.Errors, analytics.reports[0].Errors)
}

func TestProcessCompaniesAllInvalidSkipsScrape(t *testing.T) {
	scraper := &fakeScraper{}
	analytics := &fakeAnalytics{}
	svc := newService(scraper, analytics, mining.Options{})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID: 1,
		Companies: map[string]map[string][]string{
			"C1": {"url": {}},
			"C2": {"email": {"x@x.com"}},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, scraper.calls)
	assert.Zero(t, res.Delivered)
	assert.Empty(t, analytics.submissions)
	require.Len(t, analytics.reports, 1)
	report := analytics.reports[0]
	assert.Equal(t, int64(1), report.TaskID)
	require.Len(t, report.Errors, 2)
	for _, id := range []string{"C1", "C2"} {
		assert.Equal(t, crunchbase.ErrorTypeInvalidInput, report.Errors[id].ErrorType, id)
	}
}

func TestProcessCompaniesScrapeFailureFailsEveryTarget(t *testing.T) {
	scraper := &fakeScraper{err: errors.New("actor run FAILED")}
	analytics := &fakeAnalytics{}
	svc := newService(scraper, analytics, mining.Options{})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID: 3,
		Companies: map[string]map[string][]string{
			"c1": profile("acme"),
			"c2": profile("beta"),
		},
	})
	require.NoError(t, err)
	assert.Zero(t, res.Delivered)
	require.Len(t, res.Errors, 2)
	for _, info := range res.Errors {
		assert.Equal(t, crunchbase.ErrorTypeTransport, info.ErrorType)
		assert.Contains(t, info.ErrorDescription, "actor run FAILED")
	}
	assert.Empty(t, analytics.submissions)
	require.Len(t, analytics.reports, 1)
}

func TestProcessCompaniesUnmatchedRecordIsNotFound(t *testing.T) {
	scraper := &fakeScraper{records: []crunchbase.RawRecord{
		rawCompany("acme", "Acme"),
		{"name": "no identity"},
	}}
	analytics := &fakeAnalytics{}
	svc := newService(scraper, analytics, mining.Options{})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID: 1,
		Companies: map[string]map[string][]string{
			"c1": profile("acme"),
			"c2": profile("ghost"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, crunchbase.ErrorTypeNotFound, res.Errors["c2"].ErrorType)
}

func TestProcessCompaniesMatchesOnURLWhenPermalinkMissing(t *testing.T) {
	scraper := &fakeScraper{records: []crunchbase.RawRecord{
		{"url": "https://www.crunchbase.com/organization/acme?tab=overview"},
	}}
	analytics := &fakeAnalytics{}
	svc := newService(scraper, analytics, mining.Options{})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID:    1,
		Companies: map[string]map[string][]string{"c1": profile("acme")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
}

func TestProcessCompaniesDeliversPartialExtraction(t *testing.T) {
	raw := rawCompany("acme", "Acme")
	raw["funding_rounds_list"] = "not a list"
	raw["overview_fields_extended"] = map[string]any{
		"founded_on": map[string]any{"value": "sometime"},
	}
	scraper := &fakeScraper{records: []crunchbase.RawRecord{raw}}
	analytics := &fakeAnalytics{}
	svc := newService(scraper, analytics, mining.Options{})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID:    1,
		Companies: map[string]map[string][]string{"c1": profile("acme")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Empty(t, res.Errors)
	require.Len(t, analytics.submissions, 1)
	company := analytics.submissions[0].RawData
	require.NotNil(t, company.Name)
	assert.Nil(t, company.FoundedOn)
	assert.Equal(t, 0, company.NumFundingRounds())
}

func TestProcessCompaniesFeedFailureIsReported(t *testing.T) {
	scraper := &fakeScraper{records: []crunchbase.RawRecord{
		rawCompany("acme", "Acme"),
		rawCompany("beta", "Beta"),
	}}
	analytics := &fakeAnalytics{feedErr: map[string]error{
		"c2": crunchbase.NewTransportError("feed raw data", 500, errors.New("boom")),
	}}
	svc := newService(scraper, analytics, mining.Options{})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID: 1,
		Companies: map[string]map[string][]string{
			"c1": profile("acme"),
			"c2": profile("beta"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, crunchbase.ErrorTypeTransport, res.Errors["c2"].ErrorType)
	assert.Equal(t, res.Errors, analytics.reports[0].Errors)
}

func TestProcessCompaniesReturnsResultWhenCompletionFails(t *testing.T) {
	scraper := &fakeScraper{records: []crunchbase.RawRecord{rawCompany("acme", "Acme")}}
	analytics := &fakeAnalytics{finishErr: crunchbase.NewTransportError("crawling finished", 503, nil)}
	svc := newService(scraper, analytics, mining.Options{})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID:    1,
		Companies: map[string]map[string][]string{"c1": profile("acme")},
	})
	require.ErrorIs(t, err, crunchbase.ErrTransport)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, "batch-1", res.BatchID)
}

func TestProcessCompaniesSideChannels(t *testing.T) {
	scraper := &fakeScraper{records: []crunchbase.RawRecord{rawCompany("acme", "Acme")}}
	analytics := &fakeAnalytics{}
	archive := memory.NewBlobStore()
	pub := memorypub.New()
	ledger := &recordingLedger{}
	svc := newService(scraper, analytics, mining.Options{
		Archive:   archive,
		Publisher: pub,
		Topic:     "mining-batches",
		Ledger:    ledger,
	})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID: 9,
		Companies: map[string]map[string][]string{
			"c1": profile("acme"),
			"c2": profile("ghost"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"raw/9/batch-1/c1.json"}, archive.Paths())
	obj, ok := archive.Get("raw/9/batch-1/c1.json")
	require.True(t, ok)
	assert.Equal(t, "application/json", obj.ContentType)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(obj.Data, &stored))
	assert.Equal(t, "Acme makes things", stored["short_description"])

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "mining-batches", msgs[0].Topic)
	event, ok := msgs[0].Payload.(mining.CompletionEvent)
	require.True(t, ok)
	assert.Equal(t, int64(9), event.TaskID)
	assert.Equal(t, 2, event.Requested)
	assert.Equal(t, 1, event.Delivered)
	assert.Equal(t, "2024-05-01T12:00:00Z", event.FinishedAt)

	require.Len(t, ledger.records, 1)
	assert.Equal(t, "batch-1", ledger.records[0].BatchID)
	assert.Equal(t, res.Errors, ledger.records[0].Errors)
}

func TestProcessCompaniesIgnoresSideChannelFailures(t *testing.T) {
	scraper := &fakeScraper{records: []crunchbase.RawRecord{rawCompany("acme", "Acme")}}
	analytics := &fakeAnalytics{}
	pub := memorypub.New()
	pub.FailWith(errors.New("topic deleted"))
	svc := newService(scraper, analytics, mining.Options{
		Publisher: pub,
		Ledger:    &recordingLedger{err: errors.New("db down")},
	})

	res, err := svc.ProcessCompanies(context.Background(), token, crunchbase.CompaniesRequest{
		TaskID:    1,
		Companies: map[string]map[string][]string{"c1": profile("acme")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
}

func TestProfileURL(t *testing.T) {
	url, ok := mining.ProfileURL(map[string][]string{
		"url": {"https://example.com", " https://www.crunchbase.com/organization/acme "},
	})
	require.True(t, ok)
	assert.Equal(t, "https://www.crunchbase.com/organization/acme", url)

	_, ok = mining.ProfileURL(map[string][]string{"url": {"https://www.crunchbase.com/person/jane"}})
	assert.False(t, ok)

	_, ok = mining.ProfileURL(nil)
	assert.False(t, ok)
}

func TestSlug(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://www.crunchbase.com/organization/Acme", "acme"},
		{"https://www.crunchbase.com/organization/acme/company_financials", "acme"},
		{"https://crunchbase.com/organization/acme?utm=x", "acme"},
		{"acme-robotics", "acme-robotics"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mining.Slug(tc.in), tc.in)
	}
}
