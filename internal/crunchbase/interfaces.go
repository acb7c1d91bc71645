package crunchbase

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/crunchbase-miner/internal/normalization"
)

// Searcher runs a web search and returns the result URLs in rank order.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Scraper launches one scraping run for a batch of profile URLs.
type Scraper interface {
	ScrapeCompanies(ctx context.Context, urls []string) ([]RawRecord, error)
}

// Analytics is the downstream analytics backend. Every call needs a bearer token.
type Analytics interface {
	RegisterMeasurements(
		ctx context.Context,
		token string,
		sourceID int,
		mapping normalization.Mapping,
	) (normalization.Mapping, error)
	FeedRawData(ctx context.Context, token string, submission Submission) error
	CrawlingFinished(ctx context.Context, token string, report TaskReport) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes batch completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// TaskLedger records one summary row per processed batch.
type TaskLedger interface {
	RecordTask(ctx context.Context, record TaskRecord) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces batch IDs.
type IDGenerator interface {
	NewID() (string, error)
}
