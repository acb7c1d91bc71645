// Package analytics talks to the downstream analytics backend.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/normalization"
	"github.com/JakeFAU/crunchbase-miner/internal/telemetry"
)

// Backend routes.
const (
	PathSourceMeasurement = "/source-measurement"
	PathFeedRawData       = "/feed-raw-data"
	PathCrawlingFinished  = "/crawling-finished"
)

// Client implements crunchbase.Analytics over HTTP.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

var _ crunchbase.Analytics = (*Client)(nil)

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	telemetry.InstrumentResty(client, "analytics")
	return &Client{http: client, logger: logger}
}

type measurementRequest struct {
	SourceID        int    `json:"source_id"`
	Type            string `json:"type"`
	MeasurementName string `json:"measurement_name"`
	ParentID        string `json:"parent_id,omitempty"`
}

type measurementResponse struct {
	ID json.RawMessage `json:"id"`
}

// RegisterMeasurements registers every measurement of mapping for sourceID,
// children after their parent, and returns a copy annotated with the
// assigned ids. The shared mapping is left untouched.
func (c *Client) RegisterMeasurements(
	ctx context.Context,
	token string,
	sourceID int,
	mapping normalization.Mapping,
) (normalization.Mapping, error) {
	out := mapping.Clone()
	if err := c.register(ctx, token, sourceID, out.Mappings, ""); err != nil {
		return normalization.Mapping{}, err
	}
	c.logger.Info("measurements registered",
		zap.Int("source_id", sourceID),
		zap.Int("count", out.Count()),
	)
	return out, nil
}

func (c *Client) register(ctx context.Context, token string, sourceID int, items []normalization.Measurement, parentID string) error {
	for i := range items {
		item := &items[i]
		var body measurementResponse
		res, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetBody(measurementRequest{
				SourceID:        sourceID,
				Type:            item.DataType,
				MeasurementName: item.MeasurementName,
				ParentID:        parentID,
			}).
			SetResult(&body).
			Post(PathSourceMeasurement)
		if err := check("register measurement "+item.SourceField, res, err); err != nil {
			return err
		}
		id, err := decodeID(body.ID)
		if err != nil {
			return crunchbase.NewTransportError("register measurement "+item.SourceField, res.StatusCode(), err)
		}
		item.SourceMeasurementID = id
		if len(item.NestedMappings) > 0 {
			if err := c.register(ctx, token, sourceID, item.NestedMappings, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeID accepts the id as a JSON string or number.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("response carries no id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode id %s: %w", raw, err)
	}
	return n.String(), nil
}

// FeedRawData forwards one normalized company record.
func (c *Client) FeedRawData(ctx context.Context, token string, submission crunchbase.Submission) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(submission).
		Post(PathFeedRawData)
	return check("feed raw data "+submission.CompanyID, res, err)
}

// CrawlingFinished reports the end of a batch together with its per-company errors.
func (c *Client) CrawlingFinished(ctx context.Context, token string, report crunchbase.TaskReport) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(report).
		Post(PathCrawlingFinished)
	return check(fmt.Sprintf("crawling finished %d", report.TaskID), res, err)
}

func check(op string, res *resty.Response, err error) error {
	if err != nil {
		return crunchbase.NewTransportError(op, 0, err)
	}
	if res.IsError() {
		return crunchbase.NewTransportError(op, res.StatusCode(), fmt.Errorf("api request failed: %s", strings.TrimSpace(res.String())))
	}
	return nil
}
