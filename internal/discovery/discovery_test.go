package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/metrics"
)

type fakeSearcher struct {
	results map[string][]string
	err     error
	queries []string
	limits  []int
}

func (f *fakeSearcher) Search(_ context.Context, query string, limit int) ([]string, error) {
	f.queries = append(f.queries, query)
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMatchProfileURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.crunchbase.com/organization/acme", true},
		{"https://www.crunchbase.com/organization/acme/people", false},
		{"https://www.crunchbase.com/person/jane-doe", false},
		{"https://crunchbase.com/organization/acme", false},
		{"https://www.example.com/organization/acme", false},
		{"https://www.crunchbase.com/organization/", true},
		{"", false},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, MatchProfileURL(tc.url), tc.url)
	}
}

func TestSelectProfile(t *testing.T) {
	t.Parallel()

	url, err := SelectProfile([]string{
		"https://www.crunchbase.com/organization/acme/company_financials",
		"https://www.crunchbase.com/organization/acme",
		"https://www.crunchbase.com/organization/acme-2",
	})
	require.NoError(t, err)
	require.Equal(t, "https://www.crunchbase.com/organization/acme", url)

	_, err = SelectProfile([]string{"https://acme.example"})
	require.ErrorIs(t, err, crunchbase.ErrNotFound)
}

func TestDiscoverSearchesWithKeywordAndReturnsName(t *testing.T) {
	metrics.Init()
	searcher := &fakeSearcher{results: map[string][]string{
		"Acme crunchbase": {"https://acme.example", "https://www.crunchbase.com/organization/acme"},
	}}
	d := New(searcher, fixedClock{epoch}, nil, Config{})

	res, err := d.Discover(context.Background(), "  Acme ")
	require.NoError(t, err)
	require.Equal(t, Result{Name: "Acme", URL: "https://www.crunchbase.com/organization/acme"}, res)
	require.Equal(t, []int{DefaultMaxResults}, searcher.limits)
}

func TestDiscoverScansOnlyMaxResults(t *testing.T) {
	metrics.Init()
	candidates := []string{"https://a.example", "https://b.example", "https://www.crunchbase.com/organization/acme"}
	searcher := &fakeSearcher{results: map[string][]string{"Acme crunchbase": candidates}}
	d := New(searcher, fixedClock{epoch}, nil, Config{MaxResults: 2})

	_, err := d.Discover(context.Background(), "Acme")
	require.ErrorIs(t, err, crunchbase.ErrNotFound)
}

func TestDiscoverErrors(t *testing.T) {
	metrics.Init()

	d := New(&fakeSearcher{}, fixedClock{epoch}, nil, Config{})
	_, err := d.Discover(context.Background(), " ")
	require.ErrorIs(t, err, crunchbase.ErrInvalidInput)

	d = New(&fakeSearcher{err: errors.New("connection refused")}, fixedClock{epoch}, nil, Config{})
	_, err = d.Discover(context.Background(), "Acme")
	require.ErrorIs(t, err, crunchbase.ErrTransport)
	require.Equal(t, crunchbase.ErrorTypeTransport, crunchbase.Classify(err))

	d = New(&fakeSearcher{}, fixedClock{epoch}, nil, Config{})
	_, err = d.Discover(context.Background(), "Nobody")
	require.ErrorIs(t, err, crunchbase.ErrNotFound)
}

func TestDiscoverOne(t *testing.T) {
	metrics.Init()
	searcher := &fakeSearcher{results: map[string][]string{
		"Acme crunchbase": {"https://www.crunchbase.com/organization/acme"},
	}}
	d := New(searcher, fixedClock{epoch}, nil, Config{})

	resp, err := d.DiscoverOne(context.Background(), "c-1", "Acme")
	require.NoError(t, err)
	require.Equal(t, []string{"https://www.crunchbase.com/organization/acme"}, resp.Identifiers["c-1"].Handles)
	require.Equal(t, epoch.Add(180*24*time.Hour), resp.Validity)

	resp, err = d.DiscoverOne(context.Background(), "", "Acme")
	require.NoError(t, err)
	require.Contains(t, resp.Identifiers, "Acme")
}

func TestDiscoverBatch(t *testing.T) {
	metrics.Init()
	searcher := &fakeSearcher{results: map[string][]string{
		"Acme crunchbase": {"https://www.crunchbase.com/organization/acme"},
	}}
	d := New(searcher, fixedClock{epoch}, nil, Config{})

	resp, err := d.DiscoverBatch(context.Background(), []crunchbase.DiscoveryRequest{
		{CompanyID: "1", Name: "Acme"},
		{CompanyID: "2", Name: "Nobody"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://www.crunchbase.com/organization/acme"}, resp.Identifiers["1"].Handles)
	require.NotNil(t, resp.Identifiers["2"].Handles)
	require.Empty(t, resp.Identifiers["2"].Handles)

	failing := New(&fakeSearcher{err: errors.New("boom")}, fixedClock{epoch}, nil, Config{})
	_, err = failing.DiscoverBatch(context.Background(), []crunchbase.DiscoveryRequest{{CompanyID: "1", Name: "Acme"}})
	require.ErrorIs(t, err, crunchbase.ErrTransport)
}
