package searxng

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/metrics"
)

type countingWaiter struct{ calls int }

func (w *countingWaiter) Wait(context.Context, string) error {
	w.calls++
	return nil
}

func TestSearchReturnsURLsInOrder(t *testing.T) {
	metrics.Init()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "Acme crunchbase", r.URL.Query().Get("q"))
		require.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"Acme crunchbase","results":[
			{"url":"https://www.crunchbase.com/organization/acme","title":"Acme"},
			{"url":""},
			{"url":"https://acme.example"},
			{"url":"https://news.example/acme"}
		]}`))
	}))
	defer srv.Close()

	waiter := &countingWaiter{}
	client := NewClient(Options{BaseURL: srv.URL, Limiter: waiter})

	urls, err := client.Search(context.Background(), "Acme crunchbase", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"https://www.crunchbase.com/organization/acme", "https://acme.example"}, urls)
	require.Equal(t, 1, waiter.calls)
}

func TestSearchNon2xxIsTransportError(t *testing.T) {
	metrics.Init()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL}).Search(context.Background(), "Acme", 10)
	require.ErrorIs(t, err, crunchbase.ErrTransport)

	var te *crunchbase.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusTooManyRequests, te.StatusCode)
}
