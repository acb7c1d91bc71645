// Package metrics exposes Prometheus collectors for the miner service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	companiesTotal             *prometheus.CounterVec
	extractionIssuesTotal      *prometheus.CounterVec
	discoveriesTotal           *prometheus.CounterVec
	scrapeDurationSeconds      *prometheus.HistogramVec
	outboundRequestsTotal      *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)

		companiesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miner_companies_total",
				Help: "Companies processed by scrape batches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		extractionIssuesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miner_extraction_issues_total",
				Help: "Failed sections and dropped fields during normalization, labeled by section and kind.",
			},
			[]string{"section", "kind"},
		)

		discoveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miner_discoveries_total",
				Help: "Profile discoveries, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miner_scrape_duration_seconds",
				Help:    "Histogram of scraping actor run durations, labeled by status.",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		)

		outboundRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miner_outbound_requests_total",
				Help: "Requests made to external services, labeled by service and code.",
			},
			[]string{"service", "code"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miner_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, route, rec.statusCode, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCompany counts one company of a batch. outcome is "delivered" or an error type.
func ObserveCompany(outcome string) {
	companiesTotal.WithLabelValues(outcome).Inc()
}

// ObserveSectionFailure counts a section that could not be extracted.
func ObserveSectionFailure(section string) {
	extractionIssuesTotal.WithLabelValues(section, "section").Inc()
}

// ObserveFieldIssue counts a present field that was dropped.
func ObserveFieldIssue(section string) {
	extractionIssuesTotal.WithLabelValues(section, "field").Inc()
}

// ObserveDiscovery counts one discovery attempt.
func ObserveDiscovery(outcome string) {
	discoveriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveScrape records the duration of one actor run.
func ObserveScrape(status string, duration time.Duration) {
	scrapeDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveOutbound counts one request to an external service. code 0 means no response.
func ObserveOutbound(service string, code int) {
	outboundRequestsTotal.WithLabelValues(service, strconv.Itoa(code)).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}
