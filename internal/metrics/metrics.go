// Package metrics exposes Prometheus collectors for the crawl service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlsTotal           *prometheus.CounterVec
	proxyRetriesTotal     prometheus.Counter
	jobsTotal             *prometheus.CounterVec
	activeJobs            prometheus.Gauge
	crawlDurationSeconds  prometheus.Histogram
	wsSubscriptionsActive prometheus.Gauge
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		crawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapegoat_crawls_total",
				Help: "Total crawl attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		proxyRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrapegoat_proxy_retries_total",
				Help: "Total retryable navigation failures that advanced the proxy rotation.",
			},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapegoat_jobs_total",
				Help: "Total jobs reaching a terminal state, labeled by status.",
			},
			[]string{"status"},
		)

		activeJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrapegoat_active_jobs",
				Help: "Number of jobs currently processing.",
			},
		)

		crawlDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scrapegoat_crawl_duration_seconds",
				Help:    "Histogram of end-to-end crawl durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		wsSubscriptionsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrapegoat_ws_subscriptions_active",
				Help: "Number of live websocket job subscriptions.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapegoat_http_requests_total",
				Help: "Total HTTP requests, labeled by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrapegoat_http_request_duration_seconds",
				Help:    "Histogram of HTTP request durations by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCrawl increments the crawl counter for the given outcome.
func ObserveCrawl(outcome string) {
	if crawlsTotal != nil {
		crawlsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveProxyRetry counts one retryable navigation failure.
func ObserveProxyRetry() {
	if proxyRetriesTotal != nil {
		proxyRetriesTotal.Inc()
	}
}

// ObserveJob counts a job reaching a terminal status.
func ObserveJob(status string) {
	if jobsTotal != nil {
		jobsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveCrawlDuration records one crawl's wall-clock duration.
func ObserveCrawlDuration(d time.Duration) {
	if crawlDurationSeconds != nil {
		crawlDurationSeconds.Observe(d.Seconds())
	}
}

// IncActiveJobs increments the processing-jobs gauge.
func IncActiveJobs() {
	if activeJobs != nil {
		activeJobs.Inc()
	}
}

// DecActiveJobs decrements the processing-jobs gauge.
func DecActiveJobs() {
	if activeJobs != nil {
		activeJobs.Dec()
	}
}

// AddWSSubscriptions adjusts the live websocket subscription gauge.
func AddWSSubscriptions(delta float64) {
	if wsSubscriptionsActive != nil {
		wsSubscriptionsActive.Add(delta)
	}
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	if httpRequestDuration != nil {
		httpRequestDuration.WithLabelValues(route).Observe(d.Seconds())
	}
}
