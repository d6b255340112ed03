// Package metrics exposes Prometheus collectors for the headline watch
// service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	watchFetchesTotal          *prometheus.CounterVec
	watchFetchDurationSeconds  *prometheus.HistogramVec
	watchJobsTotal             *prometheus.CounterVec
	watchRevisionsTotal        *prometheus.CounterVec
	watchNotificationsTotal    *prometheus.CounterVec
	watchSweepScheduledTotal   prometheus.Counter
	watchActiveWorkers         prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		watchFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_fetches_total",
				Help: "Total number of page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		watchFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "watch_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		watchJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_jobs_total",
				Help: "Total number of jobs processed, labeled by lane, kind and status.",
			},
			[]string{"lane", "kind", "status"},
		)

		watchRevisionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_revisions_total",
				Help: "Total number of revision state transitions, labeled by state.",
			},
			[]string{"state"},
		)

		watchNotificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_notifications_total",
				Help: "Total number of notification dispatch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		watchSweepScheduledTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "watch_sweep_scheduled_total",
				Help: "Total number of re-check jobs scheduled by the sweeper.",
			},
		)

		watchActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "watch_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one page fetch.
func ObserveFetch(site string, status string, duration time.Duration) {
	sanitizedSite := SanitizeSite(site)
	watchFetchesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if duration > 0 {
		watchFetchDurationSeconds.WithLabelValues(sanitizedSite).Observe(duration.Seconds())
	}
}

// ObserveJob increments the job counter for the given lane, kind and status.
func ObserveJob(lane, kind, status string) {
	watchJobsTotal.WithLabelValues(lane, kind, status).Inc()
}

// RevisionApplied increments the revision transition counter.
func RevisionApplied(state string) {
	watchRevisionsTotal.WithLabelValues(state).Inc()
}

// NotificationDispatched increments the notification counter for the outcome.
func NotificationDispatched(outcome string) {
	watchNotificationsTotal.WithLabelValues(outcome).Inc()
}

// SweepScheduled adds scheduled re-check jobs to the sweep counter.
func SweepScheduled(count int) {
	watchSweepScheduledTotal.Add(float64(count))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	watchActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	watchActiveWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
