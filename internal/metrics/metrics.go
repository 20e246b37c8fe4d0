// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "redditor_build_info",
		Help: "Build information of redditor",
	}, []string{"version"})

	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redditor_pipeline_runs_total",
		Help: "Pipeline runs by pipeline and final status.",
	}, []string{"pipeline", "status"})

	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redditor_pipeline_run_duration_seconds",
		Help:    "Duration of pipeline runs from setup through cleanup.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"pipeline"})

	PipelineItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redditor_pipeline_items_processed_total",
		Help: "Items processed by successful pipeline runs.",
	}, []string{"pipeline"})

	PipelinesRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "redditor_pipelines_running",
		Help: "Number of pipeline runs currently in progress.",
	})

	RedditRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redditor_reddit_requests_total",
		Help: "Reddit API requests by endpoint and HTTP status code.",
	}, []string{"endpoint", "code"})

	RedditRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redditor_reddit_retries_total",
		Help: "Reddit API requests retried after a 429 or 5xx.",
	})

	RedditRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "redditor_reddit_ratelimit_remaining",
		Help: "Requests remaining in the current Reddit rate-limit window.",
	})

	PostCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redditor_post_cache_lookups_total",
		Help: "Post cache lookups by result.",
	}, []string{"result"})

	SummarizerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redditor_summarizer_requests_total",
		Help: "Summarizer calls by result.",
	}, []string{"result"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redditor_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redditor_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "redditor_http_requests_in_flight",
		Help: "Number of HTTP requests currently being processed",
	})
)

// CacheResult returns the PostCacheLookups label for a lookup outcome.
func CacheResult(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Route pattern keeps label cardinality bounded.
		path := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			path = rctx.RoutePattern()
		}
		if path == "" {
			path = r.URL.Path
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
