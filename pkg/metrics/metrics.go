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
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sales_explorer_build_info",
			Help: "Build information of the Sales Explorer",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_explorer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sales_explorer_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AnthropicRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sales_explorer_anthropic_request_duration_seconds",
			Help:    "Duration of Anthropic API requests in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	AnthropicRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_explorer_anthropic_request_errors_total",
			Help: "Total number of failed Anthropic API requests",
		},
		[]string{"endpoint"},
	)

	DatasetQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_explorer_dataset_queries_total",
			Help: "Total number of queries executed against the sales dataset",
		},
		[]string{"status"},
	)

	DatasetQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sales_explorer_dataset_query_duration_seconds",
			Help:    "Duration of sales dataset queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordAnthropicRequest records latency and outcome for one Anthropic call.
func RecordAnthropicRequest(endpoint string, duration time.Duration, err error) {
	AnthropicRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	if err != nil {
		AnthropicRequestErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordDatasetQuery records latency and outcome for one dataset query.
func RecordDatasetQuery(duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DatasetQueriesTotal.WithLabelValues(status).Inc()
	DatasetQueryDuration.Observe(duration.Seconds())
}

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
