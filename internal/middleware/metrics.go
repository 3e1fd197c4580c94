package middleware

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// Prometheus metrics, registered once at package init via promauto.
var (
	// httpRequestsTotal counts total requests by method, path, and status code.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperbole_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration tracks time from dispatch to finalization.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperbole_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Metrics returns a handler that records Prometheus metrics per request.
func Metrics() router.HandlerFunc {
	return func(req *request.Request, res *response.Response, next router.Next) error {
		start := time.Now()
		res.OnCompletion(func(status int) {
			httpRequestsTotal.WithLabelValues(req.Method, req.Path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(req.Method, req.Path).Observe(time.Since(start).Seconds())
		})
		next()
		return nil
	}
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() router.HandlerFunc {
	return router.Wrap(promhttp.Handler())
}
