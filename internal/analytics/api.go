package analytics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// API exposes traffic analytics over HTTP.
type API struct {
	analyzer *Analyzer
	store    TrafficStore
}

// NewAPI creates an analytics API.
func NewAPI(analyzer *Analyzer, store TrafficStore) *API {
	return &API{analyzer: analyzer, store: store}
}

// Register mounts the analytics endpoints under prefix
// (e.g. "/_hyperbole/analytics"):
//
//	GET prefix/routes     every recorded route with its baseline
//	GET prefix/history    buckets for one route; query: route, hours
//	GET prefix/anomalies  anomalies from the last 24 hours
func (api *API) Register(s *router.Server, prefix string) {
	s.All(prefix+"/routes", getOnly(api.handleRoutes))
	s.All(prefix+"/history", getOnly(api.handleHistory))
	s.All(prefix+"/anomalies", getOnly(api.handleAnomalies))
}

func getOnly(h router.HandlerFunc) router.HandlerFunc {
	return func(req *request.Request, res *response.Response, next router.Next) error {
		if req.Method != http.MethodGet {
			return res.String(http.StatusMethodNotAllowed, "Method not allowed")
		}
		return h(req, res, next)
	}
}

// routeSummary is one entry of GET prefix/routes.
type routeSummary struct {
	Route        string  `json:"route"`
	AvgRate      float64 `json:"avg_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`
	ErrorRate    float64 `json:"error_rate"`
	Anomalies24h int     `json:"anomalies_24h"`
}

func (api *API) handleRoutes(_ *request.Request, res *response.Response, _ router.Next) error {
	baselines := api.analyzer.GetAllRouteBaselines()

	anomalyCounts := make(map[string]int)
	for _, a := range api.analyzer.GetRecentAnomalies() {
		anomalyCounts[a.Route]++
	}

	summaries := make([]routeSummary, 0, len(baselines))
	for _, route := range api.store.GetRoutes() {
		b, ok := baselines[route]
		if !ok {
			summaries = append(summaries, routeSummary{Route: route})
			continue
		}
		summaries = append(summaries, routeSummary{
			Route:        route,
			AvgRate:      b.MeanRate,
			AvgLatencyMs: b.MeanLatencyMs,
			P99LatencyMs: b.P99LatencyMs,
			ErrorRate:    b.MeanErrorRate,
			Anomalies24h: anomalyCounts[route],
		})
	}

	return res.JSON(http.StatusOK, map[string]interface{}{
		"routes":          summaries,
		"sufficient_data": api.analyzer.HasSufficientData(),
	})
}

// historyPoint is a single data point in a route's time series.
type historyPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestCount int       `json:"request_count"`
	ErrorRate    float64   `json:"error_rate"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	BytesIn      int64     `json:"bytes_in"`
	BytesOut     int64     `json:"bytes_out"`
}

func (api *API) handleHistory(req *request.Request, res *response.Response, _ router.Next) error {
	q := req.URL.Query()
	route := q.Get("route")
	if route == "" {
		return res.JSON(http.StatusBadRequest, map[string]string{"error": "route parameter required"})
	}

	hours := 1
	if h := q.Get("hours"); h != "" {
		if parsed, err := strconv.Atoi(h); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	if hours > 48 {
		hours = 48
	}

	to := time.Now()
	from := to.Add(-time.Duration(hours) * time.Hour)

	buckets := api.store.GetBuckets(route, from, to.Add(time.Minute))
	points := make([]historyPoint, len(buckets))
	for i, b := range buckets {
		points[i] = historyPoint{
			Timestamp:    b.Timestamp,
			RequestCount: b.RequestCount,
			ErrorRate:    b.ErrorRate(),
			AvgLatencyMs: float64(b.AvgLatency()) / float64(time.Millisecond),
			BytesIn:      b.BytesIn,
			BytesOut:     b.BytesOut,
		}
	}

	return res.JSON(http.StatusOK, map[string]interface{}{
		"route":    route,
		"from":     from,
		"to":       to,
		"points":   points,
		"baseline": api.analyzer.GetRouteBaseline(route),
	})
}

func (api *API) handleAnomalies(_ *request.Request, res *response.Response, _ router.Next) error {
	return res.JSON(http.StatusOK, map[string]interface{}{
		"anomalies": api.analyzer.GetRecentAnomalies(),
	})
}
