package middleware

import (
	"time"

	"github.com/tanmay/hyperbole/internal/analytics"
	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// TrafficRecorder feeds finalized requests into a TrafficStore through a
// buffered channel, the same way Capture feeds the dashboard.
type TrafficRecorder struct {
	events chan analytics.TrafficEvent
	store  analytics.TrafficStore
	known  func(path string) bool
}

// NewTrafficRecorder creates a TrafficRecorder over store. known reports
// whether a path is an exact registered route, typically
// router.Server.HasRoute; nil groups every request under
// analytics.OtherRoute.
func NewTrafficRecorder(store analytics.TrafficStore, known func(path string) bool) *TrafficRecorder {
	tr := &TrafficRecorder{
		events: make(chan analytics.TrafficEvent, 256),
		store:  store,
		known:  known,
	}

	// Background worker drains events into the store
	go func() {
		for event := range tr.events {
			tr.store.Record(event)
		}
	}()

	return tr
}

// NormalizeRoute returns path when it is a registered route and
// analytics.OtherRoute otherwise.
func (tr *TrafficRecorder) NormalizeRoute(path string) string {
	return normalizeRoute(tr.known, path)
}

func normalizeRoute(known func(string) bool, path string) string {
	if known != nil && known(path) {
		return path
	}
	return analytics.OtherRoute
}

// Middleware returns the recording handler. The event is built when the
// response finalizes, so it carries the final status and latency.
func (tr *TrafficRecorder) Middleware() router.HandlerFunc {
	return func(req *request.Request, res *response.Response, next router.Next) error {
		start := time.Now()
		route := tr.NormalizeRoute(req.Path)
		res.OnCompletion(func(status int) {
			select {
			case tr.events <- analytics.TrafficEvent{
				Route:     route,
				Method:    req.Method,
				Status:    status,
				Latency:   time.Since(start),
				BytesIn:   int64(len(req.RawBody)),
				BytesOut:  int64(res.Size()),
				ClientIP:  clientIP(req.RemoteAddr),
				Timestamp: start.UTC(),
			}:
			default:
				// Drop event if channel is full rather than blocking the response
			}
		})
		next()
		return nil
	}
}
