package middleware

import (
	"time"

	"github.com/tanmay/hyperbole/internal/dashboard"
	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// Capture returns a handler that pushes a RequestLog for every finalized
// response into store. Entries go through a background goroutine so the
// completion listener never blocks on the store.
func Capture(store *dashboard.LogStore) router.HandlerFunc {
	ch := make(chan dashboard.RequestLog, 256)

	// Background worker to consume logs and add to store
	go func() {
		for log := range ch {
			store.Add(log)
		}
	}()

	return func(req *request.Request, res *response.Response, next router.Next) error {
		start := time.Now()
		res.OnCompletion(func(status int) {
			entry := dashboard.RequestLog{
				ID:        GetRequestID(res),
				Timestamp: start.UTC(),
				Method:    req.Method,
				Path:      req.Path,
				Status:    status,
				Latency:   time.Since(start),
				ClientIP:  clientIP(req.RemoteAddr),
				BytesIn:   int64(len(req.RawBody)),
				BytesOut:  int64(res.Size()),
			}
			select {
			case ch <- entry:
			default:
				// Channel is full, we drop it rather than block the response.
			}
		})
		next()
		return nil
	}
}
