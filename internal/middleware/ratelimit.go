package middleware

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// RateLimiter holds a token bucket per client IP.
// The mutex protects the map; requests for different clients are
// dispatched concurrently.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	mu       sync.Mutex
}

// NewRateLimiter creates a rate limiter.
// rps = sustained rate (e.g., 1.0 = 1 request/sec)
// burst = bucket size (e.g., 10 requests)
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request from ip may proceed, consuming a token.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	lim, ok := rl.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[ip] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

// Middleware returns the rate limiting handler. Over the limit it answers
// 429 and does not advance.
func (rl *RateLimiter) Middleware() router.HandlerFunc {
	return func(req *request.Request, res *response.Response, next router.Next) error {
		if !rl.Allow(clientIP(req.RemoteAddr)) {
			return res.String(http.StatusTooManyRequests, "Too Many Requests")
		}
		next()
		return nil
	}
}
