package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// BreakerState is the state of one route's circuit.
type BreakerState int

// Circuit breaker states
const (
	StateClosed   BreakerState = iota // normal, requests flow through
	StateOpen                         // tripped, requests rejected
	StateHalfOpen                     // one trial request decides
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// circuitOpen is 1 while a route's circuit is open or half-open.
var circuitOpen = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "hyperbole_circuit_open",
		Help: "Whether the circuit breaker for a route is tripped",
	},
	[]string{"route"},
)

type circuit struct {
	state        BreakerState
	failureCount int
	lastFailure  time.Time
	trial        bool // a half-open trial request is in flight
}

// CircuitBreaker tracks 5xx responses per route. After threshold
// consecutive failures it opens and answers 503 without advancing until
// timeout passes, then lets one request through to test recovery.
type CircuitBreaker struct {
	threshold int
	timeout   time.Duration
	known     func(path string) bool
	circuits  map[string]*circuit
	mu        sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker.
// threshold = how many failures before opening (e.g., 5)
// timeout = how long to wait before trying again (e.g., 30s)
// known = exact route lookup, typically router.Server.HasRoute; other
// paths share one circuit.
func NewCircuitBreaker(threshold int, timeout time.Duration, known func(path string) bool) *CircuitBreaker {
	if threshold < 1 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		known:     known,
		circuits:  make(map[string]*circuit),
	}
}

// State reports the circuit state for route.
func (cb *CircuitBreaker) State(route string) BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if c, ok := cb.circuits[route]; ok {
		return c.state
	}
	return StateClosed
}

// admit decides whether a request for route may proceed. When it may not,
// retryAfter is the time left until the next trial.
func (cb *CircuitBreaker) admit(route string) (ok bool, retryAfter time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, found := cb.circuits[route]
	if !found {
		c = &circuit{}
		cb.circuits[route] = c
	}

	switch c.state {
	case StateOpen:
		if wait := cb.timeout - time.Since(c.lastFailure); wait > 0 {
			return false, wait
		}
		c.state = StateHalfOpen
		c.trial = true
		return true, 0
	case StateHalfOpen:
		if c.trial {
			return false, cb.timeout
		}
		c.trial = true
		return true, 0
	default:
		return true, 0
	}
}

// record applies the final status of an admitted request to route's circuit.
func (cb *CircuitBreaker) record(route string, status int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuits[route]
	c.trial = false

	switch {
	case status == response.StatusClientClosed:
		// The client left; says nothing about the route.
		return
	case status >= 500:
		c.failureCount++
		c.lastFailure = time.Now()
		if c.state == StateHalfOpen || c.failureCount >= cb.threshold {
			c.state = StateOpen
			circuitOpen.WithLabelValues(route).Set(1)
		}
	default:
		c.failureCount = 0
		c.state = StateClosed
		circuitOpen.WithLabelValues(route).Set(0)
	}
}

// Middleware returns the circuit breaker handler. Register it after the
// middleware that should still see rejected requests.
func (cb *CircuitBreaker) Middleware() router.HandlerFunc {
	return func(req *request.Request, res *response.Response, next router.Next) error {
		route := normalizeRoute(cb.known, req.Path)

		ok, retryAfter := cb.admit(route)
		if !ok {
			res.SetHeader("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			return res.String(http.StatusServiceUnavailable, "Service Unavailable")
		}

		res.OnCompletion(func(status int) { cb.record(route, status) })
		next()
		return nil
	}
}
