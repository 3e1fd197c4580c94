package health

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// Checker reports liveness for the /healthz endpoint.
type Checker struct {
	startTime time.Time
	inFlight  func() int64
	// MaxInFlight marks the server degraded above this many concurrent
	// dispatches. Zero disables the check.
	MaxInFlight int64
}

// NewChecker creates a Checker. inFlight is typically Dispatcher.InFlight.
func NewChecker(inFlight func() int64) *Checker {
	return &Checker{startTime: time.Now(), inFlight: inFlight}
}

// healthResponse is the JSON structure returned by the /healthz endpoint.
type healthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Started  string `json:"started"`
	InFlight int64  `json:"in_flight"`
}

// Uptime returns the time since the checker was created, rounded to seconds.
func (c *Checker) Uptime() string {
	return time.Since(c.startTime).Round(time.Second).String()
}

// Handler returns the health handler. It answers 200, or 503 when degraded,
// and never advances.
func (c *Checker) Handler() router.HandlerFunc {
	return func(_ *request.Request, res *response.Response, _ router.Next) error {
		var inFlight int64
		if c.inFlight != nil {
			inFlight = c.inFlight()
		}

		resp := healthResponse{
			Status:   "healthy",
			Uptime:   c.Uptime(),
			Started:  humanize.Time(c.startTime),
			InFlight: inFlight,
		}
		status := http.StatusOK
		if c.MaxInFlight > 0 && inFlight > c.MaxInFlight {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		res.SetHeader("Cache-Control", "no-cache")
		return res.JSON(status, resp)
	}
}
