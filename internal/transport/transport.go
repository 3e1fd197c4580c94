package transport

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
)

// Dispatcher runs the handler chain for one request.
type Dispatcher interface {
	Dispatch(req *request.Request, res *response.Response)
}

// DispatcherFunc adapts a function into a Dispatcher.
type DispatcherFunc func(req *request.Request, res *response.Response)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(req *request.Request, res *response.Response) {
	f(req, res)
}

// Options tune both adapters.
type Options struct {
	// StallTimeout finalizes a response with 503 when no handler finalized it
	// in time. Zero waits until the client goes away under net/http; the
	// fasthttp adapter cannot see that and uses DefaultFastHTTPStallTimeout.
	StallTimeout time.Duration
	// MaxBodyBytes bounds request bodies; zero uses request.DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// ShutdownTimeout bounds graceful shutdown once the serve context ends.
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// dispatch starts d without waiting for it, then blocks until res is
// finalized. gone is closed when the client disconnected and closing when the
// server started shutting down; either may be nil.
//
// The transport writer must stay valid until this returns, so every exit path
// waits on res.Done().
func dispatch(d Dispatcher, req *request.Request, res *response.Response, gone, closing <-chan struct{}, opts Options) {
	go d.Dispatch(req, res)

	var timeout <-chan time.Time
	if opts.StallTimeout > 0 {
		t := time.NewTimer(opts.StallTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-res.Done():
		return
	case <-gone:
		if res.Cancel() {
			opts.logger().Debug("client_gone",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
			)
		}
	case <-closing:
		if err := res.Send(http.StatusServiceUnavailable, nil, http.Header{"Connection": {"close"}}); err == nil {
			opts.logger().Warn("pending_at_shutdown",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
			)
		}
	case <-timeout:
		if err := res.Send(http.StatusServiceUnavailable, nil, nil); err == nil {
			opts.logger().Warn("handler_stalled",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Duration("timeout", opts.StallTimeout),
			)
		}
	}
	<-res.Done()
}
