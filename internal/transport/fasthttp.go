package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
)

// DefaultFastHTTPStallTimeout applies to the fasthttp adapter when
// Options.StallTimeout is zero. fasthttp gives no per-request disconnect
// signal, so a response nobody finalizes would otherwise be held until
// shutdown.
const DefaultFastHTTPStallTimeout = 60 * time.Second

// FastHTTP adapts d into a fasthttp.RequestHandler. Each request gets a
// cancellable context exposed through Request.Ctx. Responses still pending
// when the server starts shutting down are answered with 503. The handler
// must be served by a fasthttp.Server.
func FastHTTP(d Dispatcher, opts Options) fasthttp.RequestHandler {
	log := opts.logger()
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = DefaultFastHTTPStallTimeout
	}
	return func(ctx *fasthttp.RequestCtx) {
		cctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req, err := request.FromFastHTTP(cctx, ctx, opts.MaxBodyBytes)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, request.ErrBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			log.Warn("request_rejected",
				zap.ByteString("method", ctx.Method()),
				zap.ByteString("path", ctx.Path()),
				zap.Error(err),
			)
			ctx.Error(http.StatusText(status), status)
			return
		}

		res := response.New(fastHTTPWriter{ctx: ctx})
		// No per-request disconnect signal in fasthttp. ctx.Done is the
		// server's done channel, closed once Shutdown starts.
		dispatch(d, req, res, nil, ctx.Done(), opts)
	}
}

type fastHTTPWriter struct {
	ctx *fasthttp.RequestCtx
}

func (f fastHTTPWriter) WriteResponse(status int, header http.Header, body []byte) error {
	for k, vals := range header {
		for i, v := range vals {
			if i == 0 {
				f.ctx.Response.Header.Set(k, v)
				continue
			}
			f.ctx.Response.Header.Add(k, v)
		}
	}
	f.ctx.SetStatusCode(status)
	f.ctx.SetBody(body)
	return nil
}

// ServeFastHTTP serves d on ln with fasthttp until ctx is done, then shuts
// down gracefully.
func ServeFastHTTP(ctx context.Context, ln net.Listener, d Dispatcher, opts Options) error {
	srv := &fasthttp.Server{
		Handler: FastHTTP(d, opts),
		Name:    "hyperbole",
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serve fasthttp")
	case <-ctx.Done():
	}

	if err := shutdownFastHTTP(srv, opts.ShutdownTimeout); err != nil {
		return err
	}
	if err := <-errCh; err != nil {
		return errors.Wrap(err, "serve fasthttp")
	}
	return nil
}

// shutdownFastHTTP runs srv.Shutdown bounded by timeout; zero waits for it.
func shutdownFastHTTP(srv *fasthttp.Server, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- srv.Shutdown() }()

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrap(err, "shutdown fasthttp")
		}
		return nil
	case <-expired:
		return errors.Newf("shutdown fasthttp: connections still open after %s", timeout)
	}
}
