package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
)

// NetHTTP adapts d into a standard net/http handler. net/http already runs
// each request on its own goroutine, so requests never wait on each other.
func NetHTTP(d Dispatcher, opts Options) http.Handler {
	log := opts.logger()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := request.FromHTTP(r, opts.MaxBodyBytes)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, request.ErrBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			log.Warn("request_rejected",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			http.Error(w, http.StatusText(status), status)
			return
		}

		res := response.New(netHTTPWriter{w: w})
		dispatch(d, req, res, r.Context().Done(), nil, opts)
	})
}

type netHTTPWriter struct {
	w http.ResponseWriter
}

func (n netHTTPWriter) WriteResponse(status int, header http.Header, body []byte) error {
	dst := n.w.Header()
	for k, v := range header {
		dst[k] = v
	}
	n.w.WriteHeader(status)
	if len(body) == 0 {
		return nil
	}
	_, err := n.w.Write(body)
	return err
}

// ServeNetHTTP serves d on ln with net/http until ctx is done, then shuts
// down gracefully.
func ServeNetHTTP(ctx context.Context, ln net.Listener, d Dispatcher, opts Options) error {
	srv := &http.Server{
		Handler:           NetHTTP(d, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serve net/http")
	case <-ctx.Done():
	}

	shutdownCtx := context.Background()
	if opts.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, opts.ShutdownTimeout)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown net/http")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve net/http")
	}
	return nil
}
