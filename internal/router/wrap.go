package router

import (
	"bytes"
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
)

// Wrap mounts a standard http.Handler as a terminal handler. Its output is
// buffered and sent as one finalization; next is never called.
func Wrap(h http.Handler) HandlerFunc {
	return func(req *request.Request, res *response.Response, _ Next) error {
		ctx := req.Ctx
		if ctx == nil {
			ctx = context.Background()
		}
		target := req.Path
		if req.URL != nil {
			target = req.URL.String()
		}
		r, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.RawBody))
		if err != nil {
			return errors.Wrap(err, "build wrapped request")
		}
		r.Header = req.Header.Clone()
		r.RemoteAddr = req.RemoteAddr

		w := response.NewHTTPWriter()
		h.ServeHTTP(w, r)
		return w.SendTo(res)
	}
}
