package middleware

import (
	"github.com/google/uuid"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestID returns a handler that assigns a unique ID to every request.
// The ID is:
//   - Reused from the client's X-Request-ID header if present (distributed tracing)
//   - Otherwise a fresh UUID
//   - Set as the X-Request-ID response header, where later handlers read it
//     back with GetRequestID
func RequestID() router.HandlerFunc {
	return func(req *request.Request, res *response.Response, next router.Next) error {
		id := req.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		res.SetHeader(HeaderRequestID, id)
		next()
		return nil
	}
}

// GetRequestID returns the ID assigned by RequestID, or "" if it did not run.
func GetRequestID(res *response.Response) string {
	return res.GetHeader(HeaderRequestID)
}
