package router

import (
	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
)

// Next is the callback a handler invokes to defer to the next matching
// handler. Calling it more than once has no further effect.
type Next func()

// HandlerFunc handles a request. It must either call next or finalize res,
// possibly from another goroutine after returning. A handler that does
// neither leaves the request waiting until the transport gives up on it.
//
// A non-nil error, or a panic, stops the chain; if res was not finalized the
// dispatcher answers 500.
type HandlerFunc func(req *request.Request, res *response.Response, next Next) error
