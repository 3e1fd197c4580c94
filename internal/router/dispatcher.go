package router

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
)

// Outcome is how a single handler invocation resolved.
type Outcome int

const (
	OutcomeAdvanced   Outcome = iota // next was called first
	OutcomeTerminated                // the response was finalized first
	OutcomeFailed                    // the handler returned an error or panicked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeTerminated:
		return "terminated"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Dispatcher walks a Registry for one request at a time. Matching handlers
// run strictly one after another; handler n+1 starts only after handler n
// advanced.
type Dispatcher struct {
	registry *Registry
	log      *zap.Logger
	inFlight atomic.Int64

	// notFoundOnFallthrough also answers 404 when every matching handler
	// advanced and none finalized.
	notFoundOnFallthrough bool
}

// NewDispatcher returns a Dispatcher over reg. A nil logger discards logs.
func NewDispatcher(reg *Registry, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{registry: reg, log: log}
}

// InFlight returns the number of dispatches still walking their chain.
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// Dispatch runs the matching handlers for req against res. It returns once
// the chain stopped or ran out; the response may still be finalized later by
// a handler that finishes asynchronously. If nothing matched, res is
// finalized with 404 and an empty body. Unless the fallthrough option is
// set, a chain where every handler advanced leaves res untouched.
func (d *Dispatcher) Dispatch(req *request.Request, res *response.Response) {
	d.inFlight.Add(1)
	dispatchInFlight.Inc()
	defer func() {
		d.inFlight.Add(-1)
		dispatchInFlight.Dec()
	}()

	// Catches finalization that happens outside the handler currently racing.
	var ended atomic.Bool
	res.OnCompletion(func(int) { ended.Store(true) })

	handled := false
	for _, reg := range d.registry.Match(req.Path) {
		handled = true

		outcome := d.invoke(req, res, reg)
		// Finalization wins over next. Finalized() is set before the
		// transport write, so it also covers a send still in progress.
		if outcome == OutcomeAdvanced && (ended.Load() || res.Finalized()) {
			outcome = OutcomeTerminated
		}
		handlerOutcomes.WithLabelValues(outcome.String()).Inc()

		if outcome == OutcomeFailed {
			if err := res.Send(http.StatusInternalServerError, nil, nil); err == nil {
				d.log.Warn("handler_failed_unfinalized",
					zap.String("method", req.Method),
					zap.String("path", req.Path),
					zap.String("pattern", reg.Pattern),
				)
			}
			return
		}
		if outcome != OutcomeAdvanced {
			return
		}
	}

	if !handled || (d.notFoundOnFallthrough && !res.Finalized()) {
		d.notFound(req, res)
	}
}

func (d *Dispatcher) notFound(req *request.Request, res *response.Response) {
	err := res.Send(http.StatusNotFound, nil, http.Header{"Cache-Control": {"no-cache"}})
	switch {
	case err == nil:
		notFoundTotal.Inc()
	case !errors.Is(err, response.ErrAlreadyFinalized):
		d.log.Warn("not_found_write_failed", zap.String("path", req.Path), zap.Error(err))
	}
}

// invoke races the handler calling next against the response being
// finalized and against the handler failing. The first signal decides.
func (d *Dispatcher) invoke(req *request.Request, res *response.Response, reg Registration) Outcome {
	advanced := make(chan struct{})
	var once sync.Once
	next := func() { once.Do(func() { close(advanced) }) }

	failed := make(chan struct{})
	go func() {
		err := d.call(req, res, reg.Handler, next)
		if err == nil {
			return
		}
		d.log.Error("handler_error",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("pattern", reg.Pattern),
			zap.Error(err),
		)
		close(failed)
	}()

	select {
	case <-advanced:
		return OutcomeAdvanced
	case <-res.Done():
		return OutcomeTerminated
	case <-failed:
		// An error returned after next was called does not undo the advance.
		select {
		case <-advanced:
			return OutcomeAdvanced
		default:
		}
		return OutcomeFailed
	}
}

// call runs h and turns a panic into an error.
func (d *Dispatcher) call(req *request.Request, res *response.Response, h HandlerFunc, next Next) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok {
				err = errors.Wrap(e, "handler panicked")
			} else {
				err = errors.Newf("handler panicked: %v", p)
			}
		}
	}()
	return h(req, res, next)
}
