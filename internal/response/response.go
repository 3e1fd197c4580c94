package response

import (
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
)

// ErrAlreadyFinalized is returned by Send, String and JSON when the response
// has already been finalized. The transport is not touched in that case.
var ErrAlreadyFinalized = errors.New("response: already finalized")

// StatusClientClosed is the status a cancelled response reports to its
// completion listeners. Nothing is written to the client.
const StatusClientClosed = 499

// Writer is the transport capability a Response finalizes through.
// WriteResponse is called at most once per Response.
type Writer interface {
	WriteResponse(status int, header http.Header, body []byte) error
}

// WriterFunc adapts a function into a Writer.
type WriterFunc func(status int, header http.Header, body []byte) error

// WriteResponse calls f.
func (f WriterFunc) WriteResponse(status int, header http.Header, body []byte) error {
	return f(status, header, body)
}

// Response is the single-request handle handlers finalize.
// It is shared by reference between every handler dispatched for the request.
type Response struct {
	w          Writer
	completion *Completion

	mu        sync.Mutex
	header    http.Header
	status    int
	size      int
	finalized bool
	cancelled bool
}

// New returns a Response bound to w.
func New(w Writer) *Response {
	return &Response{
		w:          w,
		completion: NewCompletion(),
		header:     make(http.Header),
		status:     http.StatusOK,
	}
}

// SetHeader sets a pending header, replacing any values for key. Pending
// headers are merged into the response when it is finalized; changes after
// finalization have no effect. Safe to call from any goroutine.
func (r *Response) SetHeader(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.header.Set(key, value)
	}
}

// AddHeader appends a pending header value.
func (r *Response) AddHeader(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.header.Add(key, value)
	}
}

// GetHeader returns the first pending value for key.
func (r *Response) GetHeader(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.header.Get(key)
}

// Status returns the final status code, or 200 before finalization.
// A cancelled response reports StatusClientClosed.
func (r *Response) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Size returns the number of body bytes handed to the transport.
func (r *Response) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Finalized reports whether the response has been sent or cancelled.
func (r *Response) Finalized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized
}

// Send finalizes the response. A zero status means 200. Headers passed here
// override pending headers with the same key.
//
// The completion signal fires even when the transport write fails; the write
// error is returned to the caller.
func (r *Response) Send(status int, body []byte, header http.Header) error {
	if status == 0 {
		status = http.StatusOK
	}

	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return ErrAlreadyFinalized
	}
	r.finalized = true
	r.status = status
	r.size = len(body)
	out := r.header.Clone()
	for k, v := range header {
		out[k] = append([]string(nil), v...)
	}
	r.mu.Unlock()

	err := r.w.WriteResponse(status, out, body)
	r.completion.Fire(status)
	if err != nil {
		return errors.Wrapf(err, "write %d response", status)
	}
	return nil
}

// String finalizes the response with a text body.
func (r *Response) String(status int, body string) error {
	return r.Send(status, []byte(body), nil)
}

// JSON encodes v and finalizes the response with it.
func (r *Response) JSON(status int, v any) error {
	if r.Finalized() {
		return ErrAlreadyFinalized
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode json response")
	}
	return r.Send(status, b, http.Header{"Content-Type": {"application/json"}})
}

// Cancel finalizes the response without writing anything, used when the
// client is gone. Listeners see StatusClientClosed. It returns false if the
// response was already finalized.
func (r *Response) Cancel() bool {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return false
	}
	r.finalized = true
	r.cancelled = true
	r.status = StatusClientClosed
	r.mu.Unlock()

	r.completion.Fire(StatusClientClosed)
	return true
}

// Cancelled reports whether the response was finalized by Cancel.
func (r *Response) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// OnCompletion registers fn to be called with the final status once the
// response is finalized. If that already happened, fn is called right away.
func (r *Response) OnCompletion(fn func(status int)) {
	r.completion.Subscribe(fn)
}

// Done returns a channel closed after finalization and its listeners ran.
func (r *Response) Done() <-chan struct{} {
	return r.completion.Done()
}
