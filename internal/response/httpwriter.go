package response

import (
	"bytes"
	"net/http"
)

// HTTPWriter is an http.ResponseWriter that buffers a stdlib handler's output
// so it can be delivered as a single finalization with SendTo.
type HTTPWriter struct {
	header     http.Header
	statusCode int
	body       bytes.Buffer
}

var _ http.ResponseWriter = (*HTTPWriter)(nil)

// NewHTTPWriter returns an empty HTTPWriter.
func NewHTTPWriter() *HTTPWriter {
	return &HTTPWriter{header: make(http.Header)}
}

// Header returns the header map the wrapped handler writes into.
func (w *HTTPWriter) Header() http.Header {
	return w.header
}

// WriteHeader records the first status code only, like net/http does.
func (w *HTTPWriter) WriteHeader(code int) {
	if w.statusCode == 0 {
		w.statusCode = code
	}
}

// Write buffers b.
func (w *HTTPWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

// SendTo finalizes res with everything buffered so far.
func (w *HTTPWriter) SendTo(res *Response) error {
	return res.Send(w.statusCode, w.body.Bytes(), w.header)
}
