package request

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
)

// DefaultMaxBodyBytes bounds the body read when the caller passes no limit.
const DefaultMaxBodyBytes int64 = 1 << 20

// ErrBodyTooLarge is returned when a request body exceeds the read limit.
var ErrBodyTooLarge = errors.New("request: body too large")

// Request is the immutable view of one inbound call handed to every handler
// dispatched for it. Handlers should prefer Ctx for cancellation and values.
type Request struct {
	Ctx        context.Context
	Method     string
	URL        *url.URL
	Path       string
	Header     http.Header
	RemoteAddr string

	// RawBody is the body exactly as received.
	RawBody []byte
	// Body is RawBody decoded as JSON when it parses, otherwise the raw text.
	// It is nil, not "", for an empty body, so handlers can tell "no body"
	// apart from a JSON empty string. Check len(RawBody) when only emptiness
	// matters.
	Body any
}

// FromHTTP reads r into a Request. At most maxBody bytes are accepted;
// maxBody <= 0 uses DefaultMaxBodyBytes.
func FromHTTP(r *http.Request, maxBody int64) (*Request, error) {
	raw, err := readBody(r.Body, maxBody)
	if err != nil {
		return nil, err
	}
	u := *r.URL
	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" {
		u.Scheme = "http"
		if r.TLS != nil {
			u.Scheme = "https"
		}
	}
	return &Request{
		Ctx:        r.Context(),
		Method:     r.Method,
		URL:        &u,
		Path:       r.URL.Path,
		Header:     r.Header.Clone(),
		RemoteAddr: r.RemoteAddr,
		RawBody:    raw,
		Body:       decodeBody(raw),
	}, nil
}

// FromFastHTTP copies the request held by ctx into a Request bound to parent.
func FromFastHTTP(parent context.Context, ctx *fasthttp.RequestCtx, maxBody int64) (*Request, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	body := ctx.PostBody()
	if int64(len(body)) > maxBody {
		return nil, ErrBodyTooLarge
	}
	raw := append([]byte(nil), body...)

	u, err := url.Parse(string(ctx.URI().FullURI()))
	if err != nil {
		return nil, errors.Wrap(err, "parse request uri")
	}

	hdr := make(http.Header)
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := http.CanonicalHeaderKey(string(k))
		hdr[key] = append(hdr[key], string(v))
	})

	return &Request{
		Ctx:        parent,
		Method:     string(ctx.Method()),
		URL:        u,
		Path:       string(ctx.Path()),
		Header:     hdr,
		RemoteAddr: ctx.RemoteAddr().String(),
		RawBody:    raw,
		Body:       decodeBody(raw),
	}, nil
}

// Lookup runs a gjson path query against the raw body, e.g. "user.name".
func (r *Request) Lookup(path string) gjson.Result {
	return gjson.GetBytes(r.RawBody, path)
}

// Decode unmarshals the raw body into v.
func (r *Request) Decode(v any) error {
	if len(r.RawBody) == 0 {
		return errors.New("request: empty body")
	}
	if err := json.Unmarshal(r.RawBody, v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

func readBody(body io.Reader, maxBody int64) ([]byte, error) {
	if body == nil || body == http.NoBody {
		return nil, nil
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxBody+1))
	if err != nil {
		return nil, errors.Wrap(err, "read request body")
	}
	if int64(len(raw)) > maxBody {
		return nil, ErrBodyTooLarge
	}
	return raw, nil
}

// decodeBody is best effort: JSON when it parses, raw text otherwise.
func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		if len(raw) == 0 {
			return nil
		}
		return string(raw)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}
