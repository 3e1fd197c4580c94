package router

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tanmay/hyperbole/internal/config"
	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
)

func TestRegistryMatch(t *testing.T) {
	reg := NewRegistry()
	noop := func(*request.Request, *response.Response, Next) error { return nil }
	reg.Register("/a", noop)
	reg.Register(CatchAll, noop)
	reg.Register("/b", noop)
	reg.Register("/a", noop)

	var got []string
	for _, r := range reg.Match("/a") {
		got = append(got, r.Pattern)
	}
	assert.Equal(t, []string{"/a", "*", "/a"}, got)
	assert.Len(t, reg.Match("/a/sub"), 1, "no prefix matching")
	assert.Equal(t, []string{"/a", "*", "/b", "/a"}, reg.Patterns())
	assert.Equal(t, 4, reg.Len())
	assert.True(t, reg.Has("/b"))
	assert.False(t, reg.Has("/c"))
	assert.False(t, reg.Has(CatchAll))
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	reg := NewRegistry()
	assert.Panics(t, func() { reg.Register("", func(*request.Request, *response.Response, Next) error { return nil }) })
	assert.Panics(t, func() { reg.Register("/x", nil) })
}

func TestHandlerEndToEnd(t *testing.T) {
	s := New(WithLogger(zap.NewNop()))
	s.Use(func(_ *request.Request, res *response.Response, next Next) error {
		res.SetHeader("X-Seen", "yes")
		next()
		return nil
	}).All("/echo", func(req *request.Request, res *response.Response, _ Next) error {
		return res.JSON(http.StatusOK, map[string]any{"name": req.Lookup("name").String()})
	})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/echo", "application/json", strings.NewReader(`{"name":"ada"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "yes", resp.Header.Get("X-Seen"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"name":"ada"}`, string(body))
}

func TestHandler404WithoutCatchAll(t *testing.T) {
	s := New()
	s.All("/only", func(_ *request.Request, res *response.Response, _ Next) error {
		return res.String(http.StatusOK, "only")
	})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/other")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, body)
}

func TestStallTimeoutAnswers503(t *testing.T) {
	s := New(WithStallTimeout(50 * time.Millisecond))
	s.All("/stall", func(*request.Request, *response.Response, Next) error {
		return nil
	})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stall")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHeaderWritesPastStallTimeout(t *testing.T) {
	s := New(WithStallTimeout(5 * time.Millisecond))
	finished := make(chan struct{})
	s.All("/slow-headers", func(_ *request.Request, res *response.Response, _ Next) error {
		defer close(finished)
		deadline := time.Now().Add(20 * time.Millisecond)
		for i := 0; time.Now().Before(deadline); i++ {
			res.SetHeader("X-Step", strconv.Itoa(i))
		}
		return nil
	})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/slow-headers")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	<-finished
}

func TestWrapStdlibHandler(t *testing.T) {
	s := New()
	s.All("/std", Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, r.Method+" "+r.URL.Path)
	})))

	_, w := dispatch(s, "/std")

	_, status, body := w.snapshot()
	assert.Equal(t, http.StatusTeapot, status)
	assert.Equal(t, "GET /std", body)
}

func TestServeBothTransports(t *testing.T) {
	for _, name := range []string{config.TransportNetHTTP, config.TransportFastHTTP} {
		t.Run(name, func(t *testing.T) {
			s := New(WithTransport(name), WithShutdownTimeout(time.Second))
			s.All("/", func(_ *request.Request, res *response.Response, _ Next) error {
				return res.Send(http.StatusOK, []byte("Hello World!"), http.Header{"X-Transport": {name}})
			})

			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- s.Serve(ctx, ln) }()

			client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
			resp, err := client.Get("http://" + ln.Addr().String() + "/")
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "Hello World!", string(body))
			assert.Equal(t, name, resp.Header.Get("X-Transport"))

			resp, err = client.Get("http://" + ln.Addr().String() + "/nope")
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)

			cancel()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("server did not shut down")
			}
		})
	}
}

func TestServeUnknownTransport(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	err = New(WithTransport("smoke-signals")).Serve(context.Background(), ln)
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.StallTimeout = "2s"
	cfg.Server.Transport = config.TransportFastHTTP

	s, err := FromConfig(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, config.TransportFastHTTP, s.transport)
	assert.Equal(t, 2*time.Second, s.opts.StallTimeout)
	assert.Equal(t, cfg.Server.MaxBodyBytes, s.opts.MaxBodyBytes)
}
