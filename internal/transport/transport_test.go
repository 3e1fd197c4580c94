package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
)

func TestNetHTTPRejectsLargeBody(t *testing.T) {
	called := make(chan struct{}, 1)
	d := DispatcherFunc(func(_ *request.Request, res *response.Response) {
		called <- struct{}{}
		_ = res.String(http.StatusOK, "ok")
	})
	ts := httptest.NewServer(NetHTTP(d, Options{MaxBodyBytes: 8}))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/upload", "text/plain", strings.NewReader(strings.Repeat("x", 64)))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Empty(t, called)
}

func TestNetHTTPWaitsForAsyncFinalization(t *testing.T) {
	d := DispatcherFunc(func(_ *request.Request, res *response.Response) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = res.Send(http.StatusCreated, []byte("later"), http.Header{"X-Multi": {"a", "b"}})
		}()
	})
	ts := httptest.NewServer(NetHTTP(d, Options{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "later", string(body))
	assert.Equal(t, []string{"a", "b"}, resp.Header.Values("X-Multi"))
}

func TestStallTimeoutSends503(t *testing.T) {
	d := DispatcherFunc(func(*request.Request, *response.Response) {})
	ts := httptest.NewServer(NetHTTP(d, Options{StallTimeout: 30 * time.Millisecond}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClientGoneCancelsResponse(t *testing.T) {
	got := make(chan *response.Response, 1)
	d := DispatcherFunc(func(_ *request.Request, res *response.Response) {
		got <- res
	})
	ts := httptest.NewServer(NetHTTP(d, Options{}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/", nil)
	require.NoError(t, err)
	_, err = http.DefaultClient.Do(req)
	require.Error(t, err)

	res := <-got
	select {
	case <-res.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("response not finalized after client disconnect")
	}
	assert.True(t, res.Cancelled())
	assert.Equal(t, response.StatusClientClosed, res.Status())
	assert.ErrorIs(t, res.String(http.StatusOK, "too late"), response.ErrAlreadyFinalized)
}

func TestFastHTTPServe(t *testing.T) {
	d := DispatcherFunc(func(req *request.Request, res *response.Response) {
		_ = res.Send(http.StatusAccepted, []byte(req.Method+" "+req.Path), http.Header{"X-Multi": {"a", "b"}})
	})
	url, cancel, done := serveFast(t, d, Options{})

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(url + "/fast")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "GET /fast", string(body))
	assert.Equal(t, []string{"a", "b"}, resp.Header.Values("X-Multi"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("fasthttp server did not shut down")
	}
}

func serveFast(t *testing.T, d Dispatcher, opts Options) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeFastHTTP(ctx, ln, d, opts) }()
	return "http://" + ln.Addr().String(), cancel, done
}

func TestFastHTTPStallTimeout(t *testing.T) {
	d := DispatcherFunc(func(*request.Request, *response.Response) {})
	url, cancel, done := serveFast(t, d, Options{StallTimeout: 30 * time.Millisecond})

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(url + "/stall")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	cancel()
	assert.NoError(t, <-done)
}

func TestFastHTTPShutdownReleasesStalledHandler(t *testing.T) {
	got := make(chan *response.Response, 1)
	d := DispatcherFunc(func(_ *request.Request, res *response.Response) {
		got <- res
	})
	url, cancel, done := serveFast(t, d, Options{ShutdownTimeout: 5 * time.Second})

	client := &http.Client{
		Timeout:   100 * time.Millisecond,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	_, err := client.Get(url + "/stall")
	require.Error(t, err)

	res := <-got
	assert.False(t, res.Finalized(), "held until shutdown without a stall timeout")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("fasthttp shutdown blocked by a stalled handler")
	}
	assert.True(t, res.Finalized())
	assert.Equal(t, http.StatusServiceUnavailable, res.Status())
}
