package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanmay/hyperbole/internal/router"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	store := NewLogStore(10)
	store.Add(RequestLog{ID: "a", Method: "GET", Status: 200, Path: "/"})
	store.Add(RequestLog{ID: "b", Method: "GET", Status: 404, Path: "/missing"})

	s := router.New()
	NewAPI(store, s.Routes).Register(s, "/_hyperbole")

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestAPILogs(t *testing.T) {
	ts := newTestAPI(t)

	var out struct {
		Logs []RequestLog `json:"logs"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/_hyperbole/logs", &out))
	require.Len(t, out.Logs, 2)
	assert.Equal(t, "b", out.Logs[0].ID)

	out.Logs = nil
	getJSON(t, ts.URL+"/_hyperbole/logs?status=404", &out)
	require.Len(t, out.Logs, 1)
	assert.Equal(t, "/missing", out.Logs[0].Path)
}

func TestAPILogByID(t *testing.T) {
	ts := newTestAPI(t)

	var log RequestLog
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/_hyperbole/logs?id=a", &log))
	assert.Equal(t, "/", log.Path)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/_hyperbole/logs?id=zzz", nil))
}

func TestAPIRoutesAndStats(t *testing.T) {
	ts := newTestAPI(t)

	var routes struct {
		Routes []string `json:"routes"`
	}
	getJSON(t, ts.URL+"/_hyperbole/routes", &routes)
	assert.Equal(t, []string{"/_hyperbole/logs", "/_hyperbole/stats", "/_hyperbole/routes"}, routes.Routes)

	var st Stats
	getJSON(t, ts.URL+"/_hyperbole/stats", &st)
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 1, st.NotFound)
}

func TestAPIRejectsNonGet(t *testing.T) {
	ts := newTestAPI(t)

	resp, err := http.Post(ts.URL+"/_hyperbole/stats", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
