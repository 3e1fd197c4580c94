package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanmay/hyperbole/internal/analytics"
	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

func TestTrafficRecordsByRegisteredRoute(t *testing.T) {
	store := analytics.NewMemoryTrafficStore(time.Hour)
	s := router.New(router.WithFallthroughNotFound())
	tr := NewTrafficRecorder(store, s.HasRoute)
	Chain(s, tr.Middleware())
	s.All("/api", func(_ *request.Request, res *response.Response, _ router.Next) error {
		return res.String(http.StatusBadGateway, "upstream down")
	})

	req := newReq(http.MethodPost, "/api")
	req.RawBody = []byte("ping")
	serve(s, req)
	serve(s, newReq(http.MethodGet, "/unknown/1"))
	serve(s, newReq(http.MethodGet, "/unknown/2"))

	var routes []string
	require.Eventually(t, func() bool {
		routes = store.GetRoutes()
		buckets := store.GetAllBuckets(time.Now().Add(-time.Hour), time.Now().Add(time.Minute))
		return len(buckets["/api"]) == 1 && len(buckets[analytics.OtherRoute]) == 1 &&
			buckets[analytics.OtherRoute][0].RequestCount == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{analytics.OtherRoute, "/api"}, routes)
	api := store.GetBuckets("/api", time.Now().Add(-time.Hour), time.Now().Add(time.Minute))[0]
	assert.Equal(t, 1, api.ErrorCount)
	assert.Equal(t, int64(4), api.BytesIn)
	assert.Equal(t, int64(len("upstream down")), api.BytesOut)
}

func TestNormalizeRouteWithoutLookup(t *testing.T) {
	tr := NewTrafficRecorder(analytics.NewMemoryTrafficStore(time.Hour), nil)
	assert.Equal(t, analytics.OtherRoute, tr.NormalizeRoute("/anything"))
}
