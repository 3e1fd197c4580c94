package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func recordN(s TrafficStore, route string, at time.Time, n, status int, latency time.Duration) {
	for i := 0; i < n; i++ {
		s.Record(TrafficEvent{
			Route:     route,
			Method:    "GET",
			Status:    status,
			Latency:   latency,
			BytesIn:   10,
			BytesOut:  100,
			Timestamp: at,
		})
	}
}

func TestStoreBucketsPerMinute(t *testing.T) {
	s := NewMemoryTrafficStore(time.Hour)
	recordN(s, "/a", base.Add(10*time.Second), 2, 200, 10*time.Millisecond)
	recordN(s, "/a", base.Add(50*time.Second), 1, 503, 40*time.Millisecond)
	recordN(s, "/a", base.Add(-time.Minute), 1, 200, 5*time.Millisecond)
	recordN(s, OtherRoute, base, 1, 404, time.Millisecond)

	buckets := s.GetBuckets("/a", base.Add(-time.Hour), base.Add(time.Hour))
	require.Len(t, buckets, 2)
	assert.Equal(t, base.Add(-time.Minute), buckets[0].Timestamp)

	b := buckets[1]
	assert.Equal(t, base, b.Timestamp)
	assert.Equal(t, 3, b.RequestCount)
	assert.Equal(t, 1, b.ErrorCount)
	assert.Equal(t, 20*time.Millisecond, b.AvgLatency())
	assert.Equal(t, 40*time.Millisecond, b.MaxLatency)
	assert.InDelta(t, 1.0/3, b.ErrorRate(), 1e-9)
	assert.Equal(t, int64(30), b.BytesIn)
	assert.Equal(t, int64(300), b.BytesOut)

	assert.Equal(t, []string{OtherRoute, "/a"}, s.GetRoutes())
	assert.Len(t, s.GetAllBuckets(base, base.Add(time.Minute)), 2)
	assert.Empty(t, s.GetBuckets("/missing", base.Add(-time.Hour), base.Add(time.Hour)))
}

func TestEmptyBucketRates(t *testing.T) {
	var b Bucket
	assert.Zero(t, b.AvgLatency())
	assert.Zero(t, b.ErrorRate())
}

func TestStoreCleanupDropsExpired(t *testing.T) {
	s := NewMemoryTrafficStore(time.Hour)
	recordN(s, "/old", base.Add(-2*time.Hour), 1, 200, time.Millisecond)
	recordN(s, "/new", base, 1, 200, time.Millisecond)

	s.cleanup(base)

	assert.Equal(t, []string{"/new"}, s.GetRoutes())
}
