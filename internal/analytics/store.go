package analytics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// OtherRoute groups requests whose path has no exact registration, so
// arbitrary paths cannot grow the store without bound.
const OtherRoute = "*"

// TrafficEvent is a single finalized request captured by the traffic middleware.
type TrafficEvent struct {
	Route     string        // Registered path, or OtherRoute
	Method    string        // HTTP method
	Status    int           // Final status code
	Latency   time.Duration // Dispatch start to finalization
	BytesIn   int64         // Request body size
	BytesOut  int64         // Response body size
	ClientIP  string        // Client IP address
	Timestamp time.Time     // When the request was dispatched
}

// Bucket aggregates traffic for one route during a 1-minute window.
type Bucket struct {
	Route        string        `json:"route"`
	Timestamp    time.Time     `json:"timestamp"` // start of the 1-minute window
	RequestCount int           `json:"request_count"`
	ErrorCount   int           `json:"error_count"` // status >= 500
	TotalLatency time.Duration `json:"total_latency"`
	MaxLatency   time.Duration `json:"max_latency"`
	BytesIn      int64         `json:"bytes_in"`
	BytesOut     int64         `json:"bytes_out"`
}

// AvgLatency returns the mean latency for this bucket.
func (b *Bucket) AvgLatency() time.Duration {
	if b.RequestCount == 0 {
		return 0
	}
	return b.TotalLatency / time.Duration(b.RequestCount)
}

// ErrorRate returns the fraction of requests that were errors (5xx).
func (b *Bucket) ErrorRate() float64 {
	if b.RequestCount == 0 {
		return 0
	}
	return float64(b.ErrorCount) / float64(b.RequestCount)
}

// TrafficStore persists traffic events into time-bucketed aggregates.
type TrafficStore interface {
	// Record adds a single traffic event to the appropriate bucket.
	Record(event TrafficEvent)
	// GetBuckets returns buckets for a route within [from, to), sorted by time.
	GetBuckets(route string, from, to time.Time) []Bucket
	// GetAllBuckets returns buckets for all routes within [from, to).
	GetAllBuckets(from, to time.Time) map[string][]Bucket
	// GetRoutes returns all known route names.
	GetRoutes() []string
}

// MemoryTrafficStore is the in-memory TrafficStore, keyed by route then
// minute-truncated timestamp.
type MemoryTrafficStore struct {
	mu        sync.RWMutex
	routes    map[string]map[time.Time]*Bucket
	retention time.Duration
}

var _ TrafficStore = (*MemoryTrafficStore)(nil)

// NewMemoryTrafficStore creates a store keeping buckets for retention
// (default 48h).
func NewMemoryTrafficStore(retention time.Duration) *MemoryTrafficStore {
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	return &MemoryTrafficStore{
		routes:    make(map[string]map[time.Time]*Bucket),
		retention: retention,
	}
}

// Record adds event to its route's 1-minute bucket.
func (s *MemoryTrafficStore) Record(event TrafficEvent) {
	minute := event.Timestamp.Truncate(time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()

	buckets := s.routes[event.Route]
	if buckets == nil {
		buckets = make(map[time.Time]*Bucket)
		s.routes[event.Route] = buckets
	}
	b, ok := buckets[minute]
	if !ok {
		b = &Bucket{Route: event.Route, Timestamp: minute}
		buckets[minute] = b
	}
	b.RequestCount++
	b.TotalLatency += event.Latency
	if event.Latency > b.MaxLatency {
		b.MaxLatency = event.Latency
	}
	if event.Status >= 500 {
		b.ErrorCount++
	}
	b.BytesIn += event.BytesIn
	b.BytesOut += event.BytesOut
}

// GetBuckets returns sorted buckets for a single route within [from, to).
func (s *MemoryTrafficStore) GetBuckets(route string, from, to time.Time) []Bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collectBuckets(s.routes[route], from, to)
}

// GetAllBuckets returns buckets for all routes within [from, to).
func (s *MemoryTrafficStore) GetAllBuckets(from, to time.Time) map[string][]Bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]Bucket, len(s.routes))
	for route, bucketMap := range s.routes {
		if buckets := collectBuckets(bucketMap, from, to); len(buckets) > 0 {
			result[route] = buckets
		}
	}
	return result
}

// GetRoutes returns all known route names, sorted.
func (s *MemoryTrafficStore) GetRoutes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routes := make([]string, 0, len(s.routes))
	for route := range s.routes {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}

// collectBuckets filters and sorts buckets within [from, to).
// Must be called with at least a read lock held.
func collectBuckets(bucketMap map[time.Time]*Bucket, from, to time.Time) []Bucket {
	if bucketMap == nil {
		return nil
	}
	var result []Bucket
	for ts, b := range bucketMap {
		if !ts.Before(from) && ts.Before(to) {
			result = append(result, *b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

// StartCleanup prunes expired buckets every 10 minutes until ctx is done.
func (s *MemoryTrafficStore) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.cleanup(now)
			}
		}
	}()
}

// cleanup removes all buckets older than the retention period.
func (s *MemoryTrafficStore) cleanup(now time.Time) {
	cutoff := now.Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	for route, bucketMap := range s.routes {
		for ts := range bucketMap {
			if ts.Before(cutoff) {
				delete(bucketMap, ts)
			}
		}
		if len(bucketMap) == 0 {
			delete(s.routes, route)
		}
	}
}
