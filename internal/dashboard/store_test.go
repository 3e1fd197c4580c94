package dashboard

import (
	"strconv"
	"testing"
	"time"

	"github.com/tanmay/hyperbole/internal/response"
)

func TestLogStoreRingBuffer(t *testing.T) {
	store := NewLogStore(3)

	// Add 1st item
	store.Add(RequestLog{ID: "1"})
	if store.count != 1 {
		t.Errorf("Expected count 1, got %d", store.count)
	}

	// Add 2nd and 3rd items
	store.Add(RequestLog{ID: "2"})
	store.Add(RequestLog{ID: "3"})

	recent := store.Recent(5)
	if len(recent) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(recent))
	}
	if recent[0].ID != "3" || recent[1].ID != "2" || recent[2].ID != "1" {
		t.Errorf("Expected order 3, 2, 1, got %s, %s, %s", recent[0].ID, recent[1].ID, recent[2].ID)
	}

	// Add 4th item (should evict 1st)
	store.Add(RequestLog{ID: "4"})

	if store.count != 3 {
		t.Errorf("Expected count to stay at 3, got %d", store.count)
	}

	recent = store.Recent(3)
	if recent[0].ID != "4" || recent[1].ID != "3" || recent[2].ID != "2" {
		t.Errorf("Expected order 4, 3, 2, got %s, %s, %s", recent[0].ID, recent[1].ID, recent[2].ID)
	}

	if got := store.Recent(0); len(got) != 0 {
		t.Errorf("Expected no items for Recent(0), got %d", len(got))
	}
}

func TestLogStoreSearchAndGet(t *testing.T) {
	store := NewLogStore(10)

	store.Add(RequestLog{ID: "1", Method: "GET", Status: 200, Path: "/api/users", Latency: 50 * time.Millisecond})
	store.Add(RequestLog{ID: "2", Method: "POST", Status: 500, Path: "/api/orders", Latency: 120 * time.Millisecond})
	store.Add(RequestLog{ID: "3", Method: "GET", Status: 200, Path: "/api/users/1", Latency: 45 * time.Millisecond})
	store.Add(RequestLog{ID: "4", Method: "GET", Status: 404, Path: "/unknown", Latency: 10 * time.Millisecond})

	log, found := store.GetByID("2")
	if !found || log.Path != "/api/orders" {
		t.Errorf("GetByID failed: found=%v, path=%s", found, log.Path)
	}

	if _, found = store.GetByID("999"); found {
		t.Errorf("GetByID should not find non-existent ID")
	}

	if results := store.Search(10, Filter{Status: 200}); len(results) != 2 {
		t.Errorf("Expected 2 results with status 200, got %d", len(results))
	}

	if results := store.Search(10, Filter{Path: "/api/orders"}); len(results) != 1 {
		t.Errorf("Expected 1 result with path /api/orders, got %d", len(results))
	}

	if results := store.Search(10, Filter{Method: "post"}); len(results) != 1 || results[0].ID != "2" {
		t.Errorf("Expected only log 2 for method POST, got %v", results)
	}

	for i := 5; i < 15; i++ {
		store.Add(RequestLog{ID: strconv.Itoa(i), Status: 200, Path: "/spam"})
	}

	if results := store.Search(5, Filter{Status: 200, Path: "/spam"}); len(results) != 5 {
		t.Errorf("Expected limit 5 to be respected, got %d", len(results))
	}
}

func TestLogStoreStats(t *testing.T) {
	store := NewLogStore(10)
	if st := store.Stats(); st.Count != 0 || st.ErrorRate != 0 {
		t.Errorf("Expected empty stats, got %+v", st)
	}

	store.Add(RequestLog{Status: 200, Latency: 10 * time.Millisecond})
	store.Add(RequestLog{Status: 500, Latency: 30 * time.Millisecond})
	store.Add(RequestLog{Status: 404, Latency: 20 * time.Millisecond})
	store.Add(RequestLog{Status: 200, Latency: 20 * time.Millisecond})
	store.Add(RequestLog{Status: response.StatusClientClosed, Latency: 20 * time.Millisecond})

	st := store.Stats()
	if st.Count != 5 {
		t.Errorf("Expected count 5, got %d", st.Count)
	}
	if st.ErrorRate != 0.2 {
		t.Errorf("Expected error rate 0.2, got %f", st.ErrorRate)
	}
	if st.Cancelled != 1 {
		t.Errorf("Expected 1 cancelled, got %d", st.Cancelled)
	}
	if st.NotFound != 1 {
		t.Errorf("Expected 1 not found, got %d", st.NotFound)
	}
	if st.AvgLatencyMs != 20 {
		t.Errorf("Expected avg latency 20ms, got %f", st.AvgLatencyMs)
	}
}
