package dashboard

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tanmay/hyperbole/internal/response"
)

// RequestLog represents a single request answered by the server.
type RequestLog struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Status    int           `json:"status"`
	Latency   time.Duration `json:"latency_ns"`
	ClientIP  string        `json:"client_ip"`
	BytesIn   int64         `json:"bytes_in"`
	BytesOut  int64         `json:"bytes_out"`
}

// Filter narrows Search results. Zero fields match everything.
type Filter struct {
	Method string
	Status int
	// Path matches exactly or as a substring.
	Path string
}

func (f Filter) match(log RequestLog) bool {
	if f.Status > 0 && log.Status != f.Status {
		return false
	}
	if f.Method != "" && !strings.EqualFold(log.Method, f.Method) {
		return false
	}
	if f.Path != "" && !strings.Contains(log.Path, f.Path) {
		return false
	}
	return true
}

// Stats summarizes the logs currently held by a LogStore.
type Stats struct {
	Count        int     `json:"count"`
	ErrorRate    float64 `json:"error_rate"`
	NotFound     int     `json:"not_found"`
	Cancelled    int     `json:"cancelled"` // client left before a response was sent
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// LogStore is a thread-safe ring buffer for storing recent request logs
type LogStore struct {
	logs  []RequestLog
	mu    sync.RWMutex
	size  int
	index int
	count int
}

// NewLogStore creates a new LogStore with the specified capacity
func NewLogStore(capacity int) *LogStore {
	if capacity <= 0 {
		capacity = 1000 // default capacity
	}
	return &LogStore{
		logs: make([]RequestLog, capacity),
		size: capacity,
	}
}

// Add inserts a new request log into the ring buffer
func (s *LogStore) Add(log RequestLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[s.index] = log
	s.index = (s.index + 1) % s.size
	if s.count < s.size {
		s.count++
	}
}

// each visits held logs newest first until fn returns false. Caller holds
// at least the read lock.
func (s *LogStore) each(fn func(RequestLog) bool) {
	for i := 0; i < s.count; i++ {
		idx := s.index - 1 - i
		if idx < 0 {
			idx += s.size
		}
		if !fn(s.logs[idx]) {
			return
		}
	}
}

// Recent returns the n most recent request logs, ordered newest to oldest
func (s *LogStore) Recent(n int) []RequestLog {
	return s.Search(n, Filter{})
}

// GetByID retrieves a specific log by its ID
func (s *LogStore) GetByID(id string) (RequestLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found RequestLog
	ok := false
	s.each(func(log RequestLog) bool {
		if log.ID == id {
			found, ok = log, true
			return false
		}
		return true
	})
	return found, ok
}

// Search returns up to limit logs matching f, newest first.
func (s *LogStore) Search(limit int, f Filter) []RequestLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []RequestLog{}
	}
	result := make([]RequestLog, 0, min(limit, s.count))
	s.each(func(log RequestLog) bool {
		if f.match(log) {
			result = append(result, log)
		}
		return len(result) < limit
	})
	return result
}

// Stats computes a summary over every held log.
func (s *LogStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	var errors int
	var latency time.Duration
	s.each(func(log RequestLog) bool {
		st.Count++
		latency += log.Latency
		if log.Status >= 500 {
			errors++
		}
		switch log.Status {
		case http.StatusNotFound:
			st.NotFound++
		case response.StatusClientClosed:
			st.Cancelled++
		}
		return true
	})
	if st.Count > 0 {
		st.ErrorRate = float64(errors) / float64(st.Count)
		st.AvgLatencyMs = float64(latency) / float64(time.Millisecond) / float64(st.Count)
	}
	return st
}
