package analytics

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Anomaly is a route metric that moved more than the z-score threshold
// above its baseline.
type Anomaly struct {
	Route     string    `json:"route"`
	Metric    string    `json:"metric"` // "request_rate", "error_rate", "latency"
	Current   float64   `json:"current"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	ZScore    float64   `json:"z_score"`
	Timestamp time.Time `json:"timestamp"`
}

// RouteBaseline holds the baseline statistics for a single route.
type RouteBaseline struct {
	Route         string  `json:"route"`
	MeanRate      float64 `json:"mean_rate"` // requests per minute
	StdDevRate    float64 `json:"std_dev_rate"`
	MeanErrorRate float64 `json:"mean_error_rate"`
	StdDevError   float64 `json:"std_dev_error"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	StdDevLatency float64 `json:"std_dev_latency"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
	SampleSize    int     `json:"sample_size"` // buckets used
}

// AnalyzerConfig configures the traffic analyzer.
type AnalyzerConfig struct {
	Interval        time.Duration // how often to recompute baselines (default 5m)
	Window          time.Duration // how far back baselines look (default 1h)
	ZScoreThreshold float64       // anomaly threshold (default 3.0)
}

// Analyzer periodically computes per-route baselines from a TrafficStore and
// records anomalies for the last 24 hours.
type Analyzer struct {
	store     TrafficStore
	config    AnalyzerConfig
	log       *zap.Logger
	startTime time.Time

	mu        sync.RWMutex
	baselines map[string]*RouteBaseline
	anomalies []Anomaly
}

// NewAnalyzer creates an analyzer over store. A nil logger discards logs.
func NewAnalyzer(store TrafficStore, cfg AnalyzerConfig, log *zap.Logger) *Analyzer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.ZScoreThreshold <= 0 {
		cfg.ZScoreThreshold = 3.0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{
		store:     store,
		config:    cfg,
		log:       log,
		startTime: time.Now(),
		baselines: make(map[string]*RouteBaseline),
	}
}

// Start runs an analysis now and then every Interval until ctx is done.
func (a *Analyzer) Start(ctx context.Context) {
	a.analyze(time.Now())

	ticker := time.NewTicker(a.config.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.analyze(now)
			}
		}
	}()
}

// HasSufficientData reports whether the analyzer has run for a full window.
func (a *Analyzer) HasSufficientData() bool {
	return time.Since(a.startTime) >= a.config.Window
}

// GetRouteBaseline returns a copy of route's baseline, or nil if unknown.
func (a *Analyzer) GetRouteBaseline(route string) *RouteBaseline {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if b, ok := a.baselines[route]; ok {
		cp := *b
		return &cp
	}
	return nil
}

// GetAllRouteBaselines returns copies of every route baseline.
func (a *Analyzer) GetAllRouteBaselines() map[string]*RouteBaseline {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make(map[string]*RouteBaseline, len(a.baselines))
	for k, v := range a.baselines {
		cp := *v
		result[k] = &cp
	}
	return result
}

// GetRecentAnomalies returns anomalies detected in the last 24 hours.
func (a *Analyzer) GetRecentAnomalies() []Anomaly {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make([]Anomaly, len(a.anomalies))
	copy(result, a.anomalies)
	return result
}

// analyze recomputes baselines over [now-Window, now] and checks the most
// recent bucket of each route against them.
func (a *Analyzer) analyze(now time.Time) {
	allBuckets := a.store.GetAllBuckets(now.Add(-a.config.Window), now.Add(time.Nanosecond))

	a.mu.Lock()
	defer a.mu.Unlock()

	for route, buckets := range allBuckets {
		if len(buckets) < 2 {
			continue
		}

		rates := make([]float64, len(buckets))
		errorRates := make([]float64, len(buckets))
		latencies := make([]float64, len(buckets))
		for i, b := range buckets {
			rates[i] = float64(b.RequestCount)
			errorRates[i] = b.ErrorRate()
			latencies[i] = float64(b.AvgLatency()) / float64(time.Millisecond)
		}

		baseline := &RouteBaseline{
			Route:         route,
			MeanRate:      mean(rates),
			StdDevRate:    stddev(rates),
			MeanErrorRate: mean(errorRates),
			StdDevError:   stddev(errorRates),
			MeanLatencyMs: mean(latencies),
			StdDevLatency: stddev(latencies),
			P99LatencyMs:  percentile(latencies, 0.99),
			SampleSize:    len(buckets),
		}
		a.baselines[route] = baseline

		last := len(buckets) - 1
		a.checkAnomaly(now, route, "request_rate", rates[last], baseline.MeanRate, baseline.StdDevRate)
		a.checkAnomaly(now, route, "error_rate", errorRates[last], baseline.MeanErrorRate, baseline.StdDevError)
		a.checkAnomaly(now, route, "latency", latencies[last], baseline.MeanLatencyMs, baseline.StdDevLatency)
	}

	a.pruneAnomalies(now)
}

// checkAnomaly records current as an anomaly when its z-score exceeds the
// threshold. Must be called with the write lock held.
func (a *Analyzer) checkAnomaly(now time.Time, route, metric string, current, mean, stddev float64) {
	if stddev == 0 || mean == 0 {
		return
	}
	zScore := (current - mean) / stddev
	if zScore <= a.config.ZScoreThreshold {
		return
	}

	a.anomalies = append(a.anomalies, Anomaly{
		Route:     route,
		Metric:    metric,
		Current:   current,
		Mean:      mean,
		StdDev:    stddev,
		ZScore:    zScore,
		Timestamp: now,
	})
	a.log.Warn("traffic_anomaly",
		zap.String("route", route),
		zap.String("metric", metric),
		zap.Float64("current", current),
		zap.Float64("mean", mean),
		zap.Float64("z_score", zScore),
	)
}

// pruneAnomalies drops anomalies older than 24 hours. Must be called with
// the write lock held.
func (a *Analyzer) pruneAnomalies(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	kept := a.anomalies[:0]
	for _, anom := range a.anomalies {
		if !anom.Timestamp.Before(cutoff) {
			kept = append(kept, anom)
		}
	}
	a.anomalies = kept
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
