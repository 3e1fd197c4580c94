package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/tanmay/hyperbole/internal/analytics"
	"github.com/tanmay/hyperbole/internal/config"
	"github.com/tanmay/hyperbole/internal/dashboard"
	"github.com/tanmay/hyperbole/internal/health"
	"github.com/tanmay/hyperbole/internal/middleware"
	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

const dashboardPrefix = "/_hyperbole"

// buildServer registers the bundled middleware and routes on a new server.
// Registration order is the request order:
//
//	RequestID → Logging → Metrics → Capture → Traffic → /healthz, metrics
//	→ RateLimit → Auth → CircuitBreaker → dashboard and analytics APIs, demo routes
//
// Analytics background work stops when ctx is done.
func buildServer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*router.Server, error) {
	s, err := router.FromConfig(cfg, log, router.WithFallthroughNotFound())
	if err != nil {
		return nil, err
	}
	breakerTimeout, err := cfg.CircuitBreakerTimeout()
	if err != nil {
		return nil, err
	}
	durations, err := cfg.AnalyticsDurations()
	if err != nil {
		return nil, err
	}

	store := dashboard.NewLogStore(cfg.Dashboard.LogCapacity)

	var traffic *analytics.MemoryTrafficStore
	if cfg.Analytics.Enabled {
		traffic = analytics.NewMemoryTrafficStore(durations.Retention)
		traffic.StartCleanup(ctx)
	}

	middleware.Chain(s,
		middleware.RequestID(),
		middleware.Logging(log),
		when(cfg.Metrics.Enabled, middleware.Metrics),
		when(cfg.Dashboard.Enabled, func() router.HandlerFunc { return middleware.Capture(store) }),
		when(traffic != nil, func() router.HandlerFunc {
			return middleware.NewTrafficRecorder(traffic, s.HasRoute).Middleware()
		}),
	)

	// Health checks and scrapes skip rate limiting and auth.
	s.All("/healthz", health.NewChecker(s.Dispatcher().InFlight).Handler())
	if cfg.Metrics.Enabled {
		s.All(cfg.Metrics.Path, middleware.MetricsHandler())
	}

	middleware.Chain(s,
		when(cfg.RateLimit.RPS > 0, func() router.HandlerFunc {
			return middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware()
		}),
		when(cfg.Auth.Enabled(), func() router.HandlerFunc {
			return middleware.NewAuth(cfg.Auth.APIKeys, cfg.Auth.JWTSecret).Middleware()
		}),
		when(cfg.CircuitBreaker.Threshold > 0, func() router.HandlerFunc {
			return middleware.NewCircuitBreaker(cfg.CircuitBreaker.Threshold, breakerTimeout, s.HasRoute).Middleware()
		}),
	)

	if cfg.Dashboard.Enabled {
		dashboard.NewAPI(store, s.Routes).Register(s, dashboardPrefix)
	}
	if traffic != nil {
		analyzer := analytics.NewAnalyzer(traffic, analytics.AnalyzerConfig{
			Interval:        durations.Interval,
			Window:          durations.Window,
			ZScoreThreshold: cfg.Analytics.ZScoreThreshold,
		}, log)
		analyzer.Start(ctx)
		analytics.NewAPI(analyzer, traffic).Register(s, dashboardPrefix+"/analytics")
	}

	s.All("/", func(_ *request.Request, res *response.Response, _ router.Next) error {
		return res.String(http.StatusOK, "Hello World!")
	})
	s.All("/echo", func(req *request.Request, res *response.Response, _ router.Next) error {
		return res.JSON(http.StatusOK, map[string]any{
			"method": req.Method,
			"path":   req.Path,
			"body":   req.Body,
		})
	})
	return s, nil
}

// when returns build() if ok, otherwise nil, which Chain skips.
func when(ok bool, build func() router.HandlerFunc) router.HandlerFunc {
	if !ok {
		return nil
	}
	return build()
}
