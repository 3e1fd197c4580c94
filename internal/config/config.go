package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transport names accepted in server.transport.
const (
	TransportNetHTTP  = "nethttp"
	TransportFastHTTP = "fasthttp"
)

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Port            int    `yaml:"port"`
	Transport       string `yaml:"transport"`        // "nethttp" or "fasthttp"
	StallTimeout    string `yaml:"stall_timeout"`    // e.g. "30s"; empty or "0" waits forever
	ShutdownTimeout string `yaml:"shutdown_timeout"` // e.g. "10s"
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	APIKeys   []string `yaml:"api_keys"`
	JWTSecret string   `yaml:"jwt_secret"`
}

// Enabled reports whether any credential is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0 || a.JWTSecret != ""
}

// RateLimitConfig holds per-client rate limiter settings.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// DashboardConfig holds request log dashboard settings.
type DashboardConfig struct {
	Enabled     bool `yaml:"enabled"`
	LogCapacity int  `yaml:"log_capacity"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CircuitBreakerConfig holds per-route circuit breaker settings.
type CircuitBreakerConfig struct {
	Threshold int    `yaml:"threshold"` // consecutive 5xx before opening; 0 disables
	Timeout   string `yaml:"timeout"`   // how long to stay open, e.g. "30s"
}

// AnalyticsConfig holds traffic analytics settings.
type AnalyticsConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Retention        string  `yaml:"retention"`         // bucket retention, e.g. "48h"
	AnalyzerInterval string  `yaml:"analyzer_interval"` // baseline recompute period, e.g. "5m"
	Window           string  `yaml:"window"`            // baseline lookback, e.g. "1h"
	ZScoreThreshold  float64 `yaml:"zscore_threshold"`
}

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth,omitempty"`
	RateLimit RateLimitConfig `yaml:"ratelimit,omitempty"`
	Dashboard DashboardConfig `yaml:"dashboard,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuitbreaker,omitempty"`
	Analytics      AnalyticsConfig      `yaml:"analytics,omitempty"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.Transport == "" {
		c.Server.Transport = TransportNetHTTP
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Dashboard.LogCapacity <= 0 {
		c.Dashboard.LogCapacity = 1000
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.CircuitBreaker.Timeout == "" {
		c.CircuitBreaker.Timeout = "30s"
	}
	if c.Analytics.Retention == "" {
		c.Analytics.Retention = "48h"
	}
	if c.Analytics.AnalyzerInterval == "" {
		c.Analytics.AnalyzerInterval = "5m"
	}
	if c.Analytics.Window == "" {
		c.Analytics.Window = "1h"
	}
	if c.Analytics.ZScoreThreshold <= 0 {
		c.Analytics.ZScoreThreshold = 3.0
	}
}

// applyEnv overrides file values with HYPERBOLE_* environment variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("HYPERBOLE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid HYPERBOLE_PORT %q", v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("HYPERBOLE_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("HYPERBOLE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("HYPERBOLE_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Server.Transport {
	case TransportNetHTTP, TransportFastHTTP:
	default:
		return errors.Newf("server.transport must be %q or %q, got %q",
			TransportNetHTTP, TransportFastHTTP, c.Server.Transport)
	}
	if _, err := c.StallTimeout(); err != nil {
		return err
	}
	if _, err := c.ShutdownTimeout(); err != nil {
		return err
	}
	if c.CircuitBreaker.Threshold < 0 {
		return errors.Newf("circuitbreaker.threshold must not be negative, got %d", c.CircuitBreaker.Threshold)
	}
	if _, err := c.CircuitBreakerTimeout(); err != nil {
		return err
	}
	if _, err := c.AnalyticsDurations(); err != nil {
		return err
	}
	return nil
}

// StallTimeout parses server.stall_timeout. Zero means no timeout.
func (c *Config) StallTimeout() (time.Duration, error) {
	return parseDuration("server.stall_timeout", c.Server.StallTimeout)
}

// ShutdownTimeout parses server.shutdown_timeout.
func (c *Config) ShutdownTimeout() (time.Duration, error) {
	return parseDuration("server.shutdown_timeout", c.Server.ShutdownTimeout)
}

// CircuitBreakerTimeout parses circuitbreaker.timeout.
func (c *Config) CircuitBreakerTimeout() (time.Duration, error) {
	return parseDuration("circuitbreaker.timeout", c.CircuitBreaker.Timeout)
}

// AnalyticsDurations holds the parsed analytics durations.
type AnalyticsDurations struct {
	Retention time.Duration
	Interval  time.Duration
	Window    time.Duration
}

// AnalyticsDurations parses the analytics section's durations.
func (c *Config) AnalyticsDurations() (AnalyticsDurations, error) {
	var (
		d   AnalyticsDurations
		err error
	)
	if d.Retention, err = parseDuration("analytics.retention", c.Analytics.Retention); err != nil {
		return d, err
	}
	if d.Interval, err = parseDuration("analytics.analyzer_interval", c.Analytics.AnalyzerInterval); err != nil {
		return d, err
	}
	if d.Window, err = parseDuration("analytics.window", c.Analytics.Window); err != nil {
		return d, err
	}
	return d, nil
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" || v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", field)
	}
	if d < 0 {
		return 0, errors.Newf("%s must not be negative", field)
	}
	return d, nil
}

// LoadConfig reads a YAML config file, applies a .env file if one exists in
// the working directory, then HYPERBOLE_* overrides and defaults.
// An empty filename skips the YAML file.
func LoadConfig(filename string) (*Config, error) {
	var cfg Config

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
