package internal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/forgeioc/pkg/di"
	"github.com/dmitrymomot/forgeioc/pkg/health"
)

// Default health check paths.
const (
	defaultLivenessPath  = "/health/live"
	defaultReadinessPath = "/health/ready"

	// HealthPriority answers probes before sessions and scopes are set up.
	HealthPriority = -100
)

// CheckFunc is the health check function signature.
type CheckFunc = health.CheckFunc

// healthConfig holds health check endpoint configuration.
type healthConfig struct {
	checks        map[string]CheckFunc
	livenessPath  string
	readinessPath string
	timeout       time.Duration
}

// HealthOption configures health check endpoints.
type HealthOption func(*healthConfig)

// WithLivenessPath sets a custom liveness endpoint path.
// Defaults to "/health/live".
func WithLivenessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.livenessPath = path
		}
	}
}

// WithReadinessPath sets a custom readiness endpoint path.
// Defaults to "/health/ready".
func WithReadinessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.readinessPath = path
		}
	}
}

// WithReadinessCheck adds a named readiness check.
//
// Example:
//
//	forgeioc.WithReadinessCheck("redis", redis.Healthcheck(client))
func WithReadinessCheck(name string, fn CheckFunc) HealthOption {
	return func(c *healthConfig) {
		if fn != nil {
			c.checks[name] = fn
		}
	}
}

// WithHealthTimeout bounds a readiness run.
func WithHealthTimeout(d time.Duration) HealthOption {
	return func(c *healthConfig) {
		c.timeout = d
	}
}

// healthConfigurer serves the probes from the outer group, so they never
// open scopes or touch sessions.
type healthConfigurer struct {
	cfg *healthConfig
}

func newHealthConfigurer(opts ...HealthOption) *healthConfigurer {
	cfg := &healthConfig{
		checks:        make(map[string]CheckFunc),
		livenessPath:  defaultLivenessPath,
		readinessPath: defaultReadinessPath,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &healthConfigurer{cfg: cfg}
}

func (h *healthConfigurer) Priority() int { return HealthPriority }

func (h *healthConfigurer) Configure(p *Pipeline) {
	checker := health.New(health.WithLogger(p.Logger()), health.WithTimeout(h.cfg.timeout))
	_ = checker.Add("container", containerCheck(p.Container()))
	for name, fn := range h.cfg.checks {
		if err := checker.Add(name, fn); err != nil {
			p.Logger().Warn("skipping health check", slog.String("check", name), slog.Any("error", err))
		}
	}

	live, ready := checker.LivenessHandler(), checker.ReadinessHandler()
	p.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				switch r.URL.Path {
				case h.cfg.livenessPath:
					live(w, r)
					return
				case h.cfg.readinessPath:
					ready(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	})
}

func containerCheck(c *di.Container) CheckFunc {
	return func(context.Context) error {
		if c.IsShutdown() {
			return di.ErrShutdown
		}
		return nil
	}
}
