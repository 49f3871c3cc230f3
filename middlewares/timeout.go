package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/forgeioc/internal"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 30 * time.Second

// TimeoutConfig configures the timeout middleware.
type TimeoutConfig struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

// TimeoutOption configures TimeoutConfig.
type TimeoutOption func(*TimeoutConfig)

// WithTimeoutLogger sets the logger for timed out requests.
func WithTimeoutLogger(l *slog.Logger) TimeoutOption {
	return func(cfg *TimeoutConfig) {
		cfg.Logger = l
	}
}

// Timeout returns middleware that puts a deadline on the request context.
// Handlers awaiting a Future or doing context-aware work stop at the
// deadline; the request then fails with 504 and a *TimeoutError cause,
// unless a response was already started.
//
// Websocket upgrades are not limited. Work that ignores the context keeps
// running after the deadline.
func Timeout(timeout time.Duration, opts ...TimeoutOption) func(http.Handler) http.Handler {
	cfg := &TimeoutConfig{
		Timeout: timeout,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), cfg.Timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}
			if rw, ok := internal.ResponseWriterFrom(w); ok && (rw.Written() || rw.Hijacked()) {
				return
			}
			if cfg.Logger != nil {
				cfg.Logger.WarnContext(r.Context(), "request timeout", slog.Duration("timeout", cfg.Timeout))
			}
			internal.RecordError(w, r, internal.NewHTTPError(http.StatusGatewayTimeout, "").
				WithCause(&TimeoutError{Path: r.URL.Path, Duration: cfg.Timeout}))
		})
	}
}
