package internal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/forgeioc/pkg/logger"
	"github.com/dmitrymomot/forgeioc/pkg/session"
)

// Option configures the application.
type Option func(*App)

// WithConfigurers adds configurers that are not registered in the container.
// Values that do not implement Configurer are dropped with a warning when the
// app is built.
func WithConfigurers(configurers ...any) Option {
	return func(a *App) {
		a.configurers = append(a.configurers, configurers...)
	}
}

// WithMiddleware adds middleware as a configurer with the given priority.
// Negative priorities run outside the scope binder.
func WithMiddleware(priority int, mw ...func(http.Handler) http.Handler) Option {
	return func(a *App) {
		a.configurers = append(a.configurers, Middleware(priority, mw...))
	}
}

// WithController registers a controller constructor in the container.
//
// Example:
//
//	forgeioc.WithController(NewCart, forgeioc.ControllerDescriptor{Prefix: "/cart", Scope: "session"},
//	    forgeioc.Route(forgeioc.POST, "/items", "Add"),
//	    forgeioc.Route(forgeioc.GET, "/items", "List"),
//	)
func WithController(ctor any, desc ControllerDescriptor, routes ...RouteDescriptor) Option {
	return func(a *App) {
		if err := a.registry.Register(ctor, desc, routes...); err != nil {
			a.errs = append(a.errs, err)
		}
	}
}

// WithErrorHandler replaces the default {"detail": ...} error renderer.
//
// Example:
//
//	forgeioc.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
//	    http.Error(w, "something went wrong", http.StatusInternalServerError)
//	})
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) {
		if h != nil {
			a.errorHandler = h
		}
	}
}

// WithSessions enables server-side sessions. The session manager runs as an
// outer configurer and the session container scope follows the session.
//
// Example:
//
//	forgeioc.WithSessions(session.NewCacheStore(cache.NewMemory[session.Session]()),
//	    forgeioc.WithSessionSecure(true),
//	)
func WithSessions(store session.Store, opts ...SessionOption) Option {
	return func(a *App) {
		if store == nil {
			a.errs = append(a.errs, errors.New("sessions: nil store"))
			return
		}
		sm, err := NewSessionManager(store, opts...)
		if err != nil {
			a.errs = append(a.errs, err)
			return
		}
		a.sessionManager = sm
	}
}

// WithSessionIdleTTL sets how long a session scope may stay unused before
// it is closed. Defaults to 30 minutes.
func WithSessionIdleTTL(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.sessionIdleTTL = d
		}
	}
}

// WithHealthChecks enables liveness and readiness endpoints.
// Readiness always includes a "container" check.
//
// Example:
//
//	forgeioc.WithHealthChecks(
//	    forgeioc.WithReadinessCheck("redis", redis.Healthcheck(client)),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		a.configurers = append(a.configurers, newHealthConfigurer(opts...))
	}
}

// WithLogger creates a logger with a component name and optional extractors.
// Scope ids are always extracted.
//
// Example:
//
//	forgeioc.New(c,
//	    forgeioc.WithLogger("api", logger.Config{Level: "debug"}, middlewares.RequestIDExtractor()),
//	)
func WithLogger(component string, cfg logger.Config, extractors ...logger.ContextExtractor) Option {
	return func(a *App) {
		extractors = append(ScopeExtractors(), extractors...)
		a.logger = logger.New(cfg, extractors...).With("component", component)
	}
}

// WithCustomLogger sets a fully custom logger.
func WithCustomLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithWebSocketOrigin sets the origin check for websocket upgrades.
// By default only same-origin requests are upgraded.
func WithWebSocketOrigin(fn func(r *http.Request) bool) Option {
	return func(a *App) {
		a.upgrader.CheckOrigin = fn
	}
}

// WithWebSocketBuffers sets the websocket read and write buffer sizes.
func WithWebSocketBuffers(read, write int) Option {
	return func(a *App) {
		if read > 0 {
			a.upgrader.ReadBufferSize = read
		}
		if write > 0 {
			a.upgrader.WriteBufferSize = write
		}
	}
}

// WithShutdownHook registers a hook that runs after the server stops and
// before the container is drained.
func WithShutdownHook(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.shutdownHooks = append(a.shutdownHooks, fn)
		}
	}
}

// WithCloser registers a hook that runs after the container is drained.
// Use it for infrastructure that container-managed services depend on.
//
// Example:
//
//	forgeioc.WithCloser(redis.Shutdown(client))
func WithCloser(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, fn)
		}
	}
}

// WithRunOptions sets default run options. Options passed to Run win.
func WithRunOptions(opts ...RunOption) Option {
	return func(a *App) {
		a.runDefaults = append(a.runDefaults, opts...)
	}
}
