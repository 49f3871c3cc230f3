package internal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/forgeioc/pkg/di"
	"github.com/dmitrymomot/forgeioc/pkg/logger"
)

// Default server timeouts (hardcoded, opinionated).
const (
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second
)

// ErrorHandler renders an error that reached the transport.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// App is a container-backed HTTP application. Construction discovers
// configurers and controllers in the container, builds the middleware
// pipeline and mounts the synthesized routes. App is immutable after New.
type App struct {
	container      *di.Container
	registry       *Registry
	logger         *slog.Logger
	errorHandler   ErrorHandler
	handler        http.Handler
	upgrader       *websocket.Upgrader
	sessionManager *SessionManager
	sessions       *sessionScopes
	shutdown       *shutdownCoordinator
	configurers    []any
	routes         []RouteInfo
	shutdownHooks  []func(context.Context) error
	closers        []func(context.Context) error
	runDefaults    []RunOption
	errs           []error
	sessionIdleTTL time.Duration
}

// New builds the application around c.
//
// Example:
//
//	c := di.New()
//	app, err := forgeioc.New(c,
//	    forgeioc.WithController(NewGreeter, forgeioc.ControllerDescriptor{Prefix: "/greet"},
//	        forgeioc.Route(forgeioc.GET, "/{name}", "Hello", "name"),
//	    ),
//	)
func New(c *di.Container, opts ...Option) (*App, error) {
	if c == nil {
		return nil, errors.New("forgeioc: nil container")
	}

	a := &App{
		container:      c,
		registry:       NewRegistry(c),
		logger:         logger.NewNope(),
		errorHandler:   defaultErrorHandler,
		upgrader:       &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		sessionIdleTTL: defaultSessionIdleTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	if len(a.errs) > 0 {
		return nil, errors.Join(a.errs...)
	}

	ctx := context.Background()

	a.sessions = newSessionScopes(c, a.sessionIdleTTL, a.logger)
	if a.sessionManager != nil {
		a.sessionManager.scopes = a.sessions
		a.configurers = append(a.configurers, a.sessionManager)
	}
	a.shutdown = newShutdownCoordinator(c, a.sessions, a.logger)

	candidates := append(slices.Clone(a.configurers), discoverConfigurers(ctx, a)...)
	outer, inner := orderConfigurers(ctx, a.logger, candidates)

	p := newPipeline(c, a.logger)
	for _, cfg := range outer {
		cfg.Configure(p)
	}
	binder := &scopeBinder{container: c, sessions: a.sessions, logger: a.logger}
	p.Use(binder.middleware)
	for _, cfg := range inner {
		cfg.Configure(p)
	}

	mount, routes, err := a.synthesize(ctx)
	if err != nil {
		a.sessions.stop()
		return nil, err
	}
	p.Route(mount)

	a.handler = p.build(a.notFound, a.methodNotAllowed)
	a.routes = routes
	a.closers = append(p.shutdownHooks, a.closers...)

	a.logger.InfoContext(ctx, "application assembled",
		slog.Int("outer_configurers", len(outer)),
		slog.Int("inner_configurers", len(inner)),
		slog.Int("routes", len(routes)),
	)
	return a, nil
}

// ServeHTTP runs the pipeline. Errors recorded during the request are
// rendered once every middleware has unwound, so request-scoped cleanup
// always happens before the error reaches the client.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)
	slot := &errorSlot{}
	r = r.WithContext(context.WithValue(r.Context(), errorSlotKey{}, slot))

	a.handler.ServeHTTP(rw, r)

	if err := slot.get(); err != nil {
		a.handleError(rw, r, err)
		return
	}
	if !rw.Written() && !rw.Hijacked() {
		rw.WriteHeader(http.StatusOK)
	}
}

func (a *App) handleError(rw *ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	code := http.StatusInternalServerError
	if httpErr := AsHTTPError(err); httpErr != nil {
		code = httpErr.StatusCode()
	}
	if code >= http.StatusInternalServerError {
		a.logger.ErrorContext(ctx, "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	} else {
		a.logger.DebugContext(ctx, "request rejected",
			slog.Int("status", code),
			slog.Any("error", err),
		)
	}

	if rw.Written() || rw.Hijacked() {
		return
	}
	a.errorHandler(rw, r, err)
}

func (a *App) notFound(w http.ResponseWriter, r *http.Request) {
	recordError(w, r, ErrNotFound(""))
}

func (a *App) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	recordError(w, r, NewHTTPError(http.StatusMethodNotAllowed, ""))
}

// Routes returns the synthesized route table.
func (a *App) Routes() []RouteInfo {
	return slices.Clone(a.routes)
}

// Container returns the application container.
func (a *App) Container() *di.Container {
	return a.container
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// ShutdownHook returns the hook that closes websocket connections, stops
// session tracking and drains the container. It is idempotent.
func (a *App) ShutdownHook() func(context.Context) error {
	return a.shutdown.hook
}

// Shutdown runs the registered shutdown hooks, drains the container and
// then runs the closers. Use it when the app is served by a server that Run
// does not own; stop that server first.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range a.stopSequence() {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) stopSequence() []func(context.Context) error {
	hooks := slices.Clone(a.shutdownHooks)
	hooks = append(hooks, a.shutdown.hook)
	return append(hooks, a.closers...)
}

// Run starts the HTTP server and blocks until shutdown.
// Container startup hooks run before the listener opens. On shutdown the
// server stops first, then shutdown hooks run, then the container is
// drained, then closers such as the session store run.
//
// Example:
//
//	err := app.Run(forgeioc.Address(":8080"))
func (a *App) Run(opts ...RunOption) error {
	rs := newRunSettings(append(slices.Clone(a.runDefaults), opts...))
	if rs.log == nil {
		rs.log = a.logger
	}
	rs.onStart = append([]hookFunc{a.container.RunStartupHooks}, rs.onStart...)
	rs.onStop = append(rs.onStop, a.stopSequence()...)
	return serve(a, rs)
}

type errorSlotKey struct{}

// errorSlot holds the error recorded for a request. Outer middleware records
// after inner handlers return, so the latest error wins.
type errorSlot struct {
	mu  sync.Mutex
	err error
}

func (s *errorSlot) set(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *errorSlot) get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// recordError hands err to the app for rendering after the pipeline
// unwinds. Outside an App it renders immediately.
func recordError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	if slot, ok := r.Context().Value(errorSlotKey{}).(*errorSlot); ok {
		slot.set(err)
		return
	}
	defaultErrorHandler(w, r, err)
}

// RecordError lets middleware hand an error to the application's error
// handler instead of writing a response itself.
func RecordError(w http.ResponseWriter, r *http.Request, err error) {
	recordError(w, r, err)
}

// defaultErrorHandler writes {"detail": "..."}. Errors without an HTTP
// status become a 500 and their text is not exposed.
func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	code := http.StatusInternalServerError
	detail := http.StatusText(code)
	if httpErr := AsHTTPError(err); httpErr != nil {
		code = httpErr.StatusCode()
		detail = httpErr.Message
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
