package forgeioc

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/forgeioc/internal"
	"github.com/dmitrymomot/forgeioc/pkg/di"
	"github.com/dmitrymomot/forgeioc/pkg/logger"
	"github.com/dmitrymomot/forgeioc/pkg/session"
)

// Type aliases - public API
type (
	// App is a container-backed HTTP application.
	App = internal.App

	// Pipeline is the middleware stack and route table configurers mutate.
	Pipeline = internal.Pipeline

	// Configurer mutates the pipeline at boot.
	Configurer = internal.Configurer

	// Prioritizer orders configurers. Negative priorities run outside scopes.
	Prioritizer = internal.Prioritizer

	// Registry is the controller table of one App.
	Registry = internal.Registry

	// Verb is the HTTP method of a route, or WEBSOCKET.
	Verb = internal.Verb

	// RouteDescriptor binds one controller method to a path.
	RouteDescriptor = internal.RouteDescriptor

	// ControllerDescriptor holds metadata shared by a controller's routes.
	ControllerDescriptor = internal.ControllerDescriptor

	// RouteInfo describes a synthesized endpoint.
	RouteInfo = internal.RouteInfo

	// ParamInfo describes one exposed handler parameter.
	ParamInfo = internal.ParamInfo

	// Future is the execution contract of controller methods.
	Future = internal.Future

	// Responder writes its own response.
	Responder = internal.Responder

	// Dumper converts a domain value into its serializable form.
	Dumper = internal.Dumper

	// Result is an explicit body/status/headers triple.
	Result = internal.Result

	// Response is a raw response.
	Response = internal.Response

	// HTTPError is an error carrying an HTTP status code.
	HTTPError = internal.HTTPError

	// ErrorHandler renders an error that reached the transport.
	ErrorHandler = internal.ErrorHandler

	// ResponseWriter tracks writes and runs hooks before the first byte.
	ResponseWriter = internal.ResponseWriter

	// Option configures the application.
	Option = internal.Option

	// RunOption configures the server runtime.
	RunOption = internal.RunOption

	// HealthOption configures health check endpoints.
	HealthOption = internal.HealthOption

	// CheckFunc is a readiness check.
	CheckFunc = internal.CheckFunc

	// SessionOption configures the session manager.
	SessionOption = internal.SessionOption

	// SessionManager loads and persists sessions.
	SessionManager = internal.SessionManager

	// Session represents a user session.
	Session = session.Session

	// SessionStore defines the interface for session persistence.
	SessionStore = session.Store

	// ContextExtractor extracts a slog attribute from context.
	ContextExtractor = logger.ContextExtractor

	// Settings is the YAML application configuration.
	Settings = internal.Settings
)

// Route verbs.
const (
	GET       = internal.GET
	POST      = internal.POST
	PUT       = internal.PUT
	DELETE    = internal.DELETE
	PATCH     = internal.PATCH
	WEBSOCKET = internal.WEBSOCKET
)

// Container scope names usable as ControllerDescriptor.Scope.
const (
	ScopeSingleton = di.Singleton
	ScopeTransient = di.Transient
	ScopeRequest   = di.Request
	ScopeSession   = di.Session
	ScopeWebSocket = di.WebSocket
)

// Built-in configurer priorities.
const (
	HealthPriority  = internal.HealthPriority
	SessionPriority = internal.SessionPriority
)

// Errors
var (
	ErrNoControllers   = internal.ErrNoControllers
	ErrInvalidRoute    = internal.ErrInvalidRoute
	ErrInvalidParams   = internal.ErrInvalidParams
	ErrInvalidScope    = internal.ErrInvalidScope
	ErrDuplicateRoute  = internal.ErrDuplicateRoute
	ErrAppStopping     = internal.ErrAppStopping
	ErrInvalidSettings = internal.ErrInvalidSettings
)

// Constructors

// New builds the application around the container.
//
// Example:
//
//	c := di.New()
//	app, err := forgeioc.New(c,
//	    forgeioc.WithController(NewGreeter, forgeioc.ControllerDescriptor{Prefix: "/greet"},
//	        forgeioc.Route(forgeioc.GET, "/{name}", "Hello"),
//	    ),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = app.Run(forgeioc.Address(":8080"))
func New(c *di.Container, opts ...Option) (*App, error) {
	return internal.New(c, opts...)
}

// NewRegistry creates an empty controller registry bound to c.
func NewRegistry(c *di.Container) *Registry {
	return internal.NewRegistry(c)
}

// Route is shorthand for a RouteDescriptor. Scalar parameters are named by
// params or, when omitted, by the path placeholders in order.
func Route(verb Verb, path, method string, params ...string) RouteDescriptor {
	return internal.Route(verb, path, method, params...)
}

// ConfigurerFunc builds a Configurer from a function.
func ConfigurerFunc(priority int, fn func(p *Pipeline)) Configurer {
	return internal.ConfigurerFunc(priority, fn)
}

// Middleware wraps net/http middleware as a configurer.
//
// Example:
//
//	forgeioc.WithConfigurers(forgeioc.Middleware(-150, middlewares.RequestID()))
func Middleware(priority int, mw ...func(http.Handler) http.Handler) Configurer {
	return internal.Middleware(priority, mw...)
}

// Futures

// Resolved returns a Future that is already complete.
func Resolved(val any, err error) Future {
	return internal.Resolved(val, err)
}

// Async runs fn in its own goroutine and returns its Future.
func Async(fn func() (any, error)) Future {
	return internal.Async(fn)
}

// Responses

// NewResponse creates a raw response.
func NewResponse(status int, contentType string, body []byte) *Response {
	return internal.NewResponse(status, contentType, body)
}

// NoContent returns an empty 204 response.
func NoContent() *Response {
	return internal.NoContent()
}

// Redirect returns a redirect response.
func Redirect(status int, url string) *Response {
	return internal.Redirect(status, url)
}

// RecordError hands err to the application error handler. Middleware uses
// it instead of writing error responses itself.
func RecordError(w http.ResponseWriter, r *http.Request, err error) {
	internal.RecordError(w, r, err)
}

// WebSocketConn returns the connection of the websocket route being served.
var WebSocketConn = internal.WebSocketConn

// Errors

// NewHTTPError creates an HTTPError with the given status code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return internal.NewHTTPError(code, message)
}

// ErrBadRequest returns a 400 error.
func ErrBadRequest(message string) *HTTPError { return internal.ErrBadRequest(message) }

// ErrUnauthorized returns a 401 error.
func ErrUnauthorized(message string) *HTTPError { return internal.ErrUnauthorized(message) }

// ErrForbidden returns a 403 error.
func ErrForbidden(message string) *HTTPError { return internal.ErrForbidden(message) }

// ErrNotFound returns a 404 error.
func ErrNotFound(message string) *HTTPError { return internal.ErrNotFound(message) }

// ErrConflict returns a 409 error.
func ErrConflict(message string) *HTTPError { return internal.ErrConflict(message) }

// ErrUnprocessable returns a 422 error.
func ErrUnprocessable(message string) *HTTPError { return internal.ErrUnprocessable(message) }

// ErrInternal returns a 500 error.
func ErrInternal(message string) *HTTPError { return internal.ErrInternal(message) }

// ErrServiceUnavailable returns a 503 error.
func ErrServiceUnavailable(message string) *HTTPError {
	return internal.ErrServiceUnavailable(message)
}

// AsHTTPError returns the first HTTPError in err's chain, or nil.
func AsHTTPError(err error) *HTTPError {
	return internal.AsHTTPError(err)
}

// App options

// WithController registers a controller constructor in the container.
func WithController(ctor any, desc ControllerDescriptor, routes ...RouteDescriptor) Option {
	return internal.WithController(ctor, desc, routes...)
}

// WithConfigurers adds configurers that are not registered in the container.
func WithConfigurers(configurers ...any) Option {
	return internal.WithConfigurers(configurers...)
}

// WithMiddleware adds middleware as a configurer with the given priority.
func WithMiddleware(priority int, mw ...func(http.Handler) http.Handler) Option {
	return internal.WithMiddleware(priority, mw...)
}

// WithErrorHandler replaces the default {"detail": ...} error renderer.
func WithErrorHandler(h ErrorHandler) Option {
	return internal.WithErrorHandler(h)
}

// WithSessions enables server-side sessions backed by store.
func WithSessions(store SessionStore, opts ...SessionOption) Option {
	return internal.WithSessions(store, opts...)
}

// WithSessionIdleTTL sets how long a session scope may stay unused.
func WithSessionIdleTTL(d time.Duration) Option {
	return internal.WithSessionIdleTTL(d)
}

// WithHealthChecks enables liveness and readiness endpoints.
func WithHealthChecks(opts ...HealthOption) Option {
	return internal.WithHealthChecks(opts...)
}

// WithLogger creates a logger with a component name and optional extractors.
func WithLogger(component string, cfg logger.Config, extractors ...ContextExtractor) Option {
	return internal.WithLogger(component, cfg, extractors...)
}

// WithCustomLogger sets a fully custom logger.
func WithCustomLogger(l *slog.Logger) Option {
	return internal.WithCustomLogger(l)
}

// WithWebSocketOrigin sets the origin check for websocket upgrades.
func WithWebSocketOrigin(fn func(r *http.Request) bool) Option {
	return internal.WithWebSocketOrigin(fn)
}

// WithWebSocketBuffers sets the websocket read and write buffer sizes.
func WithWebSocketBuffers(read, write int) Option {
	return internal.WithWebSocketBuffers(read, write)
}

// WithShutdownHook registers a hook that runs before the container drain.
func WithShutdownHook(fn func(context.Context) error) Option {
	return internal.WithShutdownHook(fn)
}

// WithCloser registers a hook that runs after the container drain.
func WithCloser(fn func(context.Context) error) Option {
	return internal.WithCloser(fn)
}

// WithRunOptions sets default run options.
func WithRunOptions(opts ...RunOption) Option {
	return internal.WithRunOptions(opts...)
}

// Health options

// WithLivenessPath sets a custom liveness endpoint path.
func WithLivenessPath(path string) HealthOption {
	return internal.WithLivenessPath(path)
}

// WithReadinessPath sets a custom readiness endpoint path.
func WithReadinessPath(path string) HealthOption {
	return internal.WithReadinessPath(path)
}

// WithReadinessCheck adds a named readiness check.
func WithReadinessCheck(name string, fn CheckFunc) HealthOption {
	return internal.WithReadinessCheck(name, fn)
}

// WithHealthTimeout bounds a readiness run.
func WithHealthTimeout(d time.Duration) HealthOption {
	return internal.WithHealthTimeout(d)
}

// Session options

// WithSessionCookieName sets the session cookie name.
func WithSessionCookieName(name string) SessionOption {
	return internal.WithSessionCookieName(name)
}

// WithSessionMaxAge sets the session lifetime.
func WithSessionMaxAge(d time.Duration) SessionOption {
	return internal.WithSessionMaxAge(d)
}

// WithSessionDomain sets the session cookie domain.
func WithSessionDomain(domain string) SessionOption {
	return internal.WithSessionDomain(domain)
}

// WithSessionSecure sets the session cookie Secure flag.
func WithSessionSecure(secure bool) SessionOption {
	return internal.WithSessionSecure(secure)
}

// WithSessionSameSite sets the session cookie SameSite attribute.
func WithSessionSameSite(sameSite http.SameSite) SessionOption {
	return internal.WithSessionSameSite(sameSite)
}

// WithSessionSecret signs the session cookie.
func WithSessionSecret(secret string) SessionOption {
	return internal.WithSessionSecret(secret)
}

// Run options

// Address sets the HTTP server address.
func Address(addr string) RunOption {
	return internal.Address(addr)
}

// Logger sets the runtime logger.
func Logger(l *slog.Logger) RunOption {
	return internal.Logger(l)
}

// ShutdownTimeout bounds the whole shutdown.
func ShutdownTimeout(d time.Duration) RunOption {
	return internal.ShutdownTimeout(d)
}

// StartupHook registers a function that runs before the server listens.
func StartupHook(fn func(context.Context) error) RunOption {
	return internal.StartupHook(fn)
}

// ShutdownHook registers a cleanup function that runs before the container drain.
func ShutdownHook(fn func(context.Context) error) RunOption {
	return internal.ShutdownHook(fn)
}

// WithContext sets a custom base context for signal handling.
func WithContext(ctx context.Context) RunOption {
	return internal.WithContext(ctx)
}

// Helpers

// SessionFromContext returns the session of the current request.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	return session.FromContext(ctx)
}
