package internal

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/forgeioc/pkg/di"
)

// Pipeline is the middleware stack and route table that configurers mutate.
// Middleware order is chi's: the first Use is the outermost layer. Routes are
// registered after the whole stack is assembled, so configurers may add
// routes and middleware in any order.
type Pipeline struct {
	container     *di.Container
	logger        *slog.Logger
	middlewares   []func(http.Handler) http.Handler
	routes        []func(chi.Router)
	shutdownHooks []func(context.Context) error
}

func newPipeline(c *di.Container, logger *slog.Logger) *Pipeline {
	return &Pipeline{container: c, logger: logger}
}

// Use appends middleware. Earlier middleware wraps later middleware.
func (p *Pipeline) Use(mw ...func(http.Handler) http.Handler) {
	for _, m := range mw {
		if m != nil {
			p.middlewares = append(p.middlewares, m)
		}
	}
}

// Route registers routes on the router behind the whole middleware stack.
func (p *Pipeline) Route(fn func(r chi.Router)) {
	if fn != nil {
		p.routes = append(p.routes, fn)
	}
}

// OnShutdown registers a hook that runs after the container is drained.
func (p *Pipeline) OnShutdown(fn func(context.Context) error) {
	if fn != nil {
		p.shutdownHooks = append(p.shutdownHooks, fn)
	}
}

// Container returns the application container.
func (p *Pipeline) Container() *di.Container {
	return p.container
}

// Logger returns the application logger.
func (p *Pipeline) Logger() *slog.Logger {
	return p.logger
}

// build assembles the chi router: middleware first, then routes.
func (p *Pipeline) build(notFound, methodNotAllowed http.HandlerFunc) chi.Router {
	r := chi.NewRouter()
	r.Use(p.middlewares...)
	if notFound != nil {
		r.NotFound(notFound)
	}
	if methodNotAllowed != nil {
		r.MethodNotAllowed(methodNotAllowed)
	}
	for _, fn := range p.routes {
		fn(r)
	}
	return r
}
