package internal

import (
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/dmitrymomot/forgeioc/pkg/di"
)

// Verb is the HTTP method of a route, or WEBSOCKET for upgrade endpoints.
type Verb string

const (
	GET       Verb = http.MethodGet
	POST      Verb = http.MethodPost
	PUT       Verb = http.MethodPut
	DELETE    Verb = http.MethodDelete
	PATCH     Verb = http.MethodPatch
	WEBSOCKET Verb = "WEBSOCKET"
)

var verbs = []Verb{GET, POST, PUT, DELETE, PATCH, WEBSOCKET}

// RouteDescriptor binds one controller method to a path.
type RouteDescriptor struct {
	Options map[string]any // extra route metadata, e.g. "status_code", "name", "summary"
	Verb    Verb
	Path    string
	Method  string   // Go method name on the controller
	Params  []string // names of scalar parameters, default: path placeholders in order
}

// Route is shorthand for a RouteDescriptor.
//
// Example:
//
//	forgeioc.Route(forgeioc.GET, "/{name}", "Greet")
func Route(verb Verb, path, method string, params ...string) RouteDescriptor {
	return RouteDescriptor{Verb: verb, Path: path, Method: method, Params: params}
}

// WithOption returns a copy of the descriptor with an extra option.
func (d RouteDescriptor) WithOption(key string, val any) RouteDescriptor {
	opts := make(map[string]any, len(d.Options)+1)
	for k, v := range d.Options {
		opts[k] = v
	}
	opts[key] = val
	d.Options = opts
	return d
}

// ControllerDescriptor holds metadata shared by every route of a controller.
type ControllerDescriptor struct {
	Responses    map[int]string
	Prefix       string
	Scope        string // container lifetime of the controller, default "request"
	Tags         []string
	Dependencies []func(http.Handler) http.Handler
}

// controller is a registered controller type with its validated routes.
type controller struct {
	typ    reflect.Type
	desc   ControllerDescriptor
	routes []boundRoute
}

// boundRoute is a route matched to its method and parameter plan.
type boundRoute struct {
	desc    RouteDescriptor
	method  reflect.Method
	pattern string
	key     string // "VERB /pattern" as served by the router
	plan    *paramPlan
	outputs outputShape
}

// Registry is the explicit controller table of one App. Registering a
// controller also provides its constructor to the container.
type Registry struct {
	container   *di.Container
	controllers []*controller
	patterns    map[string]string
}

// NewRegistry creates an empty registry bound to c.
func NewRegistry(c *di.Container) *Registry {
	return &Registry{container: c, patterns: make(map[string]string)}
}

// Register validates the routes against the constructor's result type and
// provides the constructor to the container with the descriptor's scope.
//
// Example:
//
//	reg.Register(NewCartController,
//	    forgeioc.ControllerDescriptor{Prefix: "/cart", Tags: []string{"cart"}},
//	    forgeioc.Route(forgeioc.POST, "/items/{item}", "AddItem"),
//	    forgeioc.Route(forgeioc.GET, "", "List"),
//	)
func (r *Registry) Register(ctor any, desc ControllerDescriptor, routes ...RouteDescriptor) error {
	ct := reflect.TypeOf(ctor)
	if ct == nil || ct.Kind() != reflect.Func || ct.NumOut() == 0 {
		return fmt.Errorf("%w: controller constructor must be a function, got %T", di.ErrInvalidConstructor, ctor)
	}
	typ := ct.Out(0)
	if typ.Kind() == reflect.Interface {
		return fmt.Errorf("%w: controller constructor must return a concrete type, got %s", di.ErrInvalidConstructor, typ)
	}

	if desc.Scope == "" {
		desc.Scope = di.Request
	}
	if !slices.Contains([]string{di.Singleton, di.Transient, di.Request, di.Session, di.WebSocket}, desc.Scope) {
		return fmt.Errorf("%w: %q for %s", ErrInvalidScope, desc.Scope, typ)
	}

	ctrl := &controller{typ: typ, desc: desc}
	seen := make(map[string]bool, len(routes))
	for _, rd := range routes {
		if desc.Scope == di.WebSocket && rd.Verb != WEBSOCKET {
			return fmt.Errorf("%w: websocket-scoped %s serves %s %s", ErrInvalidScope, typ, rd.Verb, rd.Path)
		}
		br, err := r.bind(ctrl, rd)
		if err != nil {
			return err
		}
		if seen[br.key] {
			return fmt.Errorf("%w: %s registered twice on %s", ErrDuplicateRoute, br.key, typ)
		}
		seen[br.key] = true
		ctrl.routes = append(ctrl.routes, br)
	}

	if err := r.container.Provide(ctor, di.WithLifetime(desc.Scope)); err != nil {
		return fmt.Errorf("register controller %s: %w", typ, err)
	}
	for _, br := range ctrl.routes {
		r.patterns[br.key] = typ.String() + "." + br.method.Name
	}
	r.controllers = append(r.controllers, ctrl)
	return nil
}

func (r *Registry) bind(ctrl *controller, rd RouteDescriptor) (boundRoute, error) {
	if !slices.Contains(verbs, rd.Verb) {
		return boundRoute{}, fmt.Errorf("%w: %s.%s: unsupported verb %q", ErrInvalidRoute, ctrl.typ, rd.Method, rd.Verb)
	}
	m, ok := ctrl.typ.MethodByName(rd.Method)
	if !ok {
		return boundRoute{}, fmt.Errorf("%w: %s has no exported method %q", ErrInvalidRoute, ctrl.typ, rd.Method)
	}

	pattern := joinPath(ctrl.desc.Prefix, rd.Path)
	key := string(rd.Verb) + " " + pattern
	if rd.Verb == WEBSOCKET {
		key = string(GET) + " " + pattern
	}
	if prev, dup := r.patterns[key]; dup {
		return boundRoute{}, fmt.Errorf("%w: %s already served by %s", ErrDuplicateRoute, key, prev)
	}

	plan, err := planParams(m, rd, pattern)
	if err != nil {
		return boundRoute{}, err
	}
	shape, err := shapeOf(m.Type)
	if err != nil {
		return boundRoute{}, fmt.Errorf("%w: %s.%s: %w", ErrInvalidRoute, ctrl.typ, rd.Method, err)
	}

	return boundRoute{desc: rd, method: m, pattern: pattern, key: key, plan: plan, outputs: shape}, nil
}

// discover returns the registered controllers the container still knows about.
func (r *Registry) discover() []*controller {
	var out []*controller
	for _, c := range r.controllers {
		if r.container.Has(c.typ) {
			out = append(out, c)
		}
	}
	return out
}

// joinPath concatenates a controller prefix and a route path.
func joinPath(prefix, path string) string {
	p := "/" + strings.Trim(prefix, "/")
	if path = strings.TrimPrefix(path, "/"); path != "" {
		p = strings.TrimSuffix(p, "/") + "/" + path
	}
	return p
}
