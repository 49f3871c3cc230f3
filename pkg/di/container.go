package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

const defaultDrainConcurrency = 16

var (
	errorType     = reflect.TypeFor[error]()
	contextType   = reflect.TypeFor[context.Context]()
	containerType = reflect.TypeFor[*Container]()
)

// provider describes how to build one registered type.
type provider struct {
	t        reflect.Type
	fn       reflect.Value
	value    any
	lifetime string
	deps     []reflect.Type
	supplied bool
	eager    bool
	noClose  bool
}

// Container resolves registered services and manages their scopes.
type Container struct {
	providers        map[reflect.Type]*provider
	root             *scopeCache
	scopes           *xsync.MapOf[scopeKey, *scopeCache]
	validated        *xsync.MapOf[reflect.Type, error]
	logger           *slog.Logger
	order            []reflect.Type
	startup          []func(context.Context) error
	drainConcurrency int
	mu               sync.RWMutex
	closed           atomic.Bool
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		providers:        make(map[reflect.Type]*provider),
		root:             newScopeCache(scopeKey{name: Singleton}),
		scopes:           xsync.NewMapOf[scopeKey, *scopeCache](),
		validated:        xsync.NewMapOf[reflect.Type, error](),
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		drainConcurrency: defaultDrainConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provide registers a constructor. The constructor's parameters are its
// dependencies and its first result is the registered type.
//
// Example:
//
//	c.Provide(func(cfg Config, log *slog.Logger) (*Service, error) { ... })
//	c.Provide(NewCart, di.WithLifetime(di.Session))
func (c *Container) Provide(ctor any, opts ...ProvideOption) error {
	fn := reflect.ValueOf(ctor)
	if ctor == nil || fn.Kind() != reflect.Func {
		return fmt.Errorf("%w: %T is not a function", ErrInvalidConstructor, ctor)
	}

	ft := fn.Type()
	switch {
	case ft.IsVariadic():
		return fmt.Errorf("%w: %s is variadic", ErrInvalidConstructor, ft)
	case ft.NumOut() == 1 && ft.Out(0) != errorType:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return fmt.Errorf("%w: %s must return T or (T, error)", ErrInvalidConstructor, ft)
	}

	p := &provider{
		t:        ft.Out(0),
		fn:       fn,
		lifetime: Singleton,
	}
	for i := range ft.NumIn() {
		p.deps = append(p.deps, ft.In(i))
	}
	for _, opt := range opts {
		opt(p)
	}

	return c.register(p)
}

// Supply registers an existing value as a singleton.
// Supplied values are not closed by the container.
func (c *Container) Supply(val any) error {
	if val == nil {
		return fmt.Errorf("%w: nil value", ErrInvalidConstructor)
	}
	return c.register(&provider{
		t:        reflect.TypeOf(val),
		value:    val,
		lifetime: Singleton,
		supplied: true,
		noClose:  true,
	})
}

func (c *Container) register(p *provider) error {
	if p.t == contextType || p.t == containerType {
		return fmt.Errorf("%w: %s is reserved", ErrInvalidConstructor, p.t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.providers[p.t]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, p.t)
	}
	c.providers[p.t] = p
	c.order = append(c.order, p.t)
	c.validated.Clear()
	return nil
}

// OnStartup registers a hook run by RunStartupHooks in registration order.
func (c *Container) OnStartup(fn func(context.Context) error) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startup = append(c.startup, fn)
}

// Has reports whether t is registered.
func (c *Container) Has(t reflect.Type) bool {
	_, ok := c.lookup(t)
	return ok
}

// Lifetime returns the registered lifetime of t.
func (c *Container) Lifetime(t reflect.Type) (string, bool) {
	p, ok := c.lookup(t)
	if !ok {
		return "", false
	}
	return p.lifetime, true
}

// Types returns the registered types in registration order.
func (c *Container) Types() []reflect.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Implementing returns registered types assignable to iface, in registration order.
func (c *Container) Implementing(iface reflect.Type) []reflect.Type {
	var out []reflect.Type
	for _, t := range c.Types() {
		if t.AssignableTo(iface) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Container) lookup(t reflect.Type) (*provider, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[t]
	return p, ok
}

// Resolve returns an instance of t. When scope is empty the registered lifetime
// is used; otherwise the instance is cached in the named scope active on ctx.
// Dependencies always use their own registered lifetime.
func (c *Container) Resolve(ctx context.Context, t reflect.Type, scope string) (any, error) {
	if c.closed.Load() {
		return nil, ErrShutdown
	}
	if err := c.validate(t); err != nil {
		return nil, err
	}
	return c.resolve(ctx, t, scope)
}

func (c *Container) resolve(ctx context.Context, t reflect.Type, scope string) (any, error) {
	switch t {
	case contextType:
		return ctx, nil
	case containerType:
		return c, nil
	}

	p, ok := c.lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	if p.supplied {
		return p.value, nil
	}
	if scope == "" {
		scope = p.lifetime
	}

	var sc *scopeCache
	switch scope {
	case Transient:
		return c.construct(ctx, p)
	case Singleton:
		sc = c.root
		ctx = context.WithoutCancel(ctx)
	default:
		id, ok := ScopeID(ctx, scope)
		if !ok {
			return nil, fmt.Errorf("%w: %s for %s", ErrScopeNotActive, scope, t)
		}
		sc, ok = c.scopes.Load(scopeKey{name: scope, id: id})
		if !ok {
			return nil, fmt.Errorf("%w: %s %s for %s", ErrScopeNotActive, scope, id, t)
		}
	}

	return sc.get(t, func() (any, error) {
		val, err := c.construct(ctx, p)
		if err != nil {
			return nil, err
		}
		if p.noClose {
			return val, nil
		}
		if cl := closerFor(val); cl != nil && !sc.track(cl) {
			_ = cl.Close(ctx)
			return nil, fmt.Errorf("%w: %s %s", ErrScopeClosed, sc.key.name, sc.key.id)
		}
		return val, nil
	})
}

func (c *Container) construct(ctx context.Context, p *provider) (any, error) {
	args := make([]reflect.Value, len(p.deps))
	for i, dep := range p.deps {
		val, err := c.resolve(ctx, dep, "")
		if err != nil {
			return nil, fmt.Errorf("resolve %s dependency of %s: %w", dep, p.t, err)
		}
		args[i] = valueOf(val, dep)
	}

	out := p.fn.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, fmt.Errorf("construct %s: %w", p.t, out[1].Interface().(error))
	}
	return out[0].Interface(), nil
}

// valueOf converts a resolved value to a call argument, keeping nil interfaces typed.
func valueOf(val any, t reflect.Type) reflect.Value {
	if val == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(val)
}

// validate checks the dependency graph of t once per registration set.
func (c *Container) validate(t reflect.Type) error {
	if err, ok := c.validated.Load(t); ok {
		return err
	}
	err := c.walk(t, nil)
	c.validated.Store(t, err)
	return err
}

func (c *Container) walk(t reflect.Type, path []reflect.Type) error {
	if t == contextType || t == containerType {
		return nil
	}
	if slices.Contains(path, t) {
		return fmt.Errorf("%w: %s", ErrDependencyCycle, formatPath(append(path, t)))
	}
	p, ok := c.lookup(t)
	if !ok {
		if len(path) == 0 {
			return fmt.Errorf("%w: %s", ErrNotRegistered, t)
		}
		return fmt.Errorf("%w: %s required by %s", ErrNotRegistered, t, path[len(path)-1])
	}

	next := append(path[:len(path):len(path)], t)
	for _, dep := range p.deps {
		if dp, ok := c.lookup(dep); ok && outlives(p.lifetime, dp.lifetime) {
			return fmt.Errorf("%w: %s (%s) depends on %s (%s)", ErrScopeMismatch, t, p.lifetime, dep, dp.lifetime)
		}
		if err := c.walk(dep, next); err != nil {
			return err
		}
	}
	return nil
}

func formatPath(path []reflect.Type) string {
	parts := make([]string, len(path))
	for i, t := range path {
		parts[i] = t.String()
	}
	return strings.Join(parts, " -> ")
}

// OpenScope activates the scope (name, id) and returns a context carrying it.
// Opening a scope that is already live reuses its instances, which is how a
// session scope spans several requests.
func (c *Container) OpenScope(ctx context.Context, name, id string) (context.Context, error) {
	if !isScoped(name) || id == "" {
		return ctx, fmt.Errorf("%w: %q/%q", ErrInvalidScope, name, id)
	}
	if c.closed.Load() {
		return ctx, ErrShutdown
	}

	key := scopeKey{name: name, id: id}
	if _, loaded := c.scopes.LoadOrCompute(key, func() *scopeCache { return newScopeCache(key) }); !loaded {
		c.logger.DebugContext(ctx, "scope opened", slog.String("scope", name), slog.String("scope_id", id))
	}
	return withScope(ctx, name, id), nil
}

// CloseScope releases the scope (name, id) and closes its instances.
// Only the first call for a given scope does any work.
func (c *Container) CloseScope(ctx context.Context, name, id string) error {
	sc, ok := c.scopes.LoadAndDelete(scopeKey{name: name, id: id})
	if !ok {
		return nil
	}
	err := sc.close(ctx)
	c.logger.DebugContext(ctx, "scope closed",
		slog.String("scope", name),
		slog.String("scope_id", id),
		slog.Int("instances", sc.size()),
	)
	return err
}

// LiveScopes returns the number of open scopes with the given name.
// An empty name counts scopes of every name.
func (c *Container) LiveScopes(name string) int {
	n := 0
	c.scopes.Range(func(k scopeKey, _ *scopeCache) bool {
		if name == "" || k.name == name {
			n++
		}
		return true
	})
	return n
}

// RunStartupHooks creates eager singletons and runs startup hooks in registration order.
// It stops at the first failure.
func (c *Container) RunStartupHooks(ctx context.Context) error {
	c.mu.RLock()
	hooks := slices.Clone(c.startup)
	var eager []reflect.Type
	for _, t := range c.order {
		if p := c.providers[t]; p.eager && p.lifetime == Singleton {
			eager = append(eager, t)
		}
	}
	c.mu.RUnlock()

	for _, t := range eager {
		if _, err := c.Resolve(ctx, t, ""); err != nil {
			return fmt.Errorf("%w: eager %s: %w", ErrStartupHook, t, err)
		}
	}
	for i, hook := range hooks {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("%w: hook %d: %w", ErrStartupHook, i, err)
		}
	}
	return nil
}

// IsShutdown reports whether DrainAndShutdown has been called.
func (c *Container) IsShutdown() bool {
	return c.closed.Load()
}

// DrainAndShutdown closes every live scope concurrently, then closes singletons
// in reverse creation order. Subsequent calls return nil.
func (c *Container) DrainAndShutdown(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var keys []scopeKey
	c.scopes.Range(func(k scopeKey, _ *scopeCache) bool {
		keys = append(keys, k)
		return true
	})

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(c.drainConcurrency)
	for _, k := range keys {
		g.Go(func() error {
			if err := c.CloseScope(ctx, k.name, k.id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("close %s scope %s: %w", k.name, k.id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := c.root.close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close singletons: %w", err))
	}

	c.logger.DebugContext(ctx, "container shut down", slog.Int("drained_scopes", len(keys)))
	return errors.Join(errs...)
}

// Resolve returns an instance of T using its registered lifetime.
func Resolve[T any](ctx context.Context, c *Container) (T, error) {
	var zero T
	val, err := c.Resolve(ctx, reflect.TypeFor[T](), "")
	if err != nil {
		return zero, err
	}
	typed, _ := val.(T)
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](ctx context.Context, c *Container) T {
	val, err := Resolve[T](ctx, c)
	if err != nil {
		panic(err)
	}
	return val
}
