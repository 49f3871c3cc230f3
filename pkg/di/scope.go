package di

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type scopeKey struct {
	name string
	id   string
}

// cell holds the single instance of one type within one scope.
type cell struct {
	val  any
	err  error
	once sync.Once
}

// scopeCache holds the instances created within one scope.
type scopeCache struct {
	cells   *xsync.MapOf[reflect.Type, *cell]
	closers []Closer
	key     scopeKey
	mu      sync.Mutex
	closed  bool
}

func newScopeCache(key scopeKey) *scopeCache {
	return &scopeCache{
		key:   key,
		cells: xsync.NewMapOf[reflect.Type, *cell](),
	}
}

// get returns the instance of t, creating it with build on first use.
// A failed build is not cached so the next resolution retries.
func (s *scopeCache) get(t reflect.Type, build func() (any, error)) (any, error) {
	c, _ := s.cells.LoadOrCompute(t, func() *cell { return &cell{} })
	c.once.Do(func() {
		c.val, c.err = build()
	})
	if c.err != nil {
		s.cells.Compute(t, func(old *cell, loaded bool) (*cell, bool) {
			return old, loaded && old == c
		})
	}
	return c.val, c.err
}

// track registers a closer for an instance created in this scope.
// Returns false when the scope is already closed.
func (s *scopeCache) track(cl Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closers = append(s.closers, cl)
	return true
}

// close runs closers in reverse creation order. Safe to call once per scope;
// later calls are no-ops.
func (s *scopeCache) close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for _, cl := range slices.Backward(closers) {
		if err := cl.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// size returns the number of instances held by the scope.
func (s *scopeCache) size() int {
	return s.cells.Size()
}

type bindingsKey struct{}

// bindings maps scope names to the scope ids active on a context.
// It is copied on write.
type bindings map[string]string

func withScope(ctx context.Context, name, id string) context.Context {
	prev, _ := ctx.Value(bindingsKey{}).(bindings)
	next := make(bindings, len(prev)+1)
	for k, v := range prev {
		next[k] = v
	}
	next[name] = id
	return context.WithValue(ctx, bindingsKey{}, next)
}

// ScopeID returns the id of the named scope active on ctx.
func ScopeID(ctx context.Context, name string) (string, bool) {
	b, _ := ctx.Value(bindingsKey{}).(bindings)
	id, ok := b[name]
	return id, ok
}
