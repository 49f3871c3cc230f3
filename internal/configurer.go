package internal

import (
	"cmp"
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"slices"
)

// Configurer mutates the pipeline at boot: it adds middleware, routes or
// shutdown hooks. Configurers with a negative priority are outer hooks and
// run before any scope exists; the rest run inside the active scopes.
type Configurer interface {
	Configure(p *Pipeline)
}

// Prioritizer is implemented by configurers that need a non-zero priority.
// Lower priorities are applied first and sit closer to the transport.
type Prioritizer interface {
	Priority() int
}

// ConfigurerFunc builds a Configurer from a function.
//
// Example:
//
//	forgeioc.ConfigurerFunc(-10, func(p *forgeioc.Pipeline) {
//	    p.Use(middlewares.RequestID())
//	})
func ConfigurerFunc(priority int, fn func(p *Pipeline)) Configurer {
	return configurerFunc{priority: priority, fn: fn}
}

type configurerFunc struct {
	fn       func(p *Pipeline)
	priority int
}

func (c configurerFunc) Configure(p *Pipeline) { c.fn(p) }
func (c configurerFunc) Priority() int         { return c.priority }

// Middleware wraps net/http middleware as a configurer with the given priority.
func Middleware(priority int, mw ...func(http.Handler) http.Handler) Configurer {
	return ConfigurerFunc(priority, func(p *Pipeline) { p.Use(mw...) })
}

// PriorityOf returns the configurer's priority, 0 when it has none.
func PriorityOf(c Configurer) int {
	if p, ok := c.(Prioritizer); ok {
		return p.Priority()
	}
	return 0
}

var configurerType = reflect.TypeFor[Configurer]()

// discoverConfigurers returns the container-registered configurers in
// registration order. Types that fail to resolve are reported as nil
// candidates so validation drops them with a warning.
func discoverConfigurers(ctx context.Context, a *App) []any {
	var out []any
	for _, t := range a.container.Implementing(configurerType) {
		val, err := a.container.Resolve(ctx, t, "")
		if err != nil {
			a.logger.WarnContext(ctx, "discarding configurer: resolve failed",
				slog.String("type", t.String()),
				slog.Any("error", err),
			)
			continue
		}
		out = append(out, val)
	}
	return out
}

// orderConfigurers validates the candidates and splits them into outer
// (priority < 0) and inner groups, each sorted ascending. The sort is stable
// so equal priorities keep discovery order.
func orderConfigurers(ctx context.Context, logger *slog.Logger, candidates []any) (outer, inner []Configurer) {
	for i, cand := range candidates {
		c, ok := cand.(Configurer)
		if !ok || isNil(cand) {
			logger.WarnContext(ctx, "discarding invalid configurer",
				slog.Int("index", i),
				slog.String("type", typeName(cand)),
			)
			continue
		}
		if PriorityOf(c) < 0 {
			outer = append(outer, c)
		} else {
			inner = append(inner, c)
		}
	}

	byPriority := func(a, b Configurer) int { return cmp.Compare(PriorityOf(a), PriorityOf(b)) }
	slices.SortStableFunc(outer, byPriority)
	slices.SortStableFunc(inner, byPriority)
	return outer, inner
}

// isNil catches typed nil pointers hidden in interfaces.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
