package internal_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/forgeioc/internal"
	"github.com/dmitrymomot/forgeioc/middlewares"
	"github.com/dmitrymomot/forgeioc/pkg/di"
)

// requestProbe is a request-scoped service that counts its own closing.
type requestProbe struct {
	closed *atomic.Int32
	id     string
}

func (p *requestProbe) Close() error {
	p.closed.Add(1)
	return nil
}

type probeController struct {
	probe *requestProbe
}

func newProbeController(p *requestProbe) *probeController {
	return &probeController{probe: p}
}

func (c *probeController) ID() map[string]string {
	return map[string]string{"id": c.probe.id}
}

func (c *probeController) Fail() error {
	return internal.ErrConflict("already exists")
}

func (c *probeController) Crash() string {
	panic("controller exploded")
}

func (c *probeController) Boom() error {
	return errors.New("database is on fire")
}

// newProbeContainer registers a request-scoped probe and returns its close counter.
func newProbeContainer(t *testing.T) (*di.Container, *atomic.Int32) {
	t.Helper()

	closed := &atomic.Int32{}
	c := di.New()
	require.NoError(t, c.Provide(func() *requestProbe {
		return &requestProbe{id: uuid.NewString(), closed: closed}
	}, di.WithLifetime(di.Request)))
	return c, closed
}

func probeRoutes() internal.Option {
	return internal.WithController(newProbeController, internal.ControllerDescriptor{Prefix: "/probe"},
		internal.Route(internal.GET, "/id", "ID"),
		internal.Route(internal.POST, "/fail", "Fail"),
		internal.Route(internal.GET, "/crash", "Crash"),
		internal.Route(internal.GET, "/boom", "Boom"),
	)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil container", func(t *testing.T) {
		t.Parallel()
		_, err := internal.New(nil)
		require.Error(t, err)
	})

	t.Run("no controllers", func(t *testing.T) {
		t.Parallel()
		_, err := internal.New(di.New())
		require.ErrorIs(t, err, internal.ErrNoControllers)
		require.EqualError(t, err, "no controllers were registered: ensure your controller types are registered")
	})

	t.Run("unknown method", func(t *testing.T) {
		t.Parallel()
		c, _ := newProbeContainer(t)
		_, err := internal.New(c, internal.WithController(newProbeController, internal.ControllerDescriptor{},
			internal.Route(internal.GET, "/", "Missing"),
		))
		require.ErrorIs(t, err, internal.ErrInvalidRoute)
	})

	t.Run("duplicate route", func(t *testing.T) {
		t.Parallel()
		c, _ := newProbeContainer(t)
		_, err := internal.New(c, internal.WithController(newProbeController, internal.ControllerDescriptor{},
			internal.Route(internal.GET, "/", "ID"),
			internal.Route(internal.GET, "/", "Fail"),
		))
		require.ErrorIs(t, err, internal.ErrDuplicateRoute)
	})

	t.Run("invalid scope", func(t *testing.T) {
		t.Parallel()
		c, _ := newProbeContainer(t)
		_, err := internal.New(c, internal.WithController(newProbeController,
			internal.ControllerDescriptor{Scope: "galaxy"},
			internal.Route(internal.GET, "/", "ID"),
		))
		require.ErrorIs(t, err, internal.ErrInvalidScope)
	})

	t.Run("routes table", func(t *testing.T) {
		t.Parallel()
		c, _ := newProbeContainer(t)
		app, err := internal.New(c, probeRoutes())
		require.NoError(t, err)

		routes := app.Routes()
		require.Len(t, routes, 4)
		assert.Equal(t, internal.GET, routes[0].Verb)
		assert.Equal(t, "/probe/id", routes[0].Pattern)
		assert.Equal(t, "*internal_test.probeController.ID", routes[0].Name)
		assert.Empty(t, routes[0].Params)
	})
}

func TestApp_RequestScope(t *testing.T) {
	t.Parallel()

	c, closed := newProbeContainer(t)
	app, err := internal.New(c, probeRoutes())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for range 3 {
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe/id", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		decodeJSON(t, rec, &body)
		require.NotEmpty(t, body["id"])
		require.False(t, seen[body["id"]], "request scope reused an instance")
		seen[body["id"]] = true
	}

	require.Equal(t, int32(3), closed.Load())
	require.Zero(t, c.LiveScopes(di.Request))
}

func TestApp_CleanupBeforeErrorRendering(t *testing.T) {
	t.Parallel()

	newApp := func(t *testing.T) (*internal.App, *atomic.Int32, *atomic.Int32) {
		t.Helper()
		c, closed := newProbeContainer(t)
		closedAtRender := &atomic.Int32{}
		closedAtRender.Store(-1)

		app, err := internal.New(c,
			probeRoutes(),
			internal.WithConfigurers(internal.Middleware(-200, middlewares.Recover())),
			internal.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				closedAtRender.Store(closed.Load())
				code := http.StatusInternalServerError
				if httpErr := internal.AsHTTPError(err); httpErr != nil {
					code = httpErr.StatusCode()
				}
				w.WriteHeader(code)
			}),
		)
		require.NoError(t, err)
		return app, closed, closedAtRender
	}

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "http error", method: http.MethodPost, path: "/probe/fail", status: http.StatusConflict},
		{name: "plain error", method: http.MethodGet, path: "/probe/boom", status: http.StatusInternalServerError},
		{name: "panic", method: http.MethodGet, path: "/probe/crash", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			app, _, closedAtRender := newApp(t)

			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			require.Equal(t, tt.status, rec.Code)
			// The controller resolved the probe, so it was closed before rendering.
			require.Equal(t, int32(1), closedAtRender.Load())
			require.Zero(t, app.Container().LiveScopes(di.Request))
		})
	}
}

// lingerController starts work that ignores cancellation and notes whether
// its request-scoped probe was already closed when the work ended.
type lingerController struct {
	probe    *requestProbe
	finished chan int32
}

func (c *lingerController) Linger(context.Context) internal.Future {
	return internal.Async(func() (any, error) {
		time.Sleep(100 * time.Millisecond)
		c.finished <- c.probe.closed.Load()
		return "done", nil
	})
}

func TestApp_CancelledRequestWaitsForAsync(t *testing.T) {
	t.Parallel()

	c, closed := newProbeContainer(t)
	finished := make(chan int32, 1)
	app, err := internal.New(c,
		internal.WithController(func(p *requestProbe) *lingerController {
			return &lingerController{probe: p, finished: finished}
		}, internal.ControllerDescriptor{Prefix: "/linger"},
			internal.Route(internal.GET, "", "Linger"),
		),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/linger", nil).WithContext(ctx))

	select {
	case closedWhileRunning := <-finished:
		require.Zero(t, closedWhileRunning, "request scope closed under running work")
	default:
		t.Fatal("request returned before the async work finished")
	}
	require.Equal(t, int32(1), closed.Load())
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Zero(t, c.LiveScopes(di.Request))
}

func TestApp_DefaultErrorHandler(t *testing.T) {
	t.Parallel()

	c, _ := newProbeContainer(t)
	app, err := internal.New(c, probeRoutes())
	require.NoError(t, err)

	t.Run("http error detail", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/probe/fail", nil))

		require.Equal(t, http.StatusConflict, rec.Code)
		var body map[string]string
		decodeJSON(t, rec, &body)
		require.Equal(t, "already exists", body["detail"])
	})

	t.Run("internal error hidden", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe/boom", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotContains(t, rec.Body.String(), "fire")
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/probe/id", nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

// traceConfigurer records boot order and, per request, whether the request
// scope is visible at its layer.
type traceConfigurer struct {
	trace    *trace
	name     string
	priority int
}

type trace struct {
	boot    []string
	visible map[string]bool
	request []string
	mu      sync.Mutex
}

func newTrace() *trace {
	return &trace{visible: make(map[string]bool)}
}

func (c *traceConfigurer) Priority() int { return c.priority }

func (c *traceConfigurer) Configure(p *internal.Pipeline) {
	c.trace.boot = append(c.trace.boot, c.name)
	p.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := di.ScopeID(r.Context(), di.Request)
			c.trace.mu.Lock()
			c.trace.request = append(c.trace.request, c.name)
			c.trace.visible[c.name] = ok
			c.trace.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
}

// containerConfigurer is discovered from the container.
type containerConfigurer struct{ traceConfigurer }

func TestApp_ConfigurerOrder(t *testing.T) {
	t.Parallel()

	tr := newTrace()
	c, _ := newProbeContainer(t)
	require.NoError(t, c.Provide(func() *containerConfigurer {
		return &containerConfigurer{traceConfigurer{trace: tr, name: "discovered", priority: 5}}
	}))

	var nilConfigurer *traceConfigurer
	app, err := internal.New(c,
		probeRoutes(),
		internal.WithConfigurers(
			&traceConfigurer{trace: tr, name: "inner-10", priority: 10},
			&traceConfigurer{trace: tr, name: "outer-5", priority: -5},
			"not a configurer",
			nilConfigurer,
			&traceConfigurer{trace: tr, name: "inner-0", priority: 0},
			&traceConfigurer{trace: tr, name: "outer-20", priority: -20},
			&traceConfigurer{trace: tr, name: "inner-5", priority: 5},
		),
	)
	require.NoError(t, err)

	// Equal priorities keep discovery order: options before the container.
	want := []string{"outer-20", "outer-5", "inner-0", "inner-5", "discovered", "inner-10"}
	require.Equal(t, want, tr.boot)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe/id", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, want, tr.request)
	require.False(t, tr.visible["outer-20"])
	require.False(t, tr.visible["outer-5"])
	require.True(t, tr.visible["inner-0"])
	require.True(t, tr.visible["discovered"])
	require.True(t, tr.visible["inner-10"])
}

func TestApp_ConfigurerRoutes(t *testing.T) {
	t.Parallel()

	c, _ := newProbeContainer(t)
	app, err := internal.New(c,
		probeRoutes(),
		internal.WithConfigurers(internal.ConfigurerFunc(1, func(p *internal.Pipeline) {
			p.Route(func(r chi.Router) {
				r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
					_, _ = w.Write([]byte("1.0.0"))
				})
			})
		})),
	)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1.0.0", rec.Body.String())
}

func TestApp_Shutdown(t *testing.T) {
	t.Parallel()

	var (
		order []string
		mu    sync.Mutex
	)
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	c, _ := newProbeContainer(t)
	require.NoError(t, c.Provide(func() *singletonProbe {
		return &singletonProbe{onClose: func() { record("singleton") }}
	}, di.Eager()))
	require.NoError(t, c.RunStartupHooks(context.Background()))

	app, err := internal.New(c,
		probeRoutes(),
		internal.WithShutdownHook(func(context.Context) error {
			record("hook")
			if c.IsShutdown() {
				return errors.New("hook ran after drain")
			}
			return nil
		}),
		internal.WithCloser(func(context.Context) error {
			record("closer")
			if !c.IsShutdown() {
				return errors.New("closer ran before drain")
			}
			return nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, app.Shutdown(context.Background()))
	require.Equal(t, []string{"hook", "singleton", "closer"}, order)
	require.True(t, c.IsShutdown())

	// The drain hook is idempotent.
	require.NoError(t, app.ShutdownHook()(context.Background()))

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe/id", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type singletonProbe struct {
	onClose func()
}

func (s *singletonProbe) Close(context.Context) error {
	s.onClose()
	return nil
}
