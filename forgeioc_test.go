package forgeioc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/forgeioc"
	"github.com/dmitrymomot/forgeioc/pkg/di"
)

type clock struct{ now time.Time }

type greeter struct {
	clock *clock
}

func newGreeter(c *clock) *greeter { return &greeter{clock: c} }

func (g *greeter) Hello(name string) map[string]string {
	return map[string]string{"message": "hello " + name, "year": g.clock.now.Format("2006")}
}

func (g *greeter) Panic() string { panic("greeter is broken") }

func (g *greeter) Slow(ctx context.Context) forgeioc.Future {
	return forgeioc.Async(func() (any, error) {
		select {
		case <-time.After(time.Second):
			return "late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func newContainer(t *testing.T) *di.Container {
	t.Helper()
	c := di.New()
	require.NoError(t, c.Supply(&clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}))
	return c
}

func greeterController() forgeioc.Option {
	return forgeioc.WithController(newGreeter, forgeioc.ControllerDescriptor{Prefix: "/greet"},
		forgeioc.Route(forgeioc.GET, "/panic", "Panic"),
		forgeioc.Route(forgeioc.GET, "/slow", "Slow"),
		forgeioc.Route(forgeioc.GET, "/{name}", "Hello"),
	)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBootstrap(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
app:
  title: greeter
server:
  request_timeout: 50ms
session:
  enabled: true
logger:
  level: error
`)

	app, err := forgeioc.Bootstrap(context.Background(), newContainer(t), path, greeterController())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	t.Run("controller", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/greet/ada", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"message":"hello ada","year":"2026"}`, rec.Body.String())
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("request id is propagated", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/greet/ada", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)

		require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	})

	t.Run("panic is recovered", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/greet/panic", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.JSONEq(t, `{"detail":"Internal Server Error"}`, rec.Body.String())
	})

	t.Run("request timeout", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/greet/slow", nil))

		require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})

	t.Run("health", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBootstrap_Errors(t *testing.T) {
	t.Parallel()

	_, err := forgeioc.Bootstrap(context.Background(), newContainer(t), filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := writeConfig(t, "session:\n  store: tape\n")
	_, err = forgeioc.Bootstrap(context.Background(), newContainer(t), path, greeterController())
	require.ErrorIs(t, err, forgeioc.ErrInvalidSettings)

	_, err = forgeioc.Bootstrap(context.Background(), newContainer(t), writeConfig(t, ""))
	require.ErrorIs(t, err, forgeioc.ErrNoControllers)
}

func TestApp_Run(t *testing.T) {
	t.Parallel()

	c := newContainer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started, stopped bool
	app, err := forgeioc.New(c,
		greeterController(),
		forgeioc.WithRunOptions(forgeioc.Address("127.0.0.1:0")),
	)
	require.NoError(t, err)

	err = app.Run(
		forgeioc.WithContext(ctx),
		forgeioc.StartupHook(func(context.Context) error {
			started = true
			cancel()
			return nil
		}),
		forgeioc.ShutdownHook(func(context.Context) error {
			stopped = !c.IsShutdown()
			return nil
		}),
	)
	require.NoError(t, err)
	require.True(t, started)
	require.True(t, stopped, "shutdown hook must run before the container drains")
	require.True(t, c.IsShutdown())
}

func TestScopeConstants(t *testing.T) {
	t.Parallel()

	require.Equal(t, di.Request, forgeioc.ScopeRequest)
	require.Equal(t, di.Session, forgeioc.ScopeSession)
	require.Equal(t, di.WebSocket, forgeioc.ScopeWebSocket)
	require.Less(t, forgeioc.RecoverPriority, forgeioc.RequestIDPriority)
	require.Less(t, forgeioc.RequestIDPriority, forgeioc.HealthPriority)
	require.Less(t, forgeioc.SessionPriority, forgeioc.TimeoutPriority)
	require.Negative(t, forgeioc.TimeoutPriority)
}
