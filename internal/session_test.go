package internal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/forgeioc/internal"
	"github.com/dmitrymomot/forgeioc/pkg/cache"
	"github.com/dmitrymomot/forgeioc/pkg/di"
	"github.com/dmitrymomot/forgeioc/pkg/session"
)

// basket is session-scoped: every request of one client sees the same one.
type basket struct {
	closed *atomic.Int32
	id     string
	items  []string
	mu     sync.Mutex
}

func (b *basket) Close() { b.closed.Add(1) }

type cartController struct {
	basket *basket
}

func newCartController(b *basket) *cartController {
	return &cartController{basket: b}
}

func (c *cartController) Add(item string) []string {
	c.basket.mu.Lock()
	defer c.basket.mu.Unlock()
	c.basket.items = append(c.basket.items, item)
	return append([]string{}, c.basket.items...)
}

func (c *cartController) List() []string {
	c.basket.mu.Lock()
	defer c.basket.mu.Unlock()
	return append([]string{}, c.basket.items...)
}

// Scopes reports the cart and the scope ids the request ran in.
func (c *cartController) Scopes(ctx context.Context) map[string]string {
	reqID, _ := di.ScopeID(ctx, di.Request)
	sessID, _ := di.ScopeID(ctx, di.Session)
	return map[string]string{"cart_id": c.basket.id, "request_scope": reqID, "session_scope": sessID}
}

func (c *cartController) Checkout(sess *session.Session) int {
	n := len(c.List())
	sess.Destroy()
	return n
}

func newCartApp(t *testing.T, opts ...internal.Option) (*internal.App, *httptest.Server, *atomic.Int32) {
	t.Helper()

	closed := &atomic.Int32{}
	c := di.New()
	require.NoError(t, c.Provide(func() *basket {
		return &basket{closed: closed, id: uuid.NewString()}
	}, di.WithLifetime(di.Session)))

	store := session.NewCacheStore(cache.NewMemory[session.Session]())
	opts = append([]internal.Option{
		internal.WithSessions(store),
		internal.WithController(newCartController, internal.ControllerDescriptor{Prefix: "/cart"},
			internal.Route(internal.POST, "/items/{item}", "Add"),
			internal.Route(internal.GET, "/items", "List"),
			internal.Route(internal.POST, "/checkout", "Checkout"),
			internal.Route(internal.GET, "/scopes", "Scopes"),
		),
	}, opts...)

	app, err := internal.New(c, opts...)
	require.NoError(t, err)

	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)
	return app, srv, closed
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func call(t *testing.T, client *http.Client, method, url string, dst any) int {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if dst != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp.StatusCode
}

func TestSessions_CartPerClient(t *testing.T) {
	t.Parallel()

	app, srv, _ := newCartApp(t)
	alice, bob := newClient(t), newClient(t)

	var items []string
	require.Equal(t, http.StatusOK, call(t, alice, http.MethodPost, srv.URL+"/cart/items/apple", &items))
	require.Equal(t, []string{"apple"}, items)
	require.Equal(t, http.StatusOK, call(t, alice, http.MethodPost, srv.URL+"/cart/items/pear", &items))
	require.Equal(t, []string{"apple", "pear"}, items)

	require.Equal(t, http.StatusOK, call(t, bob, http.MethodPost, srv.URL+"/cart/items/plum", &items))
	require.Equal(t, []string{"plum"}, items)

	require.Equal(t, http.StatusOK, call(t, alice, http.MethodGet, srv.URL+"/cart/items", &items))
	require.Equal(t, []string{"apple", "pear"}, items)

	// Session scopes outlive requests; request scopes do not.
	require.Equal(t, 2, app.Container().LiveScopes(di.Session))
	require.Zero(t, app.Container().LiveScopes(di.Request))
}

func TestSessions_ScopeIDs(t *testing.T) {
	t.Parallel()

	_, srv, _ := newCartApp(t)
	alice, bob := newClient(t), newClient(t)

	var first, second, other map[string]string
	require.Equal(t, http.StatusOK, call(t, alice, http.MethodGet, srv.URL+"/cart/scopes", &first))
	require.Equal(t, http.StatusOK, call(t, alice, http.MethodGet, srv.URL+"/cart/scopes", &second))
	require.Equal(t, http.StatusOK, call(t, bob, http.MethodGet, srv.URL+"/cart/scopes", &other))

	for _, ids := range []map[string]string{first, second, other} {
		require.NotEmpty(t, ids["cart_id"])
		require.NotEmpty(t, ids["request_scope"])
		require.NotEmpty(t, ids["session_scope"])
	}

	// One session: a fresh request scope each time, the same session scope and cart.
	require.NotEqual(t, first["request_scope"], second["request_scope"])
	require.Equal(t, first["session_scope"], second["session_scope"])
	require.Equal(t, first["cart_id"], second["cart_id"])

	require.NotEqual(t, first["session_scope"], other["session_scope"])
	require.NotEqual(t, first["cart_id"], other["cart_id"])
}

func TestSessions_DestroyEvictsScope(t *testing.T) {
	t.Parallel()

	app, srv, closed := newCartApp(t)
	client := newClient(t)

	var items []string
	call(t, client, http.MethodPost, srv.URL+"/cart/items/apple", &items)

	var count int
	require.Equal(t, http.StatusOK, call(t, client, http.MethodPost, srv.URL+"/cart/checkout", &count))
	require.Equal(t, 1, count)
	require.Equal(t, int32(1), closed.Load())
	require.Zero(t, app.Container().LiveScopes(di.Session))

	// The cookie was expired, so the next request starts an empty cart.
	require.Equal(t, http.StatusOK, call(t, client, http.MethodGet, srv.URL+"/cart/items", &items))
	require.Empty(t, items)
}

func TestSessions_IdleScopeEviction(t *testing.T) {
	t.Parallel()

	app, srv, closed := newCartApp(t, internal.WithSessionIdleTTL(50*time.Millisecond))
	client := newClient(t)

	var items []string
	call(t, client, http.MethodPost, srv.URL+"/cart/items/apple", &items)
	require.Equal(t, 1, app.Container().LiveScopes(di.Session))

	require.Eventually(t, func() bool {
		return closed.Load() == 1 && app.Container().LiveScopes(di.Session) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// The session survives, its scope starts over.
	require.Equal(t, http.StatusOK, call(t, client, http.MethodGet, srv.URL+"/cart/items", &items))
	require.Empty(t, items)
}

func TestSessions_DrainedOnShutdown(t *testing.T) {
	t.Parallel()

	app, srv, closed := newCartApp(t)

	var items []string
	call(t, newClient(t), http.MethodPost, srv.URL+"/cart/items/apple", &items)
	call(t, newClient(t), http.MethodPost, srv.URL+"/cart/items/pear", &items)

	srv.Close()
	require.NoError(t, app.Shutdown(t.Context()))
	require.Equal(t, int32(2), closed.Load())
}

func TestSessions_ScopeRequiresSessions(t *testing.T) {
	t.Parallel()

	c := di.New()
	require.NoError(t, c.Provide(func() *basket { return &basket{closed: &atomic.Int32{}} }, di.WithLifetime(di.Session)))
	app, err := internal.New(c, internal.WithController(newCartController, internal.ControllerDescriptor{},
		internal.Route(internal.GET, "/items", "List"),
	))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
