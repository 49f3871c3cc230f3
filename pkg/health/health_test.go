package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/forgeioc/pkg/health"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) health.Response {
	t.Helper()
	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	health.New().LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, health.StatusHealthy, decode(t, rec).Status)
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	t.Run("no checks", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		health.New().ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("all pass", func(t *testing.T) {
		t.Parallel()

		c := health.New()
		require.NoError(t, c.Add("a", func(context.Context) error { return nil }))
		require.NoError(t, c.Add("b", func(context.Context) error { return nil }))

		rec := httptest.NewRecorder()
		c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode(t, rec)
		require.Equal(t, health.StatusHealthy, resp.Status)
		require.Len(t, resp.Checks, 2)
	})

	t.Run("one fails", func(t *testing.T) {
		t.Parallel()

		c := health.New()
		require.NoError(t, c.Add("ok", func(context.Context) error { return nil }))
		require.NoError(t, c.Add("db", func(context.Context) error { return errors.New("down") }))

		rec := httptest.NewRecorder()
		c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decode(t, rec)
		require.Equal(t, health.StatusUnhealthy, resp.Status)
		require.Equal(t, health.StatusHealthy, resp.Checks["ok"].Status)
		require.Equal(t, "down", resp.Checks["db"].Error)
	})
}

func TestChecker_Timeout(t *testing.T) {
	t.Parallel()

	c := health.New(health.WithTimeout(10 * time.Millisecond))
	require.NoError(t, c.Add("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))

	resp := c.Run(context.Background())
	require.Equal(t, health.StatusUnhealthy, resp.Status)
	require.Equal(t, health.ErrCheckTimeout.Error(), resp.Checks["slow"].Error)
}

func TestChecker_Add_Duplicate(t *testing.T) {
	t.Parallel()

	c := health.New()
	require.NoError(t, c.Add("x", func(context.Context) error { return nil }))
	require.ErrorIs(t, c.Add("x", func(context.Context) error { return nil }), health.ErrDuplicateCheck)
}
