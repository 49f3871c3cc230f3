package internal

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseWriter_WriteHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK)

	require.Equal(t, http.StatusNotFound, rw.Status())
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.True(t, rw.Written())
}

func TestResponseWriter_Write(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, int64(5), rw.Size())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello", rec.Body.String())
}

func TestResponseWriter_OnBeforeWrite(t *testing.T) {
	t.Parallel()

	t.Run("hooks run once in order and may set headers", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		rw := NewResponseWriter(rec)

		var calls []string
		rw.OnBeforeWrite(func() {
			calls = append(calls, "first")
			rw.Header().Set("X-Hook", "yes")
		})
		rw.OnBeforeWrite(func() { calls = append(calls, "second") })

		rw.WriteHeader(http.StatusCreated)
		_, _ = rw.Write([]byte("body"))

		require.Equal(t, []string{"first", "second"}, calls)
		require.Equal(t, "yes", rec.Header().Get("X-Hook"))
	})

	t.Run("implicit write triggers hooks", func(t *testing.T) {
		t.Parallel()

		rw := NewResponseWriter(httptest.NewRecorder())
		called := false
		rw.OnBeforeWrite(func() { called = true })
		_, _ = rw.Write([]byte("x"))
		require.True(t, called)
	})
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
}

func (h hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	_ = client.Close()
	return server, bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server)), nil
}

func TestResponseWriter_Hijack(t *testing.T) {
	t.Parallel()

	t.Run("unsupported", func(t *testing.T) {
		t.Parallel()

		rw := NewResponseWriter(httptest.NewRecorder())
		_, _, err := rw.Hijack()
		require.ErrorIs(t, err, http.ErrNotSupported)
		require.False(t, rw.Hijacked())
	})

	t.Run("drops hooks and ignores later writes", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		rw := NewResponseWriter(hijackRecorder{rec})
		called := false
		rw.OnBeforeWrite(func() { called = true })

		conn, _, err := rw.Hijack()
		require.NoError(t, err)
		defer conn.Close()

		rw.WriteHeader(http.StatusInternalServerError)
		require.True(t, rw.Hijacked())
		require.False(t, called)
		require.False(t, rw.Written())
	})
}

type wrapped struct{ http.ResponseWriter }

func (w wrapped) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func TestResponseWriterFrom(t *testing.T) {
	t.Parallel()

	rw := NewResponseWriter(httptest.NewRecorder())

	got, ok := ResponseWriterFrom(wrapped{wrapped{rw}})
	require.True(t, ok)
	require.Same(t, rw, got)

	_, ok = ResponseWriterFrom(httptest.NewRecorder())
	require.False(t, ok)
}
