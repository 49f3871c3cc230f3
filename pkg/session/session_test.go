package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/forgeioc/pkg/cache"
	"github.com/dmitrymomot/forgeioc/pkg/session"
)

func TestSession_New(t *testing.T) {
	t.Parallel()

	sess := session.New("test-id", "test-token", time.Now().Add(time.Hour))

	require.Equal(t, "test-id", sess.ID)
	require.Equal(t, "test-token", sess.Token)
	require.True(t, sess.IsNew())
	require.True(t, sess.IsDirty())
	require.NotNil(t, sess.Values)
	require.False(t, sess.IsExpired())
}

func TestSession_Values(t *testing.T) {
	t.Parallel()

	sess := session.New("id", "token", time.Now().Add(time.Hour))
	sess.ClearDirty()

	sess.SetValue("key", "value")
	require.True(t, sess.IsDirty())

	val, ok := sess.GetValue("key")
	require.True(t, ok)
	require.Equal(t, "value", val)

	sess.ClearDirty()
	sess.DeleteValue("missing")
	require.False(t, sess.IsDirty(), "deleting a missing key keeps the session clean")

	sess.DeleteValue("key")
	require.True(t, sess.IsDirty())
	_, ok = sess.GetValue("key")
	require.False(t, ok)
}

func TestValue(t *testing.T) {
	t.Parallel()

	sess := session.New("id", "token", time.Now().Add(time.Hour))
	sess.SetValue("string", "hello")
	sess.SetValue("float", float64(42))
	sess.SetValue("items", []any{"apple", "pear"})

	t.Run("exact type", func(t *testing.T) {
		t.Parallel()

		v, err := session.Value[string](sess, "string")
		require.NoError(t, err)
		require.Equal(t, "hello", v)
	})

	t.Run("converted from decoded JSON", func(t *testing.T) {
		t.Parallel()

		n, err := session.Value[int](sess, "float")
		require.NoError(t, err)
		require.Equal(t, 42, n)

		items, err := session.Value[[]string](sess, "items")
		require.NoError(t, err)
		require.Equal(t, []string{"apple", "pear"}, items)
	})

	t.Run("mismatch", func(t *testing.T) {
		t.Parallel()

		_, err := session.Value[int](sess, "string")
		require.ErrorIs(t, err, session.ErrTypeMismatch)
		require.Equal(t, 7, session.ValueOr(sess, "string", 7))
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		_, err := session.Value[string](sess, "nope")
		require.ErrorIs(t, err, session.ErrNotFound)
		_, err = session.Value[string](nil, "key")
		require.ErrorIs(t, err, session.ErrNotFound)
	})
}

func TestCacheStore(t *testing.T) {
	t.Parallel()

	newStore := func(t *testing.T) *session.CacheStore {
		t.Helper()
		store := session.NewCacheStore(cache.NewMemory[session.Session]())
		t.Cleanup(func() { _ = store.Close() })
		return store
	}

	t.Run("create and get returns an independent copy", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		ctx := context.Background()

		sess := session.New("id", "tok", time.Now().Add(time.Hour))
		sess.SetValue("cart", []string{"apple"})
		require.NoError(t, store.Create(ctx, sess))

		got, err := store.Get(ctx, "tok")
		require.NoError(t, err)
		require.Equal(t, "id", got.ID)
		require.False(t, got.IsNew())
		require.False(t, got.IsDirty())

		got.SetValue("cart", []string{"pear"})
		again, err := store.Get(ctx, "tok")
		require.NoError(t, err)
		require.Equal(t, []string{"apple"}, session.ValueOr(again, "cart", []string(nil)))
	})

	t.Run("update persists values", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		ctx := context.Background()

		sess := session.New("id", "tok", time.Now().Add(time.Hour))
		require.NoError(t, store.Create(ctx, sess))
		sess.SetValue("n", 1)
		require.NoError(t, store.Update(ctx, sess))

		got, err := store.Get(ctx, "tok")
		require.NoError(t, err)
		require.Equal(t, 1, session.ValueOr(got, "n", 0))
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		ctx := context.Background()

		_, err := store.Get(ctx, "")
		require.ErrorIs(t, err, session.ErrInvalidToken)

		_, err = store.Get(ctx, "unknown")
		require.ErrorIs(t, err, session.ErrNotFound)

		expired := session.New("id", "old", time.Now().Add(-time.Second))
		require.ErrorIs(t, store.Create(ctx, expired), session.ErrExpired)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, session.New("id", "tok", time.Now().Add(time.Hour))))
		require.NoError(t, store.Delete(ctx, "tok"))

		_, err := store.Get(ctx, "tok")
		require.ErrorIs(t, err, session.ErrNotFound)
	})
}

func TestSession_Destroy(t *testing.T) {
	t.Parallel()

	sess := session.New("id", "tok", time.Now().Add(time.Hour))
	require.False(t, sess.IsDestroyed())
	sess.Destroy()
	require.True(t, sess.IsDestroyed())
}

func TestContext(t *testing.T) {
	t.Parallel()

	_, ok := session.FromContext(context.Background())
	require.False(t, ok)

	sess := session.New("id", "tok", time.Now().Add(time.Hour))
	got, ok := session.FromContext(session.WithContext(context.Background(), sess))
	require.True(t, ok)
	require.Same(t, sess, got)
}
