// Package session provides cookie-addressed client sessions.
//
// A Session carries arbitrary values, timestamps, and an opaque Token used as
// the cookie value. Stores keep sessions by token; CacheStore works with any
// cache.Cache backend:
//
//	store := session.NewCacheStore(cache.NewMemory[session.Session]())
//
// Handlers read the current session from the request context:
//
//	sess, ok := session.FromContext(ctx)
//	items := session.ValueOr(sess, "cart", []string{})
//	sess.SetValue("cart", append(items, "apple"))
//
// Values round-tripped through a serializing backend such as Redis lose their
// Go types; Value converts them back through JSON.
package session
