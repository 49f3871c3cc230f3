// Package cache provides a generic TTL cache with in-memory and Redis backends.
//
// Both backends implement [Cache]. The in-memory backend additionally reports
// evictions through a callback, which makes it usable as an idle tracker: touch a
// key on every use and react when it expires.
//
// TTL semantics for Set and Touch:
//   - Positive duration: the entry expires after this duration
//   - Zero: the cache's default TTL is used
//   - Negative: the entry never expires
//
// # In-memory
//
//	c := cache.NewMemory[string](
//	    cache.WithDefaultTTL(30*time.Minute),
//	    cache.WithCleanupInterval(time.Minute),
//	)
//	c.OnEvict(func(key, val string, reason cache.EvictReason) {
//	    if reason == cache.EvictExpired {
//	        release(key)
//	    }
//	})
//	defer c.Close()
//
// # Redis
//
//	client, _ := redis.Open(ctx, redis.Config{URL: os.Getenv("REDIS_URL")})
//	c := cache.NewRedis[Session](client, nil, cache.WithPrefix("sessions"))
package cache
