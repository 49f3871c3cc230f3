// Package redis opens and supervises go-redis clients for the session store
// and other shared state.
//
// Open validates the URL, applies pool and timeout settings from Config and
// pings the server, retrying with linear backoff:
//
//	client, err := redis.Open(ctx, redis.Config{
//		URL:           os.Getenv("REDIS_URL"),
//		RetryAttempts: 5,
//	})
//	if err != nil {
//		return err
//	}
//
// Healthcheck plugs into the readiness endpoint and Shutdown into the
// application's closers, which run after the container is drained:
//
//	app, err := forgeioc.New(c,
//		forgeioc.WithHealthChecks(forgeioc.WithReadinessCheck("redis", redis.Healthcheck(client))),
//		forgeioc.WithCloser(redis.Shutdown(client)),
//	)
package redis
