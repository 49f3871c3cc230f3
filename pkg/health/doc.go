// Package health implements liveness and readiness probes.
//
// A Checker holds named CheckFunc values (the shape returned by
// redis.Healthcheck and the container state check) and runs them
// concurrently on every readiness request:
//
//	checker := health.New(health.WithTimeout(2 * time.Second))
//	_ = checker.Add("redis", redis.Healthcheck(client))
//
//	r.Get("/health/live", checker.LivenessHandler())
//	r.Get("/health/ready", checker.ReadinessHandler())
//
// Readiness answers 200 with {"status":"healthy"} when every check passes and
// 503 with per-check errors otherwise.
package health
