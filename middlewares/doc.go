// Package middlewares provides net/http middleware for forgeioc applications.
//
// Every middleware has the func(http.Handler) http.Handler shape. Wrap it in
// forgeioc.Middleware to install it as a configurer: a negative priority
// places it in the outer group, before any container scope exists.
//
// # Request ID
//
// RequestID assigns a unique ID to each request for tracing and debugging.
// It checks incoming headers for existing IDs or generates a UUID.
//
//	app, err := forgeioc.New(c,
//	    forgeioc.WithLogger("api", logger.Config{}, middlewares.RequestIDExtractor()),
//	    forgeioc.WithMiddleware(-150, middlewares.RequestID()),
//	)
//
// # Recover
//
// Recover catches panics and records a 500 for the application error
// handler. Install it outermost so scopes are released before recovery:
//
//	forgeioc.WithMiddleware(-200, middlewares.Recover(middlewares.WithRecoverLogger(log)))
//
// # Timeout
//
// Timeout puts a deadline on the request context. Handlers that await a
// Future or pass the context on stop at the deadline and the client gets 504.
//
//	forgeioc.WithMiddleware(-10, middlewares.Timeout(5*time.Second))
//
// # CORS
//
// CORS answers preflight requests and adds CORS headers, built on
// github.com/go-chi/cors:
//
//	forgeioc.WithMiddleware(-120, middlewares.CORS(
//	    middlewares.WithAllowOrigins("https://app.example.com"),
//	    middlewares.WithAllowCredentials(),
//	))
package middlewares
