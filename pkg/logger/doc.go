// Package logger builds the application's log/slog logger.
//
// Records are written as JSON (or text) to stdout and, when a DSN is set,
// fanned out to Sentry through sentry-go/slog. Context extractors add
// request-scoped attributes such as request and scope ids at log time:
//
//	log := logger.New(logger.Config{Level: "debug"},
//		logger.StringExtractor("request_id", middlewares.RequestIDFromContext),
//	)
//	log.InfoContext(ctx, "cart updated")
//	// {"level":"INFO","msg":"cart updated","request_id":"..."}
//
// NewNope returns a discarding logger, used as the default before options run.
package logger
