package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// Config describes the application logger. It maps onto the "logger" section
// of the settings file.
type Config struct {
	Output      io.Writer `yaml:"-"`           // default os.Stdout
	Level       string    `yaml:"level"`       // debug, info, warn, error; default info
	Format      string    `yaml:"format"`      // json (default) or text
	SentryDSN   string    `yaml:"sentry_dsn"`  // empty disables Sentry
	Environment string    `yaml:"environment"` // Sentry environment, default "production"
	// SentryErrorsOnly restricts Sentry log capture to errors. Warnings are sent otherwise.
	SentryErrorsOnly bool `yaml:"sentry_errors_only"`
}

// ParseLevel maps a level name to slog.Level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger from cfg. When a Sentry DSN is configured, records are
// fanned out to Sentry as well; errors become Sentry issues. A failed Sentry
// init falls back to local output only.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	local := localHandler(cfg)
	if cfg.SentryDSN == "" {
		return slog.New(NewLogHandlerDecorator(local, extractors...))
	}

	env := cfg.Environment
	if env == "" {
		env = "production"
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: env,
		EnableLogs:  true,
	}); err != nil {
		slog.New(local).Error("failed to initialize sentry", slog.String("error", err.Error()))
		return slog.New(NewLogHandlerDecorator(local, extractors...))
	}

	logLevels := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.SentryErrorsOnly {
		logLevels = []slog.Level{slog.LevelError}
	}
	remote := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevels,
	}.NewSentryHandler(context.Background())

	return slog.New(NewLogHandlerDecorator(fanout(local, remote), extractors...))
}

// NewNope returns a logger that discards everything.
func NewNope() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func localHandler(cfg Config) slog.Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}
