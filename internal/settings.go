package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/forgeioc/pkg/cache"
	"github.com/dmitrymomot/forgeioc/pkg/logger"
	"github.com/dmitrymomot/forgeioc/pkg/redis"
	"github.com/dmitrymomot/forgeioc/pkg/session"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// ErrInvalidSettings is returned when a settings file fails validation.
var ErrInvalidSettings = errors.New("forgeioc: invalid settings")

// Settings is the application configuration file.
//
//	app:
//	  title: cart
//	  debug: true
//	server:
//	  address: ":8080"
//	  shutdown_timeout: 15s
//	session:
//	  enabled: true
//	  store: redis
//	  secret: ${SESSION_SECRET}
//	redis:
//	  url: ${REDIS_URL}
type Settings struct {
	App     AppSettings     `yaml:"app"`
	Server  ServerSettings  `yaml:"server"`
	Session SessionSettings `yaml:"session"`
	Health  HealthSettings  `yaml:"health"`
	Redis   redis.Config    `yaml:"redis"`
	Logger  logger.Config   `yaml:"logger"`
}

type AppSettings struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
	Debug   bool   `yaml:"debug"`
}

type ServerSettings struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"` // 0 disables the timeout middleware
}

type SessionSettings struct {
	Enabled    bool          `yaml:"enabled"`
	Store      string        `yaml:"store"` // memory or redis
	CookieName string        `yaml:"cookie_name"`
	Domain     string        `yaml:"domain"`
	Secret     string        `yaml:"secret"`
	MaxAge     time.Duration `yaml:"max_age"`
	IdleTTL    time.Duration `yaml:"idle_ttl"`
	Secure     bool          `yaml:"secure"`
}

type HealthSettings struct {
	Enabled       bool          `yaml:"enabled"`
	LivenessPath  string        `yaml:"liveness_path"`
	ReadinessPath string        `yaml:"readiness_path"`
	Timeout       time.Duration `yaml:"timeout"`
}

// DefaultSettings returns the settings used for keys a file leaves out.
func DefaultSettings() Settings {
	return Settings{
		App: AppSettings{
			Title:   "forgeioc app",
			Version: "1.0.0",
		},
		Server: ServerSettings{
			Address:         ":8080",
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Session: SessionSettings{
			Store:      SessionStoreMemory,
			CookieName: defaultSessionCookieName,
			MaxAge:     defaultSessionMaxAge,
			IdleTTL:    defaultSessionIdleTTL,
		},
		Health: HealthSettings{
			Enabled:       true,
			LivenessPath:  defaultLivenessPath,
			ReadinessPath: defaultReadinessPath,
		},
		Logger: logger.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadSettings reads a YAML settings file. ${VAR} references are expanded
// from the environment before parsing.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings parses YAML settings on top of DefaultSettings.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports settings that cannot be bootstrapped.
func (s Settings) Validate() error {
	var errs []error
	switch s.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if s.Session.Enabled && s.Redis.URL == "" {
			errs = append(errs, errors.New("session.store is redis but redis.url is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session.store %q", s.Session.Store))
	}
	if s.Server.ShutdownTimeout < 0 || s.Server.RequestTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if s.Session.MaxAge < 0 || s.Session.IdleTTL < 0 {
		errs = append(errs, errors.New("session durations must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

// FromSettings turns settings into options. A Redis client is opened when
// redis.url is set; it backs the session store when configured, joins the
// readiness checks and is closed after the container drains.
func FromSettings(ctx context.Context, s Settings, extractors ...logger.ContextExtractor) ([]Option, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	logCfg := s.Logger
	if s.App.Debug {
		logCfg.Level = "debug"
	}
	log := logger.New(logCfg, append(ScopeExtractors(), extractors...)...).With(
		slog.String("component", s.App.Title),
		slog.String("version", s.App.Version),
	)
	opts := []Option{
		WithCustomLogger(log),
		WithRunOptions(
			Address(s.Server.Address),
			ShutdownTimeout(s.Server.ShutdownTimeout),
		),
	}

	var health []HealthOption
	if s.Health.Enabled {
		health = append(health,
			WithLivenessPath(s.Health.LivenessPath),
			WithReadinessPath(s.Health.ReadinessPath),
			WithHealthTimeout(s.Health.Timeout),
		)
	}

	var store session.Store
	if s.Redis.URL != "" {
		client, err := redis.Open(ctx, s.Redis)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCloser(redis.Shutdown(client)))
		health = append(health, WithReadinessCheck("redis", redis.Healthcheck(client)))
		if s.Session.Store == SessionStoreRedis {
			store = session.NewCacheStore(cache.NewRedis[session.Session](client, nil, cache.WithPrefix("session")))
		}
	}

	if s.Health.Enabled {
		opts = append(opts, WithHealthChecks(health...))
	}

	if s.Session.Enabled {
		if store == nil {
			store = session.NewCacheStore(cache.NewMemory[session.Session](cache.WithCleanupInterval(time.Minute)))
		}
		opts = append(opts,
			WithSessions(store,
				WithSessionCookieName(s.Session.CookieName),
				WithSessionMaxAge(s.Session.MaxAge),
				WithSessionDomain(s.Session.Domain),
				WithSessionSecure(s.Session.Secure),
				WithSessionSecret(s.Session.Secret),
			),
			WithSessionIdleTTL(s.Session.IdleTTL),
		)
	}

	return opts, nil
}
