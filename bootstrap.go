package forgeioc

import (
	"context"

	"github.com/dmitrymomot/forgeioc/internal"
	"github.com/dmitrymomot/forgeioc/middlewares"
	"github.com/dmitrymomot/forgeioc/pkg/di"
)

// Priorities of the middleware installed by FromSettings.
const (
	RecoverPriority   = -200
	RequestIDPriority = -150
	TimeoutPriority   = -10
)

// DefaultSettings returns the settings used for keys a file leaves out.
func DefaultSettings() Settings {
	return internal.DefaultSettings()
}

// LoadSettings reads a YAML settings file with ${VAR} expansion.
func LoadSettings(path string) (Settings, error) {
	return internal.LoadSettings(path)
}

// ParseSettings parses YAML settings on top of DefaultSettings.
func ParseSettings(data []byte) (Settings, error) {
	return internal.ParseSettings(data)
}

// FromSettings turns settings into options: the logger with request and
// scope ids, Recover and RequestID in the outer group, an optional request
// timeout, health endpoints, sessions and Redis.
func FromSettings(ctx context.Context, s Settings) ([]Option, error) {
	opts, err := internal.FromSettings(ctx, s, middlewares.RequestIDExtractor())
	if err != nil {
		return nil, err
	}

	configurers := []any{
		ConfigurerFunc(RecoverPriority, func(p *Pipeline) {
			p.Use(middlewares.Recover(middlewares.WithRecoverLogger(p.Logger())))
		}),
		Middleware(RequestIDPriority, middlewares.RequestID()),
	}
	if d := s.Server.RequestTimeout; d > 0 {
		configurers = append(configurers, ConfigurerFunc(TimeoutPriority, func(p *Pipeline) {
			p.Use(middlewares.Timeout(d, middlewares.WithTimeoutLogger(p.Logger())))
		}))
	}
	return append(opts, WithConfigurers(configurers...)), nil
}

// Bootstrap loads the settings file and builds the app around c. Extra
// options are applied after the ones derived from the file.
//
// Example:
//
//	c := di.New()
//	app, err := forgeioc.Bootstrap(ctx, c, "config.yaml",
//	    forgeioc.WithController(NewCart, forgeioc.ControllerDescriptor{Prefix: "/cart", Scope: forgeioc.ScopeSession},
//	        forgeioc.Route(forgeioc.GET, "", "List"),
//	    ),
//	)
func Bootstrap(ctx context.Context, c *di.Container, path string, extra ...Option) (*App, error) {
	s, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}
	opts, err := FromSettings(ctx, s)
	if err != nil {
		return nil, err
	}
	return New(c, append(opts, extra...)...)
}
