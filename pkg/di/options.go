package di

import "log/slog"

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used for scope lifecycle diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Container) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDrainConcurrency limits how many scopes are closed in parallel by DrainAndShutdown.
// Default: 16.
func WithDrainConcurrency(n int) Option {
	return func(c *Container) {
		if n > 0 {
			c.drainConcurrency = n
		}
	}
}

// ProvideOption configures a single registration.
type ProvideOption func(*provider)

// WithLifetime sets the lifetime of the registered service.
// Default: Singleton.
func WithLifetime(lifetime string) ProvideOption {
	return func(p *provider) {
		if lifetime != "" {
			p.lifetime = lifetime
		}
	}
}

// Eager marks a singleton to be created by RunStartupHooks instead of on first use.
func Eager() ProvideOption {
	return func(p *provider) {
		p.eager = true
	}
}

// WithoutClose disables closing of the service's instances by the container.
func WithoutClose() ProvideOption {
	return func(p *provider) {
		p.noClose = true
	}
}
