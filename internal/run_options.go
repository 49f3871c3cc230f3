package internal

import (
	"context"
	"log/slog"
	"time"
)

// RunOption adjusts how Run serves the application.
type RunOption func(*runSettings)

type hookFunc = func(context.Context) error

type runSettings struct {
	addr    string
	log     *slog.Logger
	grace   time.Duration
	parent  context.Context
	onStart []hookFunc
	onStop  []hookFunc
}

func newRunSettings(opts []RunOption) *runSettings {
	rs := &runSettings{addr: ":8080", grace: defaultShutdownTimeout, parent: context.Background()}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Address sets the listen address. An empty value keeps ":8080".
func Address(addr string) RunOption {
	return func(rs *runSettings) {
		if addr != "" {
			rs.addr = addr
		}
	}
}

// Logger replaces the app logger for server lifecycle records.
func Logger(l *slog.Logger) RunOption {
	return func(rs *runSettings) {
		if l != nil {
			rs.log = l
		}
	}
}

// ShutdownTimeout is the single deadline shared by server shutdown, the
// shutdown hooks, the container drain and the closers. Default 30s.
func ShutdownTimeout(d time.Duration) RunOption {
	return func(rs *runSettings) {
		if d > 0 {
			rs.grace = d
		}
	}
}

// StartupHook runs fn after the container startup hooks and before the
// listener opens. An error aborts Run.
func StartupHook(fn func(context.Context) error) RunOption {
	return func(rs *runSettings) {
		if fn != nil {
			rs.onStart = append(rs.onStart, fn)
		}
	}
}

// ShutdownHook runs fn once the server has stopped accepting requests,
// while the container is still live.
//
//	forgeioc.ShutdownHook(flushMetrics)
func ShutdownHook(fn func(context.Context) error) RunOption {
	return func(rs *runSettings) {
		if fn != nil {
			rs.onStop = append(rs.onStop, fn)
		}
	}
}

// WithContext sets the parent of the signal context. Cancelling it stops
// the server gracefully.
func WithContext(ctx context.Context) RunOption {
	return func(rs *runSettings) {
		if ctx != nil {
			rs.parent = ctx
		}
	}
}
