package internal

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/forgeioc/pkg/di"
)

// shutdownCoordinator drains the container once the server has stopped
// accepting work. Hijacked websocket connections are not tracked by
// http.Server.Shutdown, so they are tracked here.
type shutdownCoordinator struct {
	container *di.Container
	sessions  *sessionScopes
	logger    *slog.Logger
	stop      chan struct{}
	err       error
	inflight  sync.WaitGroup
	once      sync.Once
	mu        sync.Mutex
	stopped   bool
}

func newShutdownCoordinator(c *di.Container, sessions *sessionScopes, logger *slog.Logger) *shutdownCoordinator {
	return &shutdownCoordinator{
		container: c,
		sessions:  sessions,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// track registers a long-lived connection. It fails once shutdown started.
func (s *shutdownCoordinator) track() (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, false
	}
	s.inflight.Add(1)
	return s.inflight.Done, true
}

func (s *shutdownCoordinator) stopping() <-chan struct{} {
	return s.stop
}

// hook is the shutdown hook. Only the first call does any work; later calls
// return the first result.
func (s *shutdownCoordinator) hook(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		close(s.stop)
		s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			s.inflight.Wait()
			close(done)
		}()

		var errs []error
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.WarnContext(ctx, "websocket connections still open at shutdown deadline")
			errs = append(errs, ctx.Err())
		}

		if s.sessions != nil {
			s.sessions.stop()
		}

		live := s.container.LiveScopes("")
		if err := s.container.DrainAndShutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.logger.InfoContext(ctx, "container drained", slog.Int("scopes", live))
		s.err = errors.Join(errs...)
	})
	return s.err
}
