package internal

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// serve owns one server lifetime: start hooks, listen, wait for a signal or
// a serve failure, then stop. It always reaches the stop hooks once the
// listener was opened, so the container is drained even after a crash.
func serve(h http.Handler, rs *runSettings) error {
	ctx, stop := signal.NotifyContext(rs.parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, fn := range rs.onStart {
		if err := fn(ctx); err != nil {
			rs.log.Error("startup hook failed", slog.Any("error", err))
			return err
		}
	}

	ln, err := net.Listen("tcp", rs.addr)
	if err != nil {
		return err
	}

	srv := newHTTPServer(h)
	failed := make(chan error, 1)
	go func() {
		rs.log.Info("listening", slog.String("address", ln.Addr().String()))
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		failed <- err
	}()

	var errs []error
	select {
	case <-ctx.Done():
	case err := <-failed:
		if err != nil {
			rs.log.Error("serve failed", slog.Any("error", err))
			errs = append(errs, err)
		}
	}

	errs = append(errs, drain(srv, rs)...)
	if len(errs) > 0 {
		rs.log.Error("stopped with errors", slog.Int("errors", len(errs)))
		return errors.Join(errs...)
	}
	rs.log.Info("stopped")
	return nil
}

// drain stops the listener, then runs every stop hook under the grace
// deadline. A failing hook does not skip the ones after it.
func drain(srv *http.Server, rs *runSettings) []error {
	rs.log.Info("stopping", slog.Duration("grace", rs.grace))
	ctx, cancel := context.WithTimeout(context.Background(), rs.grace)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, fn := range rs.onStop {
		if err := fn(ctx); err != nil {
			rs.log.Error("shutdown hook failed", slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errs
}

func newHTTPServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadTimeout:       defaultReadTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
	}
}
