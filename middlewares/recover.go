package middlewares

import (
	"log/slog"
	"net/http"
	"runtime"

	"github.com/dmitrymomot/forgeioc/internal"
)

type recoverer struct {
	log        *slog.Logger
	stackLimit int // 0 skips stack capture
}

// RecoverOption adjusts Recover.
type RecoverOption func(*recoverer)

// WithRecoverLogger logs each recovered panic to l.
func WithRecoverLogger(l *slog.Logger) RecoverOption {
	return func(rc *recoverer) { rc.log = l }
}

// WithStackLimit caps the captured stack at n bytes. Default 4 KiB.
func WithStackLimit(n int) RecoverOption {
	return func(rc *recoverer) { rc.stackLimit = max(n, 0) }
}

// WithoutStack turns stack capture off.
func WithoutStack() RecoverOption {
	return WithStackLimit(0)
}

func (rc *recoverer) stack() []byte {
	if rc.stackLimit == 0 {
		return nil
	}
	buf := make([]byte, rc.stackLimit)
	return buf[:runtime.Stack(buf, false)]
}

func (rc *recoverer) handle(w http.ResponseWriter, r *http.Request, v any) {
	pe := &PanicError{Value: v, Stack: rc.stack()}
	if rc.log != nil {
		attrs := []any{slog.Any("panic", v)}
		if pe.Stack != nil {
			attrs = append(attrs, slog.String("stack", string(pe.Stack)))
		}
		rc.log.ErrorContext(r.Context(), "panic recovered", attrs...)
	}
	internal.RecordError(w, r, internal.ErrInternal("").WithCause(pe))
}

// Recover turns a panic into a recorded 500 with a *PanicError cause. At
// an outer priority the scopes opened further in have already been closed
// by the time the panic reaches it. http.ErrAbortHandler is re-raised.
func Recover(opts ...RecoverOption) func(http.Handler) http.Handler {
	rc := &recoverer{stackLimit: 4 << 10}
	for _, opt := range opts {
		opt(rc)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				switch v := recover(); v {
				case nil:
				case http.ErrAbortHandler:
					panic(v)
				default:
					rc.handle(w, r, v)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
