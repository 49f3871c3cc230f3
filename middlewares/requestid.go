package middlewares

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/forgeioc/pkg/logger"
)

type requestIDKey struct{}

type requestIDSource struct {
	inbound  []string
	outbound string
	mint     func() string
}

// RequestIDOption adjusts RequestID.
type RequestIDOption func(*requestIDSource)

// WithRequestIDHeaders sets the inbound headers searched for an upstream id.
// The first non-empty one wins.
func WithRequestIDHeaders(headers ...string) RequestIDOption {
	return func(s *requestIDSource) { s.inbound = headers }
}

// WithRequestIDGenerator replaces uuid.NewString for fresh ids.
func WithRequestIDGenerator(gen func() string) RequestIDOption {
	return func(s *requestIDSource) {
		if gen != nil {
			s.mint = gen
		}
	}
}

// WithRequestIDResponseHeader renames the echoed header. Empty disables it.
func WithRequestIDResponseHeader(header string) RequestIDOption {
	return func(s *requestIDSource) { s.outbound = header }
}

func (s *requestIDSource) resolve(r *http.Request) string {
	for _, h := range s.inbound {
		if id := r.Header.Get(h); id != "" {
			return id
		}
	}
	return s.mint()
}

// RequestID tags each request with an id, reusing one sent by a proxy or
// caller. Installed in the outer group, the id is already in the context
// when the request scope opens, so scope logs carry it too.
func RequestID(opts ...RequestIDOption) func(http.Handler) http.Handler {
	src := &requestIDSource{
		inbound:  []string{"X-Request-ID", "X-Correlation-ID"},
		outbound: "X-Request-ID",
		mint:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(src)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := src.resolve(r)
			if src.outbound != "" {
				w.Header().Set(src.outbound, id)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// RequestIDFromContext returns the id set by RequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id, id != ""
}

// RequestIDExtractor adds "request_id" to records logged with a request
// context.
func RequestIDExtractor() logger.ContextExtractor {
	return logger.StringExtractor("request_id", RequestIDFromContext)
}
