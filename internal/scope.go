package internal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/forgeioc/pkg/cache"
	"github.com/dmitrymomot/forgeioc/pkg/di"
	"github.com/dmitrymomot/forgeioc/pkg/logger"
	"github.com/dmitrymomot/forgeioc/pkg/session"
)

// SessionScopeKey is the session value holding the session scope id.
const SessionScopeKey = "forgeioc_session_id"

const defaultSessionIdleTTL = 30 * time.Minute

// connKind classifies an inbound request for scope binding.
type connKind int

const (
	connHTTP connKind = iota
	connWebSocket
	connOther
)

func kindOf(r *http.Request) connKind {
	switch {
	case websocket.IsWebSocketUpgrade(r):
		return connWebSocket
	case r.Method == http.MethodConnect:
		return connOther
	default:
		return connHTTP
	}
}

// scopeBinder opens a container scope for every connection and releases it
// on every exit path.
type scopeBinder struct {
	container *di.Container
	sessions  *sessionScopes
	logger    *slog.Logger
}

func (b *scopeBinder) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch kindOf(r) {
		case connOther:
			next.ServeHTTP(w, r)
			return
		case connWebSocket:
			b.serveScoped(w, r, next, di.WebSocket)
		default:
			b.serveScoped(w, r, next, di.Request)
		}
	})
}

func (b *scopeBinder) serveScoped(w http.ResponseWriter, r *http.Request, next http.Handler, name string) {
	id := uuid.NewString()
	ctx, err := b.container.OpenScope(r.Context(), name, id)
	if err != nil {
		b.reject(w, r, err)
		return
	}
	defer b.release(ctx, name, id)

	if name == di.Request {
		if ctx, err = b.bindSession(ctx); err != nil {
			b.reject(w, r, err)
			return
		}
	}

	next.ServeHTTP(w, r.WithContext(ctx))
}

// bindSession opens the session scope when the request carries a session.
// The scope id lives in the session itself so it survives across requests.
func (b *scopeBinder) bindSession(ctx context.Context) (context.Context, error) {
	sess, ok := session.FromContext(ctx)
	if !ok {
		return ctx, nil
	}

	id, _ := session.Value[string](sess, SessionScopeKey)
	if id == "" {
		id = uuid.NewString()
		sess.SetValue(SessionScopeKey, id)
	}

	b.sessions.touch(ctx, id)
	return b.container.OpenScope(ctx, di.Session, id)
}

// release runs even when the handler panics; the panic keeps unwinding.
func (b *scopeBinder) release(ctx context.Context, name, id string) {
	if err := b.container.CloseScope(context.WithoutCancel(ctx), name, id); err != nil {
		b.logger.ErrorContext(ctx, "scope cleanup failed",
			slog.String("scope", name),
			slog.String("scope_id", id),
			slog.Any("error", err),
		)
	}
}

func (b *scopeBinder) reject(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, di.ErrShutdown) {
		recordError(w, r, ErrServiceUnavailable("server is shutting down").WithCause(err))
		return
	}
	recordError(w, r, err)
}

// sessionScopes evicts session scopes that stay idle for longer than the TTL.
type sessionScopes struct {
	container *di.Container
	tracker   *cache.Memory[struct{}]
	ttl       time.Duration
	logger    *slog.Logger
}

func newSessionScopes(c *di.Container, ttl time.Duration, log *slog.Logger) *sessionScopes {
	if ttl <= 0 {
		ttl = defaultSessionIdleTTL
	}
	interval := min(ttl/2, time.Minute)

	s := &sessionScopes{
		container: c,
		tracker:   cache.NewMemory[struct{}](cache.WithDefaultTTL(ttl), cache.WithCleanupInterval(interval)),
		ttl:       ttl,
		logger:    log,
	}
	s.tracker.OnEvict(func(id string, _ struct{}, reason cache.EvictReason) {
		ctx := context.Background()
		if err := c.CloseScope(ctx, di.Session, id); err != nil {
			log.ErrorContext(ctx, "session scope cleanup failed",
				slog.String("scope_id", id),
				slog.Any("error", err),
			)
			return
		}
		log.DebugContext(ctx, "session scope evicted",
			slog.String("scope_id", id),
			slog.String("reason", reason.String()),
		)
	})
	return s
}

// touch marks the session scope as active, starting tracking on first use.
func (s *sessionScopes) touch(ctx context.Context, id string) {
	if err := s.tracker.Touch(ctx, id, s.ttl); err == nil {
		return
	}
	_ = s.tracker.Set(ctx, id, struct{}{}, s.ttl)
}

// evict releases a session scope immediately. The scope is closed even when
// tracking already stopped.
func (s *sessionScopes) evict(ctx context.Context, id string) {
	_ = s.tracker.Delete(ctx, id)
	if err := s.container.CloseScope(ctx, di.Session, id); err != nil {
		s.logger.ErrorContext(ctx, "session scope cleanup failed",
			slog.String("scope_id", id),
			slog.Any("error", err),
		)
	}
}

// stop halts idle tracking. Remaining scopes are left to the container drain.
func (s *sessionScopes) stop() {
	_ = s.tracker.Close()
}

// ScopeExtractors add the active scope ids to log records.
func ScopeExtractors() []logger.ContextExtractor {
	out := make([]logger.ContextExtractor, 0, 3)
	for _, name := range []string{di.Request, di.Session, di.WebSocket} {
		out = append(out, logger.StringExtractor(name+"_scope", func(ctx context.Context) (string, bool) {
			return di.ScopeID(ctx, name)
		}))
	}
	return out
}
