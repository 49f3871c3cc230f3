package internal

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/forgeioc/pkg/cookie"
	"github.com/dmitrymomot/forgeioc/pkg/session"
)

// Default session configuration.
const (
	defaultSessionCookieName = "__sid"
	defaultSessionMaxAge     = 30 * 24 * time.Hour

	// SessionPriority places session loading in the outer group so the
	// session exists before scopes are bound.
	SessionPriority = -50
)

// SessionManager loads the session for every request and persists it right
// before the response starts. It is installed as an outer configurer.
type SessionManager struct {
	store  session.Store
	jar    *cookie.Jar
	scopes *sessionScopes
	logger *slog.Logger
	cookie cookie.Config
}

// SessionOption configures the SessionManager.
type SessionOption func(*SessionManager)

// NewSessionManager creates a SessionManager backed by store.
func NewSessionManager(store session.Store, opts ...SessionOption) (*SessionManager, error) {
	sm := &SessionManager{
		store: store,
		cookie: cookie.Config{
			Name:     defaultSessionCookieName,
			MaxAge:   defaultSessionMaxAge,
			HTTPOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	}
	for _, opt := range opts {
		opt(sm)
	}

	jar, err := cookie.New(sm.cookie)
	if err != nil {
		return nil, fmt.Errorf("session cookie: %w", err)
	}
	sm.jar = jar
	return sm, nil
}

// WithSessionCookieName sets the session cookie name.
func WithSessionCookieName(name string) SessionOption {
	return func(sm *SessionManager) {
		if name != "" {
			sm.cookie.Name = name
		}
	}
}

// WithSessionMaxAge sets how long a session lives without being renewed.
func WithSessionMaxAge(d time.Duration) SessionOption {
	return func(sm *SessionManager) {
		if d > 0 {
			sm.cookie.MaxAge = d
		}
	}
}

// WithSessionDomain sets the session cookie domain.
func WithSessionDomain(domain string) SessionOption {
	return func(sm *SessionManager) {
		sm.cookie.Domain = domain
	}
}

// WithSessionSecure sets the session cookie Secure flag.
func WithSessionSecure(secure bool) SessionOption {
	return func(sm *SessionManager) {
		sm.cookie.Secure = secure
	}
}

// WithSessionSameSite sets the session cookie SameSite attribute.
func WithSessionSameSite(sameSite http.SameSite) SessionOption {
	return func(sm *SessionManager) {
		sm.cookie.SameSite = sameSite
	}
}

// WithSessionSecret signs the session cookie with HMAC-SHA256.
// The secret must be at least 32 bytes.
func WithSessionSecret(secret string) SessionOption {
	return func(sm *SessionManager) {
		sm.cookie.Secret = secret
	}
}

func (sm *SessionManager) Priority() int { return SessionPriority }

func (sm *SessionManager) Configure(p *Pipeline) {
	if sm.logger == nil {
		sm.logger = p.Logger()
	}
	p.Use(sm.middleware)
	if closer, ok := sm.store.(io.Closer); ok {
		p.OnShutdown(func(context.Context) error { return closer.Close() })
	}
}

func (sm *SessionManager) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess := sm.load(ctx, r)
		if sess == nil {
			var err error
			if sess, err = sm.create(); err != nil {
				recordError(w, r, err)
				return
			}
		}

		var once sync.Once
		rw, tracked := ResponseWriterFrom(w)
		if tracked {
			rw.OnBeforeWrite(func() {
				once.Do(func() { sm.save(ctx, w, sess, true) })
			})
		}

		next.ServeHTTP(w, r.WithContext(session.WithContext(ctx, sess)))

		// Nothing was written (error rendered later, or hijacked connection).
		once.Do(func() {
			sm.save(ctx, w, sess, tracked && !rw.Written() && !rw.Hijacked())
		})
	})
}

// load returns the stored session for the request cookie, or nil.
func (sm *SessionManager) load(ctx context.Context, r *http.Request) *session.Session {
	token, err := sm.jar.Read(r)
	if err != nil {
		if errors.Is(err, cookie.ErrBadSig) {
			sm.logger.WarnContext(ctx, "session cookie signature mismatch")
		}
		return nil
	}

	sess, err := sm.store.Get(ctx, token)
	switch {
	case err == nil:
		return sess
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
		return nil
	default:
		sm.logger.WarnContext(ctx, "failed to load session", slog.Any("error", err))
		return nil
	}
}

func (sm *SessionManager) create() (*session.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	return session.New(uuid.NewString(), token, time.Now().Add(sm.cookie.MaxAge)), nil
}

// save persists the session. A session past half of its lifetime is renewed.
func (sm *SessionManager) save(ctx context.Context, w http.ResponseWriter, sess *session.Session, setCookie bool) {
	ctx = context.WithoutCancel(ctx)

	if sess.IsDestroyed() {
		if !sess.IsNew() {
			if err := sm.store.Delete(ctx, sess.Token); err != nil {
				sm.logger.ErrorContext(ctx, "failed to delete session", slog.Any("error", err))
			}
		}
		if id, err := session.Value[string](sess, SessionScopeKey); err == nil && sm.scopes != nil {
			sm.scopes.evict(ctx, id)
		}
		if setCookie {
			sm.jar.Expire(w)
		}
		return
	}

	renew := time.Until(sess.ExpiresAt) < sm.cookie.MaxAge/2
	if renew {
		sess.ExpiresAt = time.Now().Add(sm.cookie.MaxAge)
	}

	var err error
	switch {
	case sess.IsNew():
		err = sm.store.Create(ctx, sess)
	case sess.IsDirty() || renew:
		err = sm.store.Update(ctx, sess)
	default:
		return
	}
	if err != nil {
		sm.logger.ErrorContext(ctx, "failed to save session", slog.Any("error", err))
		return
	}

	if setCookie && (sess.IsNew() || renew) {
		sm.jar.Write(w, sess.Token)
	}
	sess.ClearNew()
	sess.ClearDirty()
}

// generateToken creates a random URL-safe token.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
