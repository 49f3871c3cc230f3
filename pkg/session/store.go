package session

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/forgeioc/pkg/cache"
)

var (
	ErrNotFound     = errors.New("session: no such session or key")
	ErrExpired      = errors.New("session: past its expiry")
	ErrInvalidToken = errors.New("session: empty or malformed token")
	// ErrTypeMismatch is returned by Value when the stored value does not
	// decode into the requested type.
	ErrTypeMismatch = errors.New("session: stored value has another type")
)

// Store persists sessions keyed by token.
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, s *Session) error

	// Get returns a copy of the session for token.
	// Returns ErrNotFound or ErrExpired.
	Get(ctx context.Context, token string) (*Session, error)

	// Update saves changes to an existing session.
	Update(ctx context.Context, s *Session) error

	// Delete removes the session for token.
	Delete(ctx context.Context, token string) error
}

// CacheStore is a Store on top of a cache backend (in-memory or Redis).
type CacheStore struct {
	cache cache.Cache[Session]
}

// NewCacheStore wraps a cache as a session Store.
//
// Example:
//
//	store := session.NewCacheStore(cache.NewMemory[session.Session]())
//	store := session.NewCacheStore(cache.NewRedis[session.Session](client, nil, cache.WithPrefix("sess")))
func NewCacheStore(c cache.Cache[Session]) *CacheStore {
	return &CacheStore{cache: c}
}

func (s *CacheStore) Create(ctx context.Context, sess *Session) error {
	return s.save(ctx, sess)
}

func (s *CacheStore) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	stored, err := s.cache.Get(ctx, token)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if stored.IsExpired() {
		_ = s.cache.Delete(ctx, token)
		return nil, ErrExpired
	}
	out := stored.clone()
	out.dirty, out.isNew = false, false
	return out, nil
}

func (s *CacheStore) Update(ctx context.Context, sess *Session) error {
	return s.save(ctx, sess)
}

func (s *CacheStore) Delete(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, token)
}

// Close releases the underlying cache.
func (s *CacheStore) Close() error {
	return s.cache.Close()
}

func (s *CacheStore) save(ctx context.Context, sess *Session) error {
	if sess.Token == "" {
		return ErrInvalidToken
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}
	return s.cache.Set(ctx, sess.Token, *sess.clone(), ttl)
}

var _ Store = (*CacheStore)(nil)
