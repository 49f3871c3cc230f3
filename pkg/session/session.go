package session

import (
	"encoding/json"
	"errors"
	"maps"
	"time"
)

// Session is per-client state persisted across requests. A Session value is
// owned by the request that loaded it; stores hand out copies.
type Session struct {
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Values       map[string]any `json:"values"`
	ID           string         `json:"id"`
	Token        string         `json:"token"` // cookie value, distinct from ID

	dirty     bool
	isNew     bool
	destroyed bool
}

// New creates a session with the given ID and token.
func New(id, token string, expiresAt time.Time) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Token:        token,
		Values:       make(map[string]any),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
		isNew:        true,
		dirty:        true,
	}
}

// SetValue stores a value and marks the session dirty.
func (s *Session) SetValue(key string, val any) {
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	s.Values[key] = val
	s.dirty = true
}

// GetValue retrieves a raw value.
func (s *Session) GetValue(key string) (any, bool) {
	if s.Values == nil {
		return nil, false
	}
	val, ok := s.Values[key]
	return val, ok
}

// DeleteValue removes a value. The session becomes dirty only if the key existed.
func (s *Session) DeleteValue(key string) {
	if _, exists := s.Values[key]; exists {
		delete(s.Values, key)
		s.dirty = true
	}
}

// IsDirty reports unsaved changes.
func (s *Session) IsDirty() bool { return s.dirty }

// ClearDirty marks the session as saved.
func (s *Session) ClearDirty() { s.dirty = false }

// MarkDirty forces the next save.
func (s *Session) MarkDirty() { s.dirty = true }

// IsNew reports whether the session has never been persisted.
func (s *Session) IsNew() bool { return s.isNew }

// ClearNew marks the session as persisted.
func (s *Session) ClearNew() { s.isNew = false }

// Destroy marks the session for deletion at the end of the request.
func (s *Session) Destroy() { s.destroyed = true }

// IsDestroyed reports whether Destroy was called.
func (s *Session) IsDestroyed() bool { return s.destroyed }

// IsExpired reports whether ExpiresAt has passed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// clone copies the session with its own Values map.
func (s *Session) clone() *Session {
	c := *s
	c.Values = maps.Clone(s.Values)
	if c.Values == nil {
		c.Values = make(map[string]any)
	}
	return &c
}

// Value returns a typed session value. Values restored from a serializing
// store (numbers as float64, structs as maps) are converted through JSON.
func Value[T any](s *Session, key string) (T, error) {
	var zero T
	if s == nil {
		return zero, ErrNotFound
	}

	val, ok := s.GetValue(key)
	if !ok {
		return zero, ErrNotFound
	}
	if typed, ok := val.(T); ok {
		return typed, nil
	}

	data, err := json.Marshal(val)
	if err != nil {
		return zero, errors.Join(ErrTypeMismatch, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, errors.Join(ErrTypeMismatch, err)
	}
	return out, nil
}

// ValueOr is Value with a fallback for missing or mismatched values.
func ValueOr[T any](s *Session, key string, defaultVal T) T {
	val, err := Value[T](s, key)
	if err != nil {
		return defaultVal
	}
	return val
}
