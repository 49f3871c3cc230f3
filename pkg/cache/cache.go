package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("cache: no such key")
	ErrClosed   = errors.New("cache: use of closed cache")
	// ErrCodec wraps a Marshaler failure in either direction.
	ErrCodec = errors.New("cache: value codec failed")
)

// Cache is a generic key-value store with per-entry expiration.
type Cache[V any] interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) (V, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Touch resets the expiration of an existing key.
	// Returns ErrNotFound if the key does not exist.
	Touch(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases background resources.
	Close() error
}

// EvictReason tells an eviction callback why an entry left the cache.
type EvictReason int

const (
	// EvictExpired means the entry outlived its TTL.
	EvictExpired EvictReason = iota + 1
	// EvictDeleted means the entry was removed with Delete.
	EvictDeleted
	// EvictCapacity means the entry was dropped to honor the entry limit.
	EvictCapacity
)

func (r EvictReason) String() string {
	switch r {
	case EvictExpired:
		return "expired"
	case EvictDeleted:
		return "deleted"
	case EvictCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// Marshaler converts values to bytes for byte-oriented backends.
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// JSONMarshaler is the default Marshaler.
type JSONMarshaler[V any] struct{}

func (JSONMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrCodec, err)
	}
	return data, nil
}

func (JSONMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrCodec, err)
	}
	return v, nil
}

// expiry converts a resolved TTL into an absolute deadline; zero means never.
func expiry(ttl time.Duration) time.Time {
	if ttl < 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
