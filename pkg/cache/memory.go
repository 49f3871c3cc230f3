package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	expiresAt time.Time // zero = never
	value     V
}

func (e *entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type eviction[V any] struct {
	key    string
	value  V
	reason EvictReason
}

// MemoryOption tunes NewMemory.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	maxEntries      int
}

// WithDefaultTTL is the TTL applied when Set or Touch get zero. One hour
// unless set; a negative value means entries never expire.
func WithDefaultTTL(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		if d != 0 {
			o.defaultTTL = d
		}
	}
}

// WithCleanupInterval sets the sweep period for expired entries. With zero
// there is no sweeper and expiry is only noticed on access.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) { o.cleanupInterval = d }
}

// WithMaxEntries caps the entry count; the entry nearest to expiry makes
// room. Zero is unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(o *memoryOptions) { o.maxEntries = max(n, 0) }
}

// Memory is an in-memory cache with sliding expiration and eviction callbacks.
// Callbacks run outside the cache lock, so they may call back into the cache.
type Memory[V any] struct {
	items   map[string]*entry[V]
	onEvict func(key string, value V, reason EvictReason)
	done    chan struct{}
	opts    memoryOptions
	mu      sync.Mutex
	closed  bool
}

// NewMemory creates an in-memory cache and starts its janitor.
func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	o := memoryOptions{defaultTTL: time.Hour, cleanupInterval: time.Minute}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Memory[V]{
		items: make(map[string]*entry[V]),
		opts:  o,
		done:  make(chan struct{}),
	}
	if o.cleanupInterval > 0 {
		go m.janitor()
	}
	return m
}

// OnEvict sets the callback invoked whenever an entry leaves the cache.
func (m *Memory[V]) OnEvict(fn func(key string, value V, reason EvictReason)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

// Get returns the value for key or ErrNotFound.
func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	var zero V

	m.mu.Lock()
	e, ok := m.items[key]
	if ok && e.expired(time.Now()) {
		delete(m.items, key)
		m.mu.Unlock()
		m.notify([]eviction[V]{{key: key, value: e.value, reason: EvictExpired}})
		return zero, ErrNotFound
	}
	m.mu.Unlock()

	if !ok {
		return zero, ErrNotFound
	}
	return e.value, nil
}

// Set stores value under key.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	var evicted []eviction[V]
	if _, exists := m.items[key]; !exists && m.opts.maxEntries > 0 && len(m.items) >= m.opts.maxEntries {
		if ev, ok := m.evictSoonest(); ok {
			evicted = append(evicted, ev)
		}
	}
	m.items[key] = &entry[V]{value: value, expiresAt: expiry(m.ttl(ttl))}
	m.mu.Unlock()

	m.notify(evicted)
	return nil
}

// Touch extends the expiration of an existing key.
func (m *Memory[V]) Touch(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	e, ok := m.items[key]
	if !ok || e.expired(time.Now()) {
		return ErrNotFound
	}
	e.expiresAt = expiry(m.ttl(ttl))
	return nil
}

// Delete removes key and reports it to the eviction callback.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	e, ok := m.items[key]
	delete(m.items, key)
	m.mu.Unlock()

	if ok {
		m.notify([]eviction[V]{{key: key, value: e.value, reason: EvictDeleted}})
	}
	return nil
}

// Len returns the number of entries, including expired ones not yet collected.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops the janitor. Remaining entries are dropped without callbacks.
// Close is idempotent.
func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.items = make(map[string]*entry[V])
	close(m.done)
	return nil
}

// DeleteExpired removes expired entries and reports them to the callback.
func (m *Memory[V]) DeleteExpired() {
	now := time.Now()

	m.mu.Lock()
	var evicted []eviction[V]
	for key, e := range m.items {
		if e.expired(now) {
			delete(m.items, key)
			evicted = append(evicted, eviction[V]{key: key, value: e.value, reason: EvictExpired})
		}
	}
	m.mu.Unlock()

	m.notify(evicted)
}

func (m *Memory[V]) janitor() {
	ticker := time.NewTicker(m.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.DeleteExpired()
		}
	}
}

// evictSoonest drops the entry closest to expiry. Caller must hold the mutex.
func (m *Memory[V]) evictSoonest() (eviction[V], bool) {
	var (
		victim string
		found  bool
		at     time.Time
	)
	for key, e := range m.items {
		switch {
		case !found:
			victim, at, found = key, e.expiresAt, true
		case e.expiresAt.IsZero():
		case at.IsZero() || e.expiresAt.Before(at):
			victim, at = key, e.expiresAt
		}
	}
	if !found {
		return eviction[V]{}, false
	}
	e := m.items[victim]
	delete(m.items, victim)
	return eviction[V]{key: victim, value: e.value, reason: EvictCapacity}, true
}

func (m *Memory[V]) ttl(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return m.opts.defaultTTL
	}
	return ttl
}

func (m *Memory[V]) notify(evicted []eviction[V]) {
	if len(evicted) == 0 {
		return
	}
	m.mu.Lock()
	fn := m.onEvict
	m.mu.Unlock()
	if fn == nil {
		return
	}
	for _, ev := range evicted {
		fn(ev.key, ev.value, ev.reason)
	}
}

var _ Cache[any] = (*Memory[any])(nil)
