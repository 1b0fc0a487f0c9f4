package cache

import (
	"sync"
	"time"
)

// Memo caches the value produced by a single loader under one key.
// Loads and invalidations are serialized, so once Invalidate returns the next
// Get runs the loader again. Failed loads are never cached.
type Memo[T any] struct {
	cache Cache
	key   string
	ttl   time.Duration
	mu    sync.Mutex
}

// NewMemo creates a memo backed by c.
func NewMemo[T any](c Cache, key string, ttl time.Duration) *Memo[T] {
	if c == nil {
		c = NewMemoryCache(ttl, 0)
	}
	return &Memo[T]{cache: c, key: key, ttl: ttl}
}

// Get returns the cached value or runs load to produce it.
func (m *Memo[T]) Get(load func() (T, error)) (T, error) {
	if v, ok := m.cached(); ok {
		return v, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring the lock
	if v, ok := m.cached(); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	m.cache.Set(m.key, v, m.ttl)
	return v, nil
}

// Invalidate drops the cached value. It waits for an in-flight load to finish.
func (m *Memo[T]) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Delete(m.key)
}

func (m *Memo[T]) cached() (T, bool) {
	raw, ok := m.cache.Get(m.key)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}
