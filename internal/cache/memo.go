package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memo caches successful results forever and never caches misses, so a
// failed key is retried on the next Get. Concurrent Gets for one key share a
// single fetch; the first stored value is never replaced.
type Memo[V any] struct {
	mu     sync.RWMutex
	values map[string]V
	flight singleflight.Group
}

func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{values: make(map[string]V)}
}

// Get returns the memoized value or runs fetch. ok is false when fetch reported no value.
func (m *Memo[V]) Get(ctx context.Context, key string, fetch func(context.Context) (V, bool)) (V, bool) {
	if v, ok := m.Lookup(key); ok {
		return v, true
	}
	flightCtx := context.WithoutCancel(ctx)
	res, _, _ := m.flight.Do(key, func() (any, error) {
		if v, ok := m.Lookup(key); ok {
			return v, nil
		}
		v, ok := fetch(flightCtx)
		if !ok {
			return nil, nil
		}
		m.mu.Lock()
		if existing, dup := m.values[key]; dup {
			v = existing
		} else {
			m.values[key] = v
		}
		m.mu.Unlock()
		return v, nil
	})
	if res == nil {
		var zero V
		return zero, false
	}
	return res.(V), true
}

// Lookup reads the memo without fetching.
func (m *Memo[V]) Lookup(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Len is the number of memoized keys.
func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
