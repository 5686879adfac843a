package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Index is an append-only id -> value registry. With a size of 0 it grows
// without bound; a positive size evicts least-recently-used ids.
type Index[V any] struct {
	bounded *lru.Cache[string, V]

	mu  sync.RWMutex
	all map[string]V
}

func NewIndex[V any](size int) *Index[V] {
	if size > 0 {
		c, err := lru.New[string, V](size)
		if err == nil {
			return &Index[V]{bounded: c}
		}
	}
	return &Index[V]{all: make(map[string]V)}
}

// Put registers or overwrites id.
func (x *Index[V]) Put(id string, v V) {
	if x.bounded != nil {
		x.bounded.Add(id, v)
		return
	}
	x.mu.Lock()
	x.all[id] = v
	x.mu.Unlock()
}

// Get returns the value registered for id.
func (x *Index[V]) Get(id string) (V, bool) {
	if x.bounded != nil {
		return x.bounded.Get(id)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	v, ok := x.all[id]
	return v, ok
}

// Len is the number of registered ids.
func (x *Index[V]) Len() int {
	if x.bounded != nil {
		return x.bounded.Len()
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.all)
}
