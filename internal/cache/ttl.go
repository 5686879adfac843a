// Package cache holds the in-memory caches behind the directories, the picon
// pipeline and stream resolution. Everything here lives for the process
// lifetime; nothing is persisted.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Outcome says how a TTL read was satisfied.
type Outcome int

const (
	Fresh     Outcome = iota // served from cache inside the TTL window
	Refreshed                // fetched from upstream and stored
	Stale                    // refresh failed; previous value served
	Failed                   // no previous value and the fetch failed
)

func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case Refreshed:
		return "refreshed"
	case Stale:
		return "stale"
	default:
		return "error"
	}
}

type entry[V any] struct {
	data      V
	timestamp time.Time
}

// TTL is a keyed cache with time-based expiry and stale fallback:
//   - a read younger than the TTL returns the cached value without fetching;
//   - an expired read fetches, and on failure returns the old value unchanged;
//   - only a miss whose first fetch fails returns an error.
//
// Concurrent refreshes of the same key share one fetch.
type TTL[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry[V]
	flight  singleflight.Group
}

// NewTTL returns an empty cache. now may be nil (time.Now).
func NewTTL[V any](ttl time.Duration, now func() time.Time) *TTL[V] {
	if now == nil {
		now = time.Now
	}
	return &TTL[V]{ttl: ttl, now: now, entries: make(map[string]entry[V])}
}

// Get returns the value for key, calling fetch when the entry is missing or expired.
func (c *TTL[V]) Get(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, Outcome, error) {
	if v, ok := c.fresh(key); ok {
		return v, Fresh, nil
	}
	// The flight outlives any single caller so one cancelled request does not
	// fail everyone waiting on the same key.
	flightCtx := context.WithoutCancel(ctx)
	res, err, _ := c.flight.Do(key, func() (any, error) {
		if v, ok := c.fresh(key); ok {
			return v, nil
		}
		v, err := fetch(flightCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry[V]{data: v, timestamp: c.now()}
		c.mu.Unlock()
		return v, nil
	})
	if err == nil {
		return res.(V), Refreshed, nil
	}
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return e.data, Stale, nil
	}
	var zero V
	return zero, Failed, err
}

// Peek returns the cached value regardless of age.
func (c *TTL[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.data, ok
}

// Len is the number of keys held.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTL[V]) fresh(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.timestamp) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.data, true
}
