// Package cache provides a small time-to-live cache for upstream data
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type entry[V any] struct {
	value     V
	updatedAt time.Time
}

// TTL holds values for a fixed freshness period
type TTL[K comparable, V any] struct {
	ttl     time.Duration
	clock   clockwork.Clock
	entries map[K]entry[V]
	mutex   sync.RWMutex
}

// NewTTL creates a cache whose entries are fresh for ttl. A nil clock uses real time.
func NewTTL[K comparable, V any](ttl time.Duration, clock clockwork.Clock) *TTL[K, V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TTL[K, V]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[K]entry[V]),
	}
}

// Get returns a fresh value and the time it was stored
func (c *TTL[K, V]) Get(key K) (V, time.Time, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.clock.Since(e.updatedAt) >= c.ttl {
		var zero V
		return zero, time.Time{}, false
	}
	return e.value, e.updatedAt, true
}

// Set stores a value stamped with the current time
func (c *TTL[K, V]) Set(key K, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[key] = entry[V]{value: value, updatedAt: c.clock.Now()}
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors are not cached.
func (c *TTL[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, _, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}
