// Package ttlcache provides a mutex-guarded expiring map shared by the rate
// limiter, duplicate detector and session guard.
package ttlcache

import (
	"sort"
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	deadline time.Time
	storedAt time.Time
}

// Cache maps string keys to values with per-entry deadlines. Expired entries
// are invisible to Get and reclaimed by Sweep.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	now     func() time.Time
}

func New[V any]() *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Set stores value under key until deadline.
func (c *Cache[V]) Set(key string, value V, deadline time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, deadline: deadline, storedAt: c.now()}
}

// Get returns the live value for key, if any.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.deadline.After(c.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// StoredAt returns when the live entry for key was recorded.
func (c *Cache[V]) StoredAt(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.deadline.After(c.now()) {
		return time.Time{}, false
	}
	return e.storedAt, true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len counts all entries, expired ones included; Sweep reclaims those.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes every entry whose deadline has passed and reports how many
// were dropped.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if !e.deadline.After(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// EvictOldest drops the given fraction of entries, oldest first by insertion
// time. Used by callers with a hard size cap.
func (c *Cache[V]) EvictOldest(fraction float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := int(float64(len(c.entries)) * fraction)
	if count <= 0 {
		return 0
	}

	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, e := range c.entries {
		all = append(all, aged{key: key, storedAt: e.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	for i := 0; i < count; i++ {
		delete(c.entries, all[i].key)
	}
	return count
}

// Update atomically applies fn to the current live value (or the zero value
// when absent) and stores the result with the returned deadline. fn runs under
// the cache lock; it must not call back into the cache.
func (c *Cache[V]) Update(key string, fn func(value V, exists bool) (V, time.Time)) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cur, ok := c.entries[key]
	var value V
	exists := ok && cur.deadline.After(now)
	if exists {
		value = cur.value
	}

	next, deadline := fn(value, exists)
	storedAt := now
	if exists {
		storedAt = cur.storedAt
	}
	c.entries[key] = entry[V]{value: next, deadline: deadline, storedAt: storedAt}
	return next
}
