// Package ratelimit implements sliding-window admission control keyed by
// actor (principal id or client IP).
package ratelimit

import (
	"time"

	"parley-server/internal/guard/ttlcache"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter admits at most max requests per key within a trailing window.
// Named limiters may share one store; keys are prefixed with the limiter name
// so configurations stay independent.
type Limiter struct {
	name   string
	window time.Duration
	max    int
	store  *ttlcache.Cache[[]time.Time]
	now    func() time.Time
}

func NewLimiter(name string, window time.Duration, max int, store *ttlcache.Cache[[]time.Time]) *Limiter {
	if store == nil {
		store = ttlcache.New[[]time.Time]()
	}
	return &Limiter{
		name:   name,
		window: window,
		max:    max,
		store:  store,
		now:    time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
	l.store.SetClock(now)
}

func (l *Limiter) Name() string {
	return l.name
}

// Allow prunes timestamps older than the trailing window, then admits the
// request if fewer than max remain. On rejection RetryAfter is the time until
// the oldest admission leaves the window, always <= window.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()
	cutoff := now.Add(-l.window)
	storeKey := l.name + ":" + key

	var decision Decision
	l.store.Update(storeKey, func(times []time.Time, exists bool) ([]time.Time, time.Time) {
		pruned := times[:0]
		for _, ts := range times {
			if ts.After(cutoff) {
				pruned = append(pruned, ts)
			}
		}

		if len(pruned) >= l.max {
			oldest := pruned[0]
			decision = Decision{
				Allowed:    false,
				Limit:      l.max,
				Remaining:  0,
				ResetAt:    oldest.Add(l.window),
				RetryAfter: oldest.Add(l.window).Sub(now),
			}
			return pruned, pruned[len(pruned)-1].Add(l.window)
		}

		pruned = append(pruned, now)
		decision = Decision{
			Allowed:   true,
			Limit:     l.max,
			Remaining: l.max - len(pruned),
			ResetAt:   pruned[0].Add(l.window),
		}
		return pruned, now.Add(l.window)
	})

	return decision
}

// Sweep drops keys with no admissions left in the window.
func (l *Limiter) Sweep() int {
	return l.store.Sweep()
}
