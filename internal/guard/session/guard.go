// Package session enforces idle-session timeouts independent of token expiry.
package session

import (
	"errors"
	"time"

	"parley-server/internal/guard/ttlcache"
)

// ErrExpired marks a session rejected for inactivity. Callers translate it to
// a response whose reason is distinct from JWT expiry.
var ErrExpired = errors.New("session expired due to inactivity")

type record struct {
	lastActivity time.Time
	timeout      time.Duration
}

// Guard tracks per-user last activity and rejects requests once the idle time
// exceeds the user's timeout, clamped to [minTimeout, maxTimeout].
type Guard struct {
	defaultTimeout time.Duration
	minTimeout     time.Duration
	maxTimeout     time.Duration
	store          *ttlcache.Cache[record]
	now            func() time.Time
}

func NewGuard(defaultTimeout, minTimeout, maxTimeout time.Duration) *Guard {
	return &Guard{
		defaultTimeout: defaultTimeout,
		minTimeout:     minTimeout,
		maxTimeout:     maxTimeout,
		store:          ttlcache.New[record](),
		now:            time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (g *Guard) SetClock(now func() time.Time) {
	g.now = now
	g.store.SetClock(now)
}

// Check rejects the user once "now - last activity" exceeds their timeout. A
// user with no record yet passes; their clock starts on the first Touch.
func (g *Guard) Check(userID string) error {
	rec, ok := g.store.Get(userID)
	if !ok {
		return nil
	}
	if g.now().Sub(rec.lastActivity) > rec.timeout {
		return ErrExpired
	}
	return nil
}

// Touch refreshes the user's activity time, keeping their configured timeout.
func (g *Guard) Touch(userID string) {
	now := g.now()
	g.store.Update(userID, func(rec record, exists bool) (record, time.Time) {
		timeout := g.defaultTimeout
		if exists {
			timeout = rec.timeout
		}
		return record{lastActivity: now, timeout: timeout}, now.Add(timeout).Add(g.maxTimeout)
	})
}

// SetTimeout sets the user's idle timeout, clamped to the configured bounds,
// and returns the effective value.
func (g *Guard) SetTimeout(userID string, timeout time.Duration) time.Duration {
	if timeout < g.minTimeout {
		timeout = g.minTimeout
	}
	if timeout > g.maxTimeout {
		timeout = g.maxTimeout
	}

	now := g.now()
	g.store.Update(userID, func(rec record, exists bool) (record, time.Time) {
		last := now
		if exists {
			last = rec.lastActivity
		}
		return record{lastActivity: last, timeout: timeout}, last.Add(timeout).Add(g.maxTimeout)
	})
	return timeout
}

// Status reports the remaining idle time and absolute expiry for the user,
// for client-side warnings.
func (g *Guard) Status(userID string) (remaining time.Duration, expiresAt time.Time) {
	rec, ok := g.store.Get(userID)
	if !ok {
		return g.defaultTimeout, g.now().Add(g.defaultTimeout)
	}
	expiresAt = rec.lastActivity.Add(rec.timeout)
	remaining = expiresAt.Sub(g.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, expiresAt
}

// Sweep reclaims records idle far past their timeout.
func (g *Guard) Sweep() int {
	return g.store.Sweep()
}
