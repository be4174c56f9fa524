package calendar

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Throttle is a best-effort, process-local guard against redundant
// on-demand syncs for the same user. It is an optimization, not a
// correctness mechanism: syncs that slip past it are safe because the
// mirror upserts are idempotent.
type Throttle struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]throttleEntry
}

type throttleEntry struct {
	lastRun  time.Time
	inFlight bool
}

// NewThrottle creates a throttle with the given TTL and clock.
func NewThrottle(ttl time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{
		ttl:     ttl,
		now:     now,
		entries: make(map[uuid.UUID]throttleEntry),
	}
}

// TryAcquire reports whether a sync for the user may run now. A second
// trigger inside the TTL window, or while a sync is in flight, is a no-op
// rather than a queued duplicate.
func (t *Throttle) TryAcquire(userID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.entries[userID]
	if entry.inFlight {
		return false
	}
	now := t.now()
	if !entry.lastRun.IsZero() && now.Sub(entry.lastRun) < t.ttl {
		return false
	}

	t.entries[userID] = throttleEntry{lastRun: now, inFlight: true}
	return true
}

// Release marks the user's sync as no longer in flight. The TTL window
// still applies from acquisition time.
func (t *Throttle) Release(userID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.entries[userID]
	entry.inFlight = false
	t.entries[userID] = entry
}
