package reddit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// throttle spaces requests at least interval apart. Callers reserve the next
// slot under the lock and sleep outside it, so waits queue in arrival order.
type throttle struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	interval time.Duration
	next     time.Time
}

func newThrottle(clock clockwork.Clock, interval time.Duration) *throttle {
	return &throttle{clock: clock, interval: interval}
}

// Wait blocks until the caller may send a request or ctx is done.
func (t *throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	now := t.clock.Now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := t.clock.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// PauseUntil holds every request back until at least until.
func (t *throttle) PauseUntil(until time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if until.After(t.next) {
		t.next = until
	}
}
