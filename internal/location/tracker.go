package location

import (
	"context"
	"sync"
)

// Tracker holds what the device agent reports about location: permission,
// whether location services are on, and the latest fix. It is both the
// Permissions and the primary Source.
type Tracker struct {
	mu      sync.Mutex
	granted bool
	enabled bool
	last    *Position
	waiters []chan Position
}

// NewTracker starts with no permission, services on and no fix.
func NewTracker() *Tracker {
	return &Tracker{enabled: true}
}

// SetGranted records the permission result.
func (t *Tracker) SetGranted(granted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.granted = granted
}

// SetEnabled records whether location services are on.
func (t *Tracker) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *Tracker) Granted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.granted
}

func (t *Tracker) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Report stores a fix and wakes every pending Await.
func (t *Tracker) Report(p Position) {
	t.mu.Lock()
	t.last = &p
	waiters := t.waiters
	t.waiters = nil
	t.mu.Unlock()

	for _, w := range waiters {
		w <- p
	}
}

// Forget drops the cached fix.
func (t *Tracker) Forget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = nil
}

func (t *Tracker) LastKnown(ctx context.Context) (Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return Position{}, ErrNoFix
	}
	return *t.last, nil
}

// Await waits for the next Report.
func (t *Tracker) Await(ctx context.Context) (Position, error) {
	ch := make(chan Position, 1)

	t.mu.Lock()
	t.waiters = append(t.waiters, ch)
	t.mu.Unlock()

	select {
	case p := <-ch:
		return p, nil
	case <-ctx.Done():
		t.removeWaiter(ch)
		return Position{}, ctx.Err()
	}
}

func (t *Tracker) removeWaiter(ch chan Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, w := range t.waiters {
		if w == ch {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}
}
