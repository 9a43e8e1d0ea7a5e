package session

import (
	"sync"
	"time"
)

// Timer is a resettable one-shot schedule. Arm replaces any pending schedule,
// so rapid repeated updates to a stream collapse into a single eventual
// firing. A firing that lost the race against a later Arm or Stop is
// suppressed, which makes stale callbacks after a stage reset harmless.
type Timer struct {
	mu    sync.Mutex
	t     *time.Timer
	gen   uint64
	armed bool
}

func NewTimer() *Timer { return &Timer{} }

// Arm schedules fn to run after d, cancelling any previously armed schedule.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.armed = true
	if t.t != nil {
		t.t.Stop()
	}
	t.t = time.AfterFunc(d, func() {
		t.mu.Lock()
		live := gen == t.gen
		if live {
			t.armed = false
		}
		t.mu.Unlock()
		if live {
			fn()
		}
	})
	t.mu.Unlock()
}

// Stop cancels any pending schedule. Safe to call repeatedly.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.gen++
	t.armed = false
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.mu.Unlock()
}

// Armed reports whether a schedule is pending.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}
