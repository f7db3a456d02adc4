package reconcile

import (
	"sync"
	"time"
)

// Scheduler runs a pending flush at some later point. Implementations must
// not call fn synchronously from Schedule, so that edits enqueued in the
// same burst coalesce into one flush.
type Scheduler interface {
	Schedule(fn func())
}

// AfterFunc flushes once window has elapsed. A zero window still defers the
// flush to another goroutine.
type AfterFunc time.Duration

func (d AfterFunc) Schedule(fn func()) {
	time.AfterFunc(time.Duration(d), fn)
}

// Manual holds scheduled flushes until RunPending is called. It is used by
// the CLI and by tests that need to step through cycles.
type Manual struct {
	mu      sync.Mutex
	pending []func()
}

func (m *Manual) Schedule(fn func()) {
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
}

// Len is the number of flushes waiting to run.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// RunPending runs every flush scheduled so far and returns how many ran.
// Flushes scheduled while running are left for the next call.
func (m *Manual) RunPending() int {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
	return len(pending)
}
