package loop

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven entirely by its caller: posted work runs on
// Flush and timers fire on Tick. Used by tests and headless hosts that
// already own an event loop.
type Manual struct {
	mu     sync.Mutex
	queue  []func()
	timers []*manualTimer
}

type manualTimer struct {
	interval  time.Duration
	fn        func()
	cancelled bool
}

// NewManual creates an idle manual scheduler
func NewManual() *Manual {
	return &Manual{}
}

// Post queues fn until the next Flush
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// Every registers fn to run on each Tick until cancelled
func (m *Manual) Every(interval time.Duration, fn func()) func() {
	t := &manualTimer{interval: interval, fn: fn}

	m.mu.Lock()
	m.timers = append(m.timers, t)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		t.cancelled = true
		m.mu.Unlock()
	}
}

// Flush runs queued work, including work queued while flushing
func (m *Manual) Flush() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
	}
}

// Tick fires every live timer once, then flushes
func (m *Manual) Tick() {
	m.mu.Lock()
	live := make([]*manualTimer, 0, len(m.timers))
	for _, t := range m.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.timers = live
	m.mu.Unlock()

	for _, t := range live {
		t := t
		m.Post(func() {
			m.mu.Lock()
			cancelled := t.cancelled
			m.mu.Unlock()
			if !cancelled {
				t.fn()
			}
		})
	}
	m.Flush()
}

// Pending returns the number of queued functions
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// ActiveTimers returns the number of timers not yet cancelled
func (m *Manual) ActiveTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}
