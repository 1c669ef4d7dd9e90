package dispatch

import (
	"sync"
	"time"
)

// DefaultEscalationWindow is how long a first interrupt stays armed
// before the counter auto-resets.
const DefaultEscalationWindow = 5 * time.Second

// Escalator counts interrupts: the first arms a window, a second inside
// the window escalates (pausing the gate); an unconfirmed first
// interrupt resets on timer expiry.
type Escalator struct {
	mu         sync.Mutex
	armed      bool
	window     time.Duration
	timer      *time.Timer
	onEscalate func()
}

// NewEscalator creates an escalator firing onEscalate on the second
// interrupt inside the window.
func NewEscalator(window time.Duration, onEscalate func()) *Escalator {
	if window <= 0 {
		window = DefaultEscalationWindow
	}
	return &Escalator{window: window, onEscalate: onEscalate}
}

// Interrupt records one interrupt press. Returns true when this press
// escalated.
func (e *Escalator) Interrupt() bool {
	e.mu.Lock()
	if !e.armed {
		e.armed = true
		e.timer = time.AfterFunc(e.window, e.reset)
		e.mu.Unlock()
		return false
	}

	e.armed = false
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	fn := e.onEscalate
	e.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Armed reports whether a first interrupt is waiting for confirmation.
func (e *Escalator) Armed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armed
}

func (e *Escalator) reset() {
	e.mu.Lock()
	e.armed = false
	e.timer = nil
	e.mu.Unlock()
}
