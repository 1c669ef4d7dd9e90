// Package dispatch decides when deferred messages leave the tail queue:
// a four-state admission gate plus a single-flight dispatcher that drains
// the queue head whenever the gate is open and the agent is idle.
package dispatch

import (
	"sync"

	"github.com/tOgg1/loom/internal/events"
)

// GateState is the admission-control state for automatic dispatch.
type GateState string

const (
	// GateOpen permits automatic dispatch. Default state.
	GateOpen GateState = "open"

	// GatePaused suspends automatic dispatch; entered when the user
	// escalates an interrupt, so a queued message cannot fire straight
	// into a freshly interrupted turn.
	GatePaused GateState = "paused"

	// GateWaitBusy waits for the agent to leave idle after a direct
	// submit while paused.
	GateWaitBusy GateState = "wait_busy"

	// GateWaitIdle waits for the agent to return to idle before the
	// next dispatch.
	GateWaitIdle GateState = "wait_idle"
)

// Gate is the admission-control machine, scoped to the active
// conversation and reset to open on every conversation switch.
type Gate struct {
	mu             sync.Mutex
	state          GateState
	conversationID string
	pub            *events.Publisher
}

// NewGate creates a gate in the open state. The publisher may be nil.
func NewGate(pub *events.Publisher) *Gate {
	return &Gate{state: GateOpen, pub: pub}
}

// State returns the current gate state.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SwitchConversation rebinds the gate to a conversation and resets it to
// open.
func (g *Gate) SwitchConversation(conversationID string) {
	g.mu.Lock()
	g.conversationID = conversationID
	changed := g.state != GateOpen
	g.state = GateOpen
	g.mu.Unlock()

	if changed {
		g.publish()
	}
}

// Pause suspends automatic dispatch after an escalated interrupt.
func (g *Gate) Pause() {
	g.transition(func(s GateState) (GateState, bool) {
		return GatePaused, s != GatePaused
	})
}

// DirectSubmit records an explicit send while paused: the gate moves to
// wait_busy and resumes automatic dispatch only after the agent has been
// observed busy and idle again.
func (g *Gate) DirectSubmit() {
	g.transition(func(s GateState) (GateState, bool) {
		if s == GatePaused {
			return GateWaitBusy, true
		}
		return s, false
	})
}

// ObserveStatus feeds the agent's idle observation into the machine:
// wait_busy leaves once the agent is seen non-idle, wait_idle leaves once
// it returns to idle.
func (g *Gate) ObserveStatus(idle bool) {
	g.transition(func(s GateState) (GateState, bool) {
		switch {
		case s == GateWaitBusy && !idle:
			return GateWaitIdle, true
		case s == GateWaitIdle && idle:
			return GateOpen, true
		default:
			return s, false
		}
	})
}

func (g *Gate) transition(fn func(GateState) (GateState, bool)) {
	g.mu.Lock()
	next, changed := fn(g.state)
	g.state = next
	g.mu.Unlock()

	if changed {
		g.publish()
	}
}

func (g *Gate) publish() {
	if g.pub == nil {
		return
	}
	g.mu.Lock()
	conv := g.conversationID
	g.mu.Unlock()
	g.pub.Publish(events.Event{
		Type:           events.TypeGateChanged,
		ConversationID: conv,
	})
}
