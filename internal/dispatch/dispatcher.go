package dispatch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tOgg1/loom/internal/events"
	"github.com/tOgg1/loom/internal/logging"
	"github.com/tOgg1/loom/internal/models"
	"github.com/tOgg1/loom/internal/queue"
	"github.com/tOgg1/loom/internal/status"
)

// Sender is the opaque asynchronous transport hand-off. It may reject.
type Sender interface {
	Send(ctx context.Context, msg models.QueuedMessage) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg models.QueuedMessage) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, msg models.QueuedMessage) error {
	return f(ctx, msg)
}

// Recorder receives successfully dispatched messages, typically the
// append-only history store.
type Recorder interface {
	Record(ctx context.Context, msg models.QueuedMessage) error
}

// Dispatcher drains the tail queue head whenever the gate is open and
// the agent is idle. A single-flight flag set before the transport call
// and cleared only on settlement guarantees at most one concurrent
// dispatch.
type Dispatcher struct {
	queue  *queue.TailQueue
	gate   *Gate
	feed   *status.Feed
	sender Sender
	pub    *events.Publisher
	logger zerolog.Logger

	// notify surfaces transient, non-blocking warnings (send
	// rejections). May be nil.
	notify func(detail string)

	// recorder persists dispatched messages. May be nil.
	recorder Recorder

	mu       sync.Mutex
	inFlight bool
	active   string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithNotifier sets the transient-warning callback.
func WithNotifier(fn func(detail string)) Option {
	return func(d *Dispatcher) { d.notify = fn }
}

// WithRecorder sets the history recorder for dispatched messages.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// NewDispatcher wires a dispatcher to its collaborators and subscribes
// it to the queue, gate, and status triggers.
func NewDispatcher(q *queue.TailQueue, gate *Gate, feed *status.Feed, sender Sender, pub *events.Publisher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:  q,
		gate:   gate,
		feed:   feed,
		sender: sender,
		pub:    pub,
		logger: logging.Component("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}

	if pub != nil {
		_ = pub.Subscribe("dispatcher", events.Filter{
			Types: []events.Type{
				events.TypeQueueChanged,
				events.TypeGateChanged,
				events.TypeStatusChanged,
			},
		}, d.onTrigger)
	}
	return d
}

func (d *Dispatcher) lock()   { d.mu.Lock() }
func (d *Dispatcher) unlock() { d.mu.Unlock() }

// SwitchConversation makes a conversation active: editing state clears
// and the gate resets to open. An in-flight dispatch is not cancelled;
// it completes and lands in whichever conversation it targeted.
func (d *Dispatcher) SwitchConversation(conversationID string) {
	d.lock()
	prev := d.active
	d.active = conversationID
	d.unlock()

	if prev != "" && prev != conversationID {
		d.queue.ClearEditing(prev)
	}
	d.gate.SwitchConversation(conversationID)
	d.Evaluate()
}

// Active returns the active conversation.
func (d *Dispatcher) Active() string {
	d.lock()
	defer d.unlock()
	return d.active
}

// InFlight reports whether a dispatch is currently awaiting settlement.
func (d *Dispatcher) InFlight() bool {
	d.lock()
	defer d.unlock()
	return d.inFlight
}

func (d *Dispatcher) onTrigger(event events.Event) {
	if event.Type == events.TypeStatusChanged {
		d.lock()
		active := d.active
		d.unlock()
		if event.ConversationID == active {
			d.gate.ObserveStatus(d.feed.Idle(active))
		}
	}
	d.Evaluate()
}

// Evaluate pops and sends the queue head when every admission condition
// holds: gate open, agent idle, no queued item mid-edit, nothing in
// flight. Safe to call from event handlers; reentrant calls observe the
// in-flight flag and return.
func (d *Dispatcher) Evaluate() {
	d.lock()
	conv := d.active
	if conv == "" || d.inFlight {
		d.unlock()
		return
	}
	if d.gate.State() != GateOpen {
		d.unlock()
		return
	}
	if !d.feed.Idle(conv) {
		d.unlock()
		return
	}
	if _, editing := d.queue.Editing(conv); editing {
		d.unlock()
		return
	}

	// Claim the flight before touching the queue: DequeueHead publishes
	// queue.changed, which re-enters Evaluate.
	d.inFlight = true
	d.unlock()

	head, ok := d.queue.DequeueHead(conv)
	if !ok {
		d.lock()
		d.inFlight = false
		d.unlock()
		return
	}

	d.logger.Debug().
		Str("conversation_id", conv).
		Str("message_id", head.ID).
		Uint64("seq", head.InsertionSeq).
		Msg("dispatching queue head")

	go d.send(head)
}

// send hands one message to the transport and settles the flight. The
// head was removed before the call; a rejection is surfaced as a
// transient warning and the message is not re-queued.
func (d *Dispatcher) send(msg models.QueuedMessage) {
	err := d.sender.Send(context.Background(), msg)

	d.lock()
	d.inFlight = false
	d.unlock()

	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("conversation_id", msg.ConversationID).
			Str("message_id", msg.ID).
			Msg("dispatch rejected")
		if d.notify != nil {
			d.notify("send failed: " + err.Error())
		}
		if d.pub != nil {
			d.pub.Publish(events.Event{
				Type:           events.TypeMessageFailed,
				ConversationID: msg.ConversationID,
				Detail:         err.Error(),
			})
		}
		// Gate unchanged; the next idle tick attempts the new head.
		d.Evaluate()
		return
	}

	if d.recorder != nil {
		if recErr := d.recorder.Record(context.Background(), msg); recErr != nil {
			d.logger.Warn().Err(recErr).Str("message_id", msg.ID).Msg("history record failed")
		}
	}
	if d.pub != nil {
		d.pub.Publish(events.Event{
			Type:           events.TypeMessageDispatched,
			ConversationID: msg.ConversationID,
		})
	}
	d.Evaluate()
}

// SendDirect validates and hands a message straight to the transport,
// bypassing the queue. A direct submit while the gate is paused moves it
// to wait_busy. Returns the validation error, if any; transport errors
// surface through the notifier like queued sends.
func (d *Dispatcher) SendDirect(msg models.QueuedMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.gate.DirectSubmit()

	go func() {
		if err := d.sender.Send(context.Background(), msg); err != nil {
			d.logger.Warn().
				Err(err).
				Str("conversation_id", msg.ConversationID).
				Msg("direct send rejected")
			if d.notify != nil {
				d.notify("send failed: " + err.Error())
			}
			if d.pub != nil {
				d.pub.Publish(events.Event{
					Type:           events.TypeMessageFailed,
					ConversationID: msg.ConversationID,
					Detail:         err.Error(),
				})
			}
			return
		}
		if d.recorder != nil {
			if err := d.recorder.Record(context.Background(), msg); err != nil {
				d.logger.Warn().Err(err).Msg("history record failed")
			}
		}
		if d.pub != nil {
			d.pub.Publish(events.Event{
				Type:           events.TypeMessageDispatched,
				ConversationID: msg.ConversationID,
			})
		}
	}()
	return nil
}
