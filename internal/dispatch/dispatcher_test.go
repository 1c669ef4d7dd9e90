package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tOgg1/loom/internal/events"
	"github.com/tOgg1/loom/internal/models"
	"github.com/tOgg1/loom/internal/queue"
	"github.com/tOgg1/loom/internal/status"
)

// blockingSender counts concurrent sends and holds each one until
// released.
type blockingSender struct {
	mu         sync.Mutex
	inFlight   int32
	maxSeen    int32
	calls      int32
	release    chan struct{}
	dispatched []string
}

func newBlockingSender() *blockingSender {
	return &blockingSender{release: make(chan struct{})}
}

func (s *blockingSender) Send(_ context.Context, msg models.QueuedMessage) error {
	cur := atomic.AddInt32(&s.inFlight, 1)
	for {
		max := atomic.LoadInt32(&s.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&s.maxSeen, max, cur) {
			break
		}
	}
	atomic.AddInt32(&s.calls, 1)

	<-s.release

	s.mu.Lock()
	s.dispatched = append(s.dispatched, msg.Text)
	s.mu.Unlock()
	atomic.AddInt32(&s.inFlight, -1)
	return nil
}

func (s *blockingSender) releaseAll() {
	close(s.release)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestRig(sender Sender) (*queue.TailQueue, *Gate, *status.Feed, *Dispatcher, *events.Publisher) {
	pub := events.NewPublisher()
	q := queue.New(pub)
	gate := NewGate(pub)
	feed := status.NewFeed(pub)
	d := NewDispatcher(q, gate, feed, sender, pub)
	return q, gate, feed, d, pub
}

func TestSingleFlight(t *testing.T) {
	// P2: while a dispatch is in flight, no second send is issued no
	// matter how many state-change ticks occur.
	sender := newBlockingSender()
	q, _, feed, d, _ := newTestRig(sender)

	d.SwitchConversation("conv-1")
	feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateIdle})

	for i := 0; i < 3; i++ {
		q.Enqueue(models.QueuedMessage{
			ConversationID: "conv-1",
			Text:           "queued",
			Agent:          "coder",
			Model:          "large",
		})
	}

	waitFor(t, func() bool { return atomic.LoadInt32(&sender.calls) == 1 })

	// Hammer the evaluation triggers while the first send is blocked.
	for i := 0; i < 25; i++ {
		d.Evaluate()
		feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateRunning})
		feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateIdle})
	}

	if got := atomic.LoadInt32(&sender.calls); got != 1 {
		t.Fatalf("sender calls while blocked = %d, want 1", got)
	}

	sender.releaseAll()
	waitFor(t, func() bool { return atomic.LoadInt32(&sender.calls) == 3 })

	if max := atomic.LoadInt32(&sender.maxSeen); max != 1 {
		t.Fatalf("max concurrent sends = %d, want 1", max)
	}
	waitFor(t, func() bool { return q.Len("conv-1") == 0 })
}

func TestDrainPreservesOrderAcrossEdits(t *testing.T) {
	sender := newBlockingSender()
	sender.releaseAll()
	q, _, feed, d, _ := newTestRig(sender)

	d.SwitchConversation("conv-1")

	// Hold the drain until the edit is in place.
	feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateRunning})

	msgs := make([]models.QueuedMessage, 0, 3)
	for _, text := range []string{"message 1", "message 2", "message 3"} {
		msgs = append(msgs, q.Enqueue(models.QueuedMessage{
			ConversationID: "conv-1",
			Text:           text,
			Agent:          "coder",
			Model:          "large",
		}))
	}
	q.EditInPlace(msgs[1].ID, "message 2xyz", nil)

	feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateIdle})
	d.Evaluate()
	waitFor(t, func() bool { return atomic.LoadInt32(&sender.calls) == 3 })

	sender.mu.Lock()
	defer sender.mu.Unlock()
	want := []string{"message 1", "message 2xyz", "message 3"}
	for i := range want {
		if sender.dispatched[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", sender.dispatched, want)
		}
	}
}

func TestNoDispatchWhileGateClosed(t *testing.T) {
	// P5: Open -> Paused -> WaitBusy -> WaitIdle -> Open, with no
	// auto-dispatch while the gate is anything but open.
	sender := newBlockingSender()
	sender.releaseAll()
	q, gate, feed, d, _ := newTestRig(sender)

	d.SwitchConversation("conv-1")
	feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateIdle})

	if gate.State() != GateOpen {
		t.Fatalf("initial gate = %s, want open", gate.State())
	}

	gate.Pause()
	if gate.State() != GatePaused {
		t.Fatalf("gate after Pause() = %s, want paused", gate.State())
	}

	q.Enqueue(models.QueuedMessage{
		ConversationID: "conv-1",
		Text:           "deferred",
		Agent:          "coder",
		Model:          "large",
	})
	d.Evaluate()
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&sender.calls) != 0 {
		t.Fatal("auto-dispatch fired while gate paused")
	}

	gate.DirectSubmit()
	if gate.State() != GateWaitBusy {
		t.Fatalf("gate after DirectSubmit() = %s, want wait_busy", gate.State())
	}

	feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateRunning})
	if gate.State() != GateWaitIdle {
		t.Fatalf("gate after idle->running = %s, want wait_idle", gate.State())
	}
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&sender.calls) != 0 {
		t.Fatal("auto-dispatch fired while gate waiting")
	}

	feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateIdle})
	if gate.State() != GateOpen {
		t.Fatalf("gate after running->idle = %s, want open", gate.State())
	}

	waitFor(t, func() bool { return atomic.LoadInt32(&sender.calls) == 1 })
}

func TestRejectionIsFireAndForget(t *testing.T) {
	var calls int32
	rejectFirst := SenderFunc(func(_ context.Context, msg models.QueuedMessage) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transport unavailable")
		}
		return nil
	})

	pub := events.NewPublisher()
	q := queue.New(pub)
	gate := NewGate(pub)
	feed := status.NewFeed(pub)

	var warnings []string
	var warnMu sync.Mutex
	d := NewDispatcher(q, gate, feed, rejectFirst, pub, WithNotifier(func(detail string) {
		warnMu.Lock()
		warnings = append(warnings, detail)
		warnMu.Unlock()
	}))

	d.SwitchConversation("conv-1")
	feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateIdle})

	q.Enqueue(models.QueuedMessage{ConversationID: "conv-1", Text: "first", Agent: "a", Model: "m"})
	q.Enqueue(models.QueuedMessage{ConversationID: "conv-1", Text: "second", Agent: "a", Model: "m"})

	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 2 })
	waitFor(t, func() bool { return q.Len("conv-1") == 0 })

	// Rejected message is not re-queued; gate stays open.
	if gate.State() != GateOpen {
		t.Fatalf("gate after rejection = %s, want open", gate.State())
	}
	warnMu.Lock()
	defer warnMu.Unlock()
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
}

func TestNoDispatchWhileEditing(t *testing.T) {
	sender := newBlockingSender()
	sender.releaseAll()
	q, _, feed, d, _ := newTestRig(sender)

	d.SwitchConversation("conv-1")

	// Hold the drain until the editing flag is set.
	feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateRunning})

	msg := q.Enqueue(models.QueuedMessage{ConversationID: "conv-1", Text: "held", Agent: "a", Model: "m"})
	q.SetEditing("conv-1", msg.ID)

	feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateIdle})
	d.Evaluate()
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&sender.calls) != 0 {
		t.Fatal("dispatched a message that was mid-edit")
	}

	q.ClearEditing("conv-1")
	d.Evaluate()
	waitFor(t, func() bool { return atomic.LoadInt32(&sender.calls) == 1 })
}

func TestSwitchConversationResetsGate(t *testing.T) {
	sender := newBlockingSender()
	sender.releaseAll()
	_, gate, _, d, _ := newTestRig(sender)

	d.SwitchConversation("conv-1")
	gate.Pause()
	d.SwitchConversation("conv-2")

	if gate.State() != GateOpen {
		t.Fatalf("gate after conversation switch = %s, want open", gate.State())
	}
	if d.Active() != "conv-2" {
		t.Fatalf("Active() = %s, want conv-2", d.Active())
	}
}

func TestSendDirectValidates(t *testing.T) {
	sender := newBlockingSender()
	sender.releaseAll()
	_, gate, _, d, _ := newTestRig(sender)
	d.SwitchConversation("conv-1")

	err := d.SendDirect(models.QueuedMessage{ConversationID: "conv-1", Text: "no agent"})
	var verrs *models.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("SendDirect() without agent/model error = %v, want validation errors", err)
	}
	if atomic.LoadInt32(&sender.calls) != 0 {
		t.Fatal("invalid submission reached the transport")
	}

	gate.Pause()
	if err := d.SendDirect(models.QueuedMessage{ConversationID: "conv-1", Text: "ok", Agent: "a", Model: "m"}); err != nil {
		t.Fatalf("SendDirect() error: %v", err)
	}
	if gate.State() != GateWaitBusy {
		t.Fatalf("gate after direct submit while paused = %s, want wait_busy", gate.State())
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&sender.calls) == 1 })
}
