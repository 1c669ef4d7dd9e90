package status

import (
	"sync/atomic"
	"testing"

	"github.com/tOgg1/loom/internal/events"
	"github.com/tOgg1/loom/internal/models"
)

func TestUnknownConversationIsIdle(t *testing.T) {
	feed := NewFeed(nil)

	if !feed.Idle("never-seen") {
		t.Error("unknown conversation reported busy")
	}
	if got := feed.Get("never-seen").State; got != models.ConversationStateIdle {
		t.Errorf("Get() state = %s, want idle", got)
	}
}

func TestSetAndGet(t *testing.T) {
	feed := NewFeed(nil)

	feed.Set("conv-1", models.ConversationStatus{
		State:        models.ConversationStateRetrying,
		RetryAttempt: 2,
		RetryMessage: "rate limited",
	})

	st := feed.Get("conv-1")
	if st.State != models.ConversationStateRetrying {
		t.Errorf("state = %s, want retrying", st.State)
	}
	if st.RetryAttempt != 2 {
		t.Errorf("retry attempt = %d, want 2", st.RetryAttempt)
	}
	if feed.Idle("conv-1") {
		t.Error("retrying conversation reported idle")
	}
}

func TestRepeatedIdenticalStatusIsNotPublished(t *testing.T) {
	pub := events.NewPublisher()
	defer pub.Close()

	var published int32
	_ = pub.Subscribe("test", events.Filter{Types: []events.Type{events.TypeStatusChanged}}, func(events.Event) {
		atomic.AddInt32(&published, 1)
	})

	feed := NewFeed(pub)
	running := models.ConversationStatus{State: models.ConversationStateRunning}

	feed.Set("conv-1", running)
	feed.Set("conv-1", running)
	feed.Set("conv-1", running)
	feed.Set("conv-1", models.ConversationStatus{State: models.ConversationStateIdle})

	if got := atomic.LoadInt32(&published); got != 2 {
		t.Errorf("status.changed events = %d, want 2", got)
	}
}
