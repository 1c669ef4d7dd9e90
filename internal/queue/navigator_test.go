package queue

import "testing"

func TestNavigatorCyclicBounds(t *testing.T) {
	// P6: three move(-1) calls from unselected visit newest, middle,
	// oldest; a fourth wraps back to newest.
	q := New(nil)
	msgs := enqueueTexts(q, "conv-1", "oldest", "middle", "newest")

	nav := NewNavigator(q, "conv-1")

	wantOrder := []string{"newest", "middle", "oldest", "newest"}
	for i, want := range wantOrder {
		got, ok := nav.Move(-1)
		if !ok {
			t.Fatalf("Move(-1) #%d found nothing", i+1)
		}
		if got.Text != want {
			t.Fatalf("Move(-1) #%d = %q, want %q", i+1, got.Text, want)
		}
	}

	// Moving newer from newest wraps to oldest.
	got, ok := nav.Move(1)
	if !ok || got.Text != "oldest" {
		t.Fatalf("Move(1) after wrap = %q (%v), want oldest", got.Text, ok)
	}

	_ = msgs
}

func TestNavigatorUpFromUnselected(t *testing.T) {
	q := New(nil)
	enqueueTexts(q, "conv-1", "oldest", "newest")

	nav := NewNavigator(q, "conv-1")
	got, ok := nav.Move(1)
	if !ok || got.Text != "oldest" {
		t.Fatalf("Move(1) from unselected = %q (%v), want oldest", got.Text, ok)
	}
}

func TestNavigatorMarksEditing(t *testing.T) {
	q := New(nil)
	enqueueTexts(q, "conv-1", "a", "b")

	nav := NewNavigator(q, "conv-1")
	selected, _ := nav.Move(-1)

	if id, ok := q.Editing("conv-1"); !ok || id != selected.ID {
		t.Fatalf("Editing() = %q (%v), want %q", id, ok, selected.ID)
	}

	nav.Reset()
	if _, ok := q.Editing("conv-1"); ok {
		t.Fatal("Editing() still set after Reset()")
	}
}

func TestNavigatorCurrentAfterDispatch(t *testing.T) {
	q := New(nil)
	enqueueTexts(q, "conv-1", "only")

	nav := NewNavigator(q, "conv-1")
	if _, ok := nav.Move(-1); !ok {
		t.Fatal("Move(-1) found nothing")
	}

	q.DequeueHead("conv-1")
	if _, ok := nav.Current(); ok {
		t.Fatal("Current() returned a dispatched entry")
	}
	if _, ok := nav.Move(-1); ok {
		t.Fatal("Move(-1) on an empty queue returned an entry")
	}
}
