// Package chattui is the conversation compose view: the input buffer,
// the tail queue strip, and the keybindings that route between direct
// submission, deferred queueing, and queued-message editing.
package chattui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tOgg1/loom/internal/composer"
	"github.com/tOgg1/loom/internal/dispatch"
	"github.com/tOgg1/loom/internal/events"
	"github.com/tOgg1/loom/internal/models"
	"github.com/tOgg1/loom/internal/queue"
	"github.com/tOgg1/loom/internal/status"
)

// SubmitDefaults carry the agent/model routing applied to every
// submission from this view.
type SubmitDefaults struct {
	Agent   string
	Model   string
	Variant string
}

// Options tune the compose view. Zero values fall back to the package
// defaults (default collapse thresholds, queue.PreviewWidth,
// dispatch.DefaultEscalationWindow).
type Options struct {
	Collapse        composer.CollapsePolicy
	PreviewWidth    int
	InterruptWindow time.Duration
}

// editingState tracks a queued message loaded into the live buffer for
// in-place editing, plus the stashed draft to restore afterwards.
type editingState struct {
	active  bool
	id      string
	stashed composer.Draft
}

// refreshMsg re-renders the view after an externally published change
// (queue drain, gate transition, status tick).
type refreshMsg struct{}

// Model is the compose view. It owns the composition; queue, gate, feed
// and dispatcher are shared with the rest of the app.
type Model struct {
	conversationID string
	defaults       SubmitDefaults

	comp         *composer.Composition
	queue        *queue.TailQueue
	nav          *queue.Navigator
	gate         *dispatch.Gate
	feed         *status.Feed
	dispatcher   *dispatch.Dispatcher
	escalator    *dispatch.Escalator
	collapse     composer.CollapsePolicy
	previewWidth int
	pub          *events.Publisher

	// refresh carries one pending wake-up from the event subscription to
	// the running program; waitForRefresh drains it.
	refresh chan struct{}

	// OnSubmit, when set, fires after a direct send has cleared the
	// composition.
	OnSubmit func(models.QueuedMessage)

	editing editingState

	width  int
	height int

	toast      string
	toastUntil time.Time
	err        string
}

// NewModel wires a compose view for one conversation.
func NewModel(
	conversationID string,
	defaults SubmitDefaults,
	q *queue.TailQueue,
	gate *dispatch.Gate,
	feed *status.Feed,
	dispatcher *dispatch.Dispatcher,
	opts Options,
	pub *events.Publisher,
) *Model {
	m := &Model{
		conversationID: conversationID,
		defaults:       defaults,
		comp:           composer.New(conversationID, pub),
		queue:          q,
		nav:            queue.NewNavigator(q, conversationID),
		gate:           gate,
		feed:           feed,
		dispatcher:     dispatcher,
		collapse:       opts.Collapse,
		previewWidth:   opts.PreviewWidth,
		pub:            pub,
		refresh:        make(chan struct{}, 1),
		width:          80,
		height:         24,
	}
	m.escalator = dispatch.NewEscalator(opts.InterruptWindow, gate.Pause)

	// The view redraws only on incoming messages; forward every core
	// change into the program as a refresh wake-up.
	if pub != nil {
		_ = pub.Subscribe("chattui:"+conversationID, events.Filter{
			Types: []events.Type{
				events.TypeQueueChanged,
				events.TypeGateChanged,
				events.TypeStatusChanged,
				events.TypeMessageDispatched,
				events.TypeMessageFailed,
			},
		}, func(events.Event) {
			select {
			case m.refresh <- struct{}{}:
			default:
			}
		})
	}

	dispatcher.SwitchConversation(conversationID)
	return m
}

// Close detaches the view from the event feed.
func (m *Model) Close() {
	if m.pub != nil {
		_ = m.pub.Unsubscribe("chattui:" + m.conversationID)
	}
}

// Composition exposes the live draft, mainly for tests and for callers
// inserting references programmatically (file picker, mention menu).
func (m *Model) Composition() *composer.Composition {
	return m.comp
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForRefresh()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case refreshMsg:
		// Re-arm so the next published change wakes the view again.
		return m, m.waitForRefresh()
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

// waitForRefresh blocks until the event subscription signals a change.
func (m *Model) waitForRefresh() tea.Cmd {
	return func() tea.Msg {
		<-m.refresh
		return refreshMsg{}
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	// Bracketed paste arrives as a single rune burst.
	if msg.Paste {
		m.insertPaste(string(msg.Runes))
		return nil
	}

	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "esc":
		m.handleInterrupt()
		return nil
	case "enter":
		return m.handleSubmit()
	case "ctrl+q":
		m.handleQueue()
		return nil
	case "ctrl+p":
		m.togglePause()
		return nil
	case "alt+up":
		m.navigate(-1)
		return nil
	case "alt+down":
		m.navigate(1)
		return nil
	case "ctrl+x":
		m.cancelSelected()
		return nil
	case "backspace", "ctrl+h":
		m.deleteRune()
		return nil
	}

	switch msg.Type {
	case tea.KeyRunes:
		if len(msg.Runes) > 0 {
			m.appendText(string(msg.Runes))
		}
	case tea.KeySpace:
		m.appendText(" ")
	}
	return nil
}

// handleInterrupt runs the two-stage escalation: the first press only
// arms the window, the second pauses the gate.
func (m *Model) handleInterrupt() {
	if m.editing.active {
		m.stopEditing(true)
		m.setToast("Edit discarded")
		return
	}
	if m.escalator.Interrupt() {
		m.setToast("Auto-send paused")
	} else {
		m.setToast("Press Esc again to pause auto-send")
	}
}

// handleSubmit resolves the draft. While editing a queued entry it
// commits the edit in place; otherwise it submits directly, bypassing
// the queue.
func (m *Model) handleSubmit() tea.Cmd {
	if m.comp.Empty() {
		return nil
	}

	if m.editing.active {
		m.commitEdit()
		return nil
	}

	sub := m.comp.ResolveForSubmission()
	msg := models.QueuedMessage{
		ConversationID: m.conversationID,
		Text:           sub.Text,
		Parts:          sub.Parts,
		Agent:          m.defaults.Agent,
		Model:          m.defaults.Model,
		Variant:        m.defaults.Variant,
	}
	if err := m.dispatcher.SendDirect(msg); err != nil {
		m.err = err.Error()
		return nil
	}
	m.err = ""
	m.comp.Clear()
	m.setToast("Sent")
	if m.OnSubmit != nil {
		m.OnSubmit(msg)
	}
	return nil
}

// handleQueue defers the draft to the tail queue.
func (m *Model) handleQueue() {
	if m.comp.Empty() {
		return
	}
	if m.editing.active {
		// Re-queueing while editing is the same as committing.
		m.commitEdit()
		return
	}

	sub := m.comp.ResolveForSubmission()
	msg := models.QueuedMessage{
		ConversationID: m.conversationID,
		Text:           sub.Text,
		Parts:          sub.Parts,
		Agent:          m.defaults.Agent,
		Model:          m.defaults.Model,
		Variant:        m.defaults.Variant,
	}
	// Same admission rule as direct submit: nothing without routing gets
	// queued either.
	if err := msg.Validate(); err != nil {
		m.err = err.Error()
		return
	}
	m.err = ""
	m.queue.Enqueue(msg)
	m.comp.Clear()
	m.setToast("Queued")
}

func (m *Model) togglePause() {
	if m.gate.State() == dispatch.GateOpen {
		m.gate.Pause()
		m.setToast("Auto-send paused")
	}
}

// navigate steps the queue cursor and loads the selected entry into the
// buffer for in-place editing. The first step stashes the live draft.
func (m *Model) navigate(direction int) {
	selected, ok := m.nav.Move(direction)
	if !ok {
		if m.editing.active {
			m.stopEditing(true)
		}
		return
	}

	if !m.editing.active {
		m.editing = editingState{
			active:  true,
			stashed: m.comp.Snapshot(),
		}
	}
	m.editing.id = selected.ID
	m.comp.Restore(composer.Draft{Text: selected.Text, Parts: selected.Parts})
}

// commitEdit writes the buffer back into the queued entry. The entry
// keeps its insertion sequence; if it was dispatched mid-edit the write
// is silently dropped and the buffer restored either way.
func (m *Model) commitEdit() {
	sub := m.comp.ResolveForSubmission()
	if m.queue.EditInPlace(m.editing.id, sub.Text, sub.Parts) {
		m.setToast("Queued message updated")
	}
	m.stopEditing(true)
}

// stopEditing leaves edit mode, optionally restoring the stashed draft.
func (m *Model) stopEditing(restore bool) {
	stashed := m.editing.stashed
	m.editing = editingState{}
	m.nav.Reset()
	if restore {
		m.comp.Restore(stashed)
	}
}

// cancelSelected removes the queue entry under the cursor.
func (m *Model) cancelSelected() {
	if !m.editing.active {
		return
	}
	if m.queue.Cancel(m.editing.id) {
		m.setToast("Queued message cancelled")
	}
	m.stopEditing(true)
}

func (m *Model) setToast(text string) {
	m.toast = strings.TrimSpace(text)
	m.toastUntil = time.Now().UTC().Add(2 * time.Second)
}
