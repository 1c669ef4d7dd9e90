package chattui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/loom/internal/dispatch"
	"github.com/tOgg1/loom/internal/models"
)

var (
	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	stripStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	editingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStrip())

	if line := m.renderNotice(); line != "" {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

func (m *Model) renderInput() string {
	text := m.comp.Text()
	if !m.editing.active {
		text += "_"
	} else {
		text += "▌"
	}

	width := maxInt(20, m.width-4)
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		lines = append(lines, wrapLine(raw, width)...)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}

	return inputStyle.Width(width).Render(strings.Join(lines, "\n"))
}

// renderStrip is the one-line status strip under the input: gate state,
// conversation status, queue preview.
func (m *Model) renderStrip() string {
	segments := []string{m.gateLabel(), m.statusLabel()}

	preview := m.queue.Preview(m.conversationID, m.previewWidth)
	if preview.Count > 0 {
		label := fmt.Sprintf("queued %d: %s", preview.Count, preview.PreviewText)
		if m.editing.active {
			label = editingStyle.Render("editing") + "  " + label
		}
		segments = append(segments, label)
	}

	line := strings.Join(segments, "  │  ")
	return stripStyle.Width(maxInt(0, m.width-2)).Render(truncateLine(line, maxInt(10, m.width-4)))
}

func (m *Model) gateLabel() string {
	switch m.gate.State() {
	case dispatch.GatePaused:
		return pausedStyle.Render("paused")
	case dispatch.GateWaitBusy, dispatch.GateWaitIdle:
		return pausedStyle.Render("resuming…")
	default:
		if m.escalator.Armed() {
			return pausedStyle.Render("esc again to pause")
		}
		return "auto"
	}
}

func (m *Model) statusLabel() string {
	st := m.feed.Get(m.conversationID)
	switch st.State {
	case models.ConversationStateRunning:
		return "running"
	case models.ConversationStateRetrying:
		label := fmt.Sprintf("retrying (attempt %d)", st.RetryAttempt)
		if !st.NextRetryAt.IsZero() {
			if wait := time.Until(st.NextRetryAt); wait > 0 {
				label += fmt.Sprintf(" in %s", wait.Round(time.Second))
			}
		}
		return label
	default:
		return "idle"
	}
}

func (m *Model) renderNotice() string {
	if m.err != "" {
		return errStyle.Render(truncateLine("error: "+m.err, maxInt(10, m.width-2)))
	}
	if m.toast != "" && time.Now().UTC().Before(m.toastUntil) {
		return toastStyle.Render(truncateLine(m.toast, maxInt(10, m.width-2)))
	}
	return ""
}

func wrapLine(line string, width int) []string {
	if width < 1 || len(line) <= width {
		return []string{line}
	}
	var out []string
	runes := []rune(line)
	for len(runes) > width {
		out = append(out, string(runes[:width]))
		runes = runes[width:]
	}
	return append(out, string(runes))
}

func truncateLine(line string, width int) string {
	runes := []rune(line)
	if len(runes) <= width {
		return line
	}
	if width < 1 {
		return ""
	}
	return string(runes[:width-1]) + "…"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
