package chattui

import (
	"github.com/tOgg1/loom/internal/composer"
	"github.com/tOgg1/loom/internal/models"
	"github.com/tOgg1/loom/internal/spans"
)

// appendText appends typed runes at the end of the buffer. Markers are
// untouched: a pure tail append cannot overlap any placeholder.
func (m *Model) appendText(text string) {
	if text == "" {
		return
	}
	m.applyTailEdit(m.comp.Text() + text)
}

// deleteRune removes the last rune. When that rune belonged to a
// placeholder, the marker is orphaned by the edit and its part dropped.
func (m *Model) deleteRune() {
	text := m.comp.Text()
	if text == "" {
		return
	}
	runes := []rune(text)
	m.applyTailEdit(string(runes[:len(runes)-1]))
}

// applyTailEdit reports the post-edit extents for an edit confined to
// the buffer tail: every marker fully inside the new length survives
// unchanged, anything truncated is destroyed.
func (m *Model) applyTailEdit(newText string) {
	extents := make(map[spans.MarkerID]composer.Extent)
	for _, marker := range m.comp.Markers() {
		if marker.End <= len(newText) {
			extents[marker.ID] = composer.Extent{Start: marker.Start, End: marker.End}
		}
	}
	m.comp.ApplyEdit(newText, extents)
}

// insertPaste inserts pasted text at the buffer tail, collapsing large
// pastes into a placeholder part per the collapse policy.
func (m *Model) insertPaste(text string) {
	if text == "" {
		return
	}
	if !m.collapse.ShouldCollapse(text) {
		m.appendText(text)
		return
	}

	display := composer.PastePlaceholder(text)
	if _, err := m.comp.InsertExpansion(len(m.comp.Text()), display, text); err != nil {
		m.err = err.Error()
	}
}

// InsertFileReference anchors a file reference at the buffer tail. Used
// by the file picker.
func (m *Model) InsertFileReference(display string, ref models.FileReferencePayload) error {
	part := models.NewFileReferencePart(display, ref)
	_, err := m.comp.InsertReference(len(m.comp.Text()), display, part)
	return err
}

// InsertAgentMention anchors an agent mention at the buffer tail.
func (m *Model) InsertAgentMention(display string, mention models.AgentMentionPayload) error {
	part := models.NewAgentMentionPart(display, mention)
	_, err := m.comp.InsertReference(len(m.comp.Text()), display, part)
	return err
}
