// Package composer owns the live draft: raw text plus the ordered parts
// anchored inside it. It is the single bridge between edit events, the
// span index, and submission.
package composer

import (
	"errors"
	"sort"
	"strings"

	"github.com/tOgg1/loom/internal/events"
	"github.com/tOgg1/loom/internal/models"
	"github.com/tOgg1/loom/internal/spans"
)

// Composer errors.
var (
	ErrAnchorOutOfBounds  = errors.New("anchor offset out of buffer bounds")
	ErrAnchorInsideMarker = errors.New("anchor offset inside a marker range")
	ErrNotExpandable      = errors.New("part kind cannot be inserted as expansion")
)

// separator is appended after every inserted display placeholder so the
// cursor lands outside the marker range.
const separator = " "

// Extent is an authoritative post-edit range reported by the text buffer.
type Extent struct {
	Start int
	End   int
}

// Draft is a serializable snapshot of a composition, used for stashing
// and for round-trips through an external editor.
type Draft struct {
	Text  string        `json:"text"`
	Parts []models.Part `json:"parts,omitempty"`
}

// Submission is the resolved form handed to the transport: expanded text
// plus the non-text parts in buffer order.
type Submission struct {
	Text  string
	Parts []models.Part
}

// Composition is the editable draft. It is the sole owner of the mutable
// buffer; the span index holds only range descriptors.
type Composition struct {
	conversationID string
	text           string
	index          *spans.Index
	parts          []models.Part
	markerToPart   map[spans.MarkerID]int
	pub            *events.Publisher
}

// New creates an empty composition for a conversation. The publisher may
// be nil when no subscribers care about buffer edits.
func New(conversationID string, pub *events.Publisher) *Composition {
	return &Composition{
		conversationID: conversationID,
		index:          spans.NewIndex(0),
		markerToPart:   make(map[spans.MarkerID]int),
		pub:            pub,
	}
}

// Text returns the current raw buffer text.
func (c *Composition) Text() string {
	return c.text
}

// Parts returns the ordered live parts.
func (c *Composition) Parts() []models.Part {
	out := make([]models.Part, len(c.parts))
	copy(out, c.parts)
	return out
}

// Markers returns the live markers in buffer order.
func (c *Composition) Markers() []spans.Marker {
	return c.index.Live()
}

// Empty reports whether the draft holds neither text nor parts.
func (c *Composition) Empty() bool {
	return strings.TrimSpace(c.text) == "" && len(c.parts) == 0
}

// PartForMarker returns the part anchored by the given marker.
func (c *Composition) PartForMarker(id spans.MarkerID) (models.Part, bool) {
	idx, ok := c.markerToPart[id]
	if !ok || idx < 0 || idx >= len(c.parts) {
		return models.Part{}, false
	}
	return c.parts[idx], true
}

// InsertExpansion splices displayText plus a trailing separator into the
// buffer at anchorOffset and anchors a text expansion part carrying the
// full stored text. Used for collapsed pastes and inlined SVG content.
func (c *Composition) InsertExpansion(anchorOffset int, displayText, fullText string) (spans.MarkerID, error) {
	part := models.NewExpansionPart(displayText, fullText)
	return c.insert(anchorOffset, displayText, part)
}

// InsertReference splices displayText plus a trailing separator into the
// buffer at anchorOffset and anchors the given file reference or agent
// mention part.
func (c *Composition) InsertReference(anchorOffset int, displayText string, part models.Part) (spans.MarkerID, error) {
	switch part.Kind {
	case models.PartKindFileReference, models.PartKindAgentMention:
	default:
		return spans.InvalidMarker, ErrNotExpandable
	}
	part.Display = displayText
	return c.insert(anchorOffset, displayText, part)
}

func (c *Composition) insert(anchor int, display string, part models.Part) (spans.MarkerID, error) {
	if anchor < 0 || anchor > len(c.text) {
		return spans.InvalidMarker, ErrAnchorOutOfBounds
	}
	// An anchor strictly inside a live marker would splice foreign text
	// into its display placeholder; the marker edges are fine.
	for _, m := range c.index.Live() {
		if anchor > m.Start && anchor < m.End {
			return spans.InvalidMarker, ErrAnchorInsideMarker
		}
	}

	inserted := display + separator
	c.text = c.text[:anchor] + inserted + c.text[anchor:]
	c.index.SetLength(len(c.text))
	c.shiftMarkersFrom(anchor, len(inserted))

	id, err := c.index.Create(anchor, anchor+len(display), part.Kind)
	if err != nil {
		return spans.InvalidMarker, err
	}

	c.markerToPart[id] = len(c.parts)
	c.parts = append(c.parts, part)
	c.publishEdit()
	return id, nil
}

// shiftMarkersFrom moves markers at or after offset by delta. The
// composition owns the buffer, so shifting for its own programmatic
// inserts is its job; external edits report extents instead.
func (c *Composition) shiftMarkersFrom(offset, delta int) {
	for _, m := range c.index.Live() {
		if m.Start >= offset {
			_ = c.index.SetExtent(m.ID, m.Start+delta, m.End+delta)
		}
	}
}

// ApplyEdit replaces the buffer with the post-edit text and applies the
// authoritative extents the buffer reports for surviving markers. Markers
// absent from extents were destroyed by the edit; their parts are dropped
// silently, an expected consequence of free-form editing.
func (c *Composition) ApplyEdit(newText string, extents map[spans.MarkerID]Extent) {
	c.text = newText
	c.index.SetLength(len(newText))

	for _, m := range c.index.Live() {
		ext, ok := extents[m.ID]
		if !ok {
			c.index.Remove(m.ID)
			continue
		}
		if err := c.index.SetExtent(m.ID, ext.Start, ext.End); err != nil {
			c.index.Remove(m.ID)
		}
	}

	c.rebuildParts()
	c.publishEdit()
}

// rebuildParts re-derives the dense ordered part list from the marker
// set: orphaned entries dropped, survivor order preserved, indices
// renumbered with no gaps.
func (c *Composition) rebuildParts() {
	res := c.index.Resolve()

	parts := make([]models.Part, 0, len(res.Order))
	mapping := make(map[spans.MarkerID]int, len(res.Order))
	for _, m := range res.Order {
		oldIdx, ok := c.markerToPart[m.ID]
		if !ok || oldIdx < 0 || oldIdx >= len(c.parts) {
			c.index.Remove(m.ID)
			continue
		}
		mapping[m.ID] = len(parts)
		parts = append(parts, c.parts[oldIdx])
	}

	c.parts = parts
	c.markerToPart = mapping
}

// ResolveForSubmission expands every text expansion placeholder back to
// its full stored text and returns the transmitted form. Markers are
// walked by start descending so earlier splices never invalidate
// not-yet-processed offsets. The composition itself is left untouched.
func (c *Composition) ResolveForSubmission() Submission {
	live := c.index.Live()

	desc := make([]spans.Marker, len(live))
	copy(desc, live)
	sort.Slice(desc, func(i, j int) bool { return desc[i].Start > desc[j].Start })

	text := c.text
	for _, m := range desc {
		if m.Kind != models.PartKindTextExpansion {
			continue
		}
		part, ok := c.PartForMarker(m.ID)
		if !ok {
			continue
		}
		payload, err := part.GetExpansionPayload()
		if err != nil {
			continue
		}
		text = text[:m.Start] + payload.FullText + text[m.End:]
	}

	var rest []models.Part
	for _, m := range live {
		if m.Kind == models.PartKindTextExpansion {
			continue
		}
		if part, ok := c.PartForMarker(m.ID); ok {
			rest = append(rest, part)
		}
	}

	return Submission{Text: text, Parts: rest}
}

// Snapshot captures the draft for stashing or external editing.
func (c *Composition) Snapshot() Draft {
	return Draft{Text: c.text, Parts: c.Parts()}
}

// Restore rebuilds the composition from a draft, re-anchoring each part
// at the first verbatim occurrence of its display text past the previous
// anchor. Parts whose display text cannot be found are dropped silently;
// Restore never fails.
func (c *Composition) Restore(draft Draft) {
	c.Clear()
	c.text = draft.Text
	c.index.SetLength(len(draft.Text))

	searchFrom := 0
	for _, part := range draft.Parts {
		display := part.Display
		if display == "" {
			continue
		}
		at := strings.Index(c.text[searchFrom:], display)
		if at < 0 {
			continue
		}
		start := searchFrom + at
		id, err := c.index.Create(start, start+len(display), part.Kind)
		if err != nil {
			continue
		}
		c.markerToPart[id] = len(c.parts)
		c.parts = append(c.parts, part)
		searchFrom = start + len(display)
	}
	c.publishEdit()
}

// Clear empties the draft and destroys all markers.
func (c *Composition) Clear() {
	c.text = ""
	c.index.Clear()
	c.index.SetLength(0)
	c.parts = nil
	c.markerToPart = make(map[spans.MarkerID]int)
	c.publishEdit()
}

func (c *Composition) publishEdit() {
	if c.pub == nil {
		return
	}
	c.pub.Publish(events.Event{
		Type:           events.TypeBufferEdited,
		ConversationID: c.conversationID,
	})
}
