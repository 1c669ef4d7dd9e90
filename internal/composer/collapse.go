package composer

import (
	"fmt"
	"strings"
)

// Collapse thresholds for pasted text. A paste at or past either limit is
// collapsed into a text expansion placeholder unless collapsing is
// explicitly disabled.
const (
	DefaultCollapseMinLines = 3
	DefaultCollapseMaxChars = 150
)

// CollapsePolicy decides when pasted text gets collapsed into a
// placeholder instead of being inlined.
type CollapsePolicy struct {
	// MinLines collapses pastes spanning at least this many lines.
	MinLines int

	// MaxChars collapses pastes longer than this many characters.
	MaxChars int

	// Disabled turns collapsing off entirely.
	Disabled bool
}

// DefaultCollapsePolicy returns the standard paste collapse thresholds.
func DefaultCollapsePolicy() CollapsePolicy {
	return CollapsePolicy{
		MinLines: DefaultCollapseMinLines,
		MaxChars: DefaultCollapseMaxChars,
	}
}

// ShouldCollapse reports whether a paste of the given text should be
// collapsed into an expansion placeholder.
func (p CollapsePolicy) ShouldCollapse(text string) bool {
	if p.Disabled {
		return false
	}
	minLines := p.MinLines
	if minLines <= 0 {
		minLines = DefaultCollapseMinLines
	}
	maxChars := p.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultCollapseMaxChars
	}
	if strings.Count(text, "\n")+1 >= minLines {
		return true
	}
	return len(text) > maxChars
}

// PastePlaceholder builds the display text shown for a collapsed paste.
func PastePlaceholder(text string) string {
	lines := strings.Count(text, "\n") + 1
	if lines == 1 {
		return fmt.Sprintf("[pasted %d chars]", len(text))
	}
	return fmt.Sprintf("[pasted %d lines]", lines)
}
