package models

import (
	"encoding/json"
)

// PartKind specifies the kind of structured part embedded in a draft.
type PartKind string

const (
	PartKindTextExpansion PartKind = "text_expansion"
	PartKindFileReference PartKind = "file_reference"
	PartKindAgentMention  PartKind = "agent_mention"
)

// Part is a structured payload addressable inside free-form draft text.
// The anchoring relation to a marker is a lookup owned by the composition,
// never by the part itself; a part may outlive its marker (for example
// after being loaded from history).
type Part struct {
	// Kind specifies the part type.
	Kind PartKind `json:"kind"`

	// Display is the compact text shown in the buffer for this part.
	// Restore uses it to re-anchor the part in a new buffer.
	Display string `json:"display"`

	// Payload contains the part data (kind-specific).
	Payload json.RawMessage `json:"payload"`
}

// ExpansionPayload is the payload for text expansion parts.
type ExpansionPayload struct {
	// FullText is the complete stored text the display placeholder stands for.
	FullText string `json:"full_text"`
}

// FileReferencePayload is the payload for file reference parts.
type FileReferencePayload struct {
	// Name is the attachment file name.
	Name string `json:"name"`

	// MIME is the decoded media type.
	MIME string `json:"mime,omitempty"`

	// Size is the attachment size in bytes.
	Size int64 `json:"size,omitempty"`

	// Path is the local path, when the attachment came from disk.
	Path string `json:"path,omitempty"`
}

// AgentMentionPayload is the payload for agent mention parts.
type AgentMentionPayload struct {
	// Literal is the raw mention text, including the sigil.
	Literal string `json:"literal"`

	// Agent is the resolved agent name.
	Agent string `json:"agent,omitempty"`
}

// NewExpansionPart builds a text expansion part.
func NewExpansionPart(display, fullText string) Part {
	payload, _ := json.Marshal(ExpansionPayload{FullText: fullText})
	return Part{Kind: PartKindTextExpansion, Display: display, Payload: payload}
}

// NewFileReferencePart builds a file reference part.
func NewFileReferencePart(display string, ref FileReferencePayload) Part {
	payload, _ := json.Marshal(ref)
	return Part{Kind: PartKindFileReference, Display: display, Payload: payload}
}

// NewAgentMentionPart builds an agent mention part.
func NewAgentMentionPart(display string, mention AgentMentionPayload) Part {
	payload, _ := json.Marshal(mention)
	return Part{Kind: PartKindAgentMention, Display: display, Payload: payload}
}

// GetExpansionPayload extracts the expansion payload.
func (p *Part) GetExpansionPayload() (*ExpansionPayload, error) {
	if p.Kind != PartKindTextExpansion {
		return nil, ErrInvalidPart
	}
	var payload ExpansionPayload
	if err := json.Unmarshal(p.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetFileReferencePayload extracts the file reference payload.
func (p *Part) GetFileReferencePayload() (*FileReferencePayload, error) {
	if p.Kind != PartKindFileReference {
		return nil, ErrInvalidPart
	}
	var payload FileReferencePayload
	if err := json.Unmarshal(p.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetAgentMentionPayload extracts the agent mention payload.
func (p *Part) GetAgentMentionPayload() (*AgentMentionPayload, error) {
	if p.Kind != PartKindAgentMention {
		return nil, ErrInvalidPart
	}
	var payload AgentMentionPayload
	if err := json.Unmarshal(p.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Validate checks if the part is valid.
func (p *Part) Validate() error {
	switch p.Kind {
	case PartKindTextExpansion, PartKindFileReference, PartKindAgentMention:
	default:
		return ErrInvalidPart
	}
	if len(p.Payload) == 0 {
		return ErrInvalidPart
	}
	return nil
}
