package models

import (
	"errors"
	"testing"
)

func TestPartPayloadRoundTrips(t *testing.T) {
	exp := NewExpansionPart("[pasted 12 lines]", "line one\nline two")
	payload, err := exp.GetExpansionPayload()
	if err != nil {
		t.Fatalf("GetExpansionPayload() error: %v", err)
	}
	if payload.FullText != "line one\nline two" {
		t.Errorf("full text = %q", payload.FullText)
	}

	ref := NewFileReferencePart("[report.pdf]", FileReferencePayload{
		Name: "report.pdf",
		MIME: "application/pdf",
		Size: 4096,
	})
	fileRef, err := ref.GetFileReferencePayload()
	if err != nil {
		t.Fatalf("GetFileReferencePayload() error: %v", err)
	}
	if fileRef.Name != "report.pdf" || fileRef.Size != 4096 {
		t.Errorf("file payload = %+v", fileRef)
	}

	mention := NewAgentMentionPart("@reviewer", AgentMentionPayload{Literal: "@reviewer", Agent: "reviewer"})
	agent, err := mention.GetAgentMentionPayload()
	if err != nil {
		t.Fatalf("GetAgentMentionPayload() error: %v", err)
	}
	if agent.Agent != "reviewer" {
		t.Errorf("agent = %q", agent.Agent)
	}
}

func TestPayloadGetterRejectsWrongKind(t *testing.T) {
	exp := NewExpansionPart("[pasted]", "full")

	if _, err := exp.GetFileReferencePayload(); !errors.Is(err, ErrInvalidPart) {
		t.Errorf("GetFileReferencePayload() on expansion part error = %v, want ErrInvalidPart", err)
	}
	if _, err := exp.GetAgentMentionPayload(); !errors.Is(err, ErrInvalidPart) {
		t.Errorf("GetAgentMentionPayload() on expansion part error = %v, want ErrInvalidPart", err)
	}
}

func TestPartValidate(t *testing.T) {
	tests := []struct {
		name    string
		part    Part
		wantErr bool
	}{
		{"valid expansion", NewExpansionPart("[p]", "full"), false},
		{"unknown kind", Part{Kind: "image", Payload: []byte(`{}`)}, true},
		{"empty payload", Part{Kind: PartKindFileReference}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.part.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQueuedMessageValidate(t *testing.T) {
	msg := QueuedMessage{ConversationID: "conv-1", Agent: "coder", Model: "large", Text: "ok"}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	missing := QueuedMessage{Text: "no routing"}
	err := missing.Validate()
	if err == nil {
		t.Fatal("Validate() accepted message without conversation/agent/model")
	}
	var verrs *ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error type = %T, want *ValidationErrors", err)
	}
	if len(verrs.Errors) != 3 {
		t.Errorf("validation errors = %d, want 3", len(verrs.Errors))
	}
}
