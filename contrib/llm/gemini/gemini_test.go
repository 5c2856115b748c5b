package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/sweetpotato0/minirag/llm"
)

func TestSplitSystem(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleSystem, Text: "answer only from the documents"},
		{Role: llm.RoleUser, Text: "hello"},
		{Role: llm.RoleAssistant, Text: "hi"},
	}

	sys, chat := splitSystem(history)
	if sys != "answer only from the documents" {
		t.Errorf("system text = %q", sys)
	}
	if len(chat) != 2 {
		t.Fatalf("chat turns = %d, want 2", len(chat))
	}
	for _, msg := range chat {
		if msg.Role == llm.RoleSystem {
			t.Errorf("system message leaked into chat turns: %+v", msg)
		}
	}

	// A system-only history leaves no chat turns, so generation goes
	// through GenerateContent instead of a chat session.
	sys, chat = splitSystem([]llm.Message{{Role: llm.RoleSystem, Text: "rules"}})
	if sys != "rules" || len(chat) != 0 {
		t.Errorf("splitSystem(system only) = (%q, %d turns)", sys, len(chat))
	}
}

func TestSplitSystemJoinsMultiple(t *testing.T) {
	sys, _ := splitSystem([]llm.Message{
		{Role: llm.RoleSystem, Text: "first"},
		{Role: llm.RoleUser, Text: "q"},
		{Role: llm.RoleSystem, Text: "second"},
	})
	if sys != "first\n\nsecond" {
		t.Errorf("joined system text = %q", sys)
	}
}

// System-role messages must never reach the chat contents: the SDK only
// accepts user and model turns there, and a demoted system message would
// surface as an ordinary user turn.
func TestToContentsRoles(t *testing.T) {
	sysText, chat := splitSystem([]llm.Message{
		{Role: llm.RoleSystem, Text: "answer only from the documents"},
		{Role: llm.RoleUser, Text: "question"},
		{Role: llm.RoleAssistant, Text: "reply"},
	})

	contents := toContents(chat)
	if len(contents) != 2 {
		t.Fatalf("contents = %d, want 2", len(contents))
	}
	if contents[0].Role != "user" {
		t.Errorf("user role = %q", contents[0].Role)
	}
	if contents[1].Role != "model" {
		t.Errorf("assistant role = %q, want model", contents[1].Role)
	}
	for _, content := range contents {
		for _, part := range content.Parts {
			if text, ok := part.(genai.Text); ok && string(text) == sysText {
				t.Error("system text present in chat contents")
			}
		}
	}
}
