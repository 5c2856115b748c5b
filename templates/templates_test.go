package templates

import (
	"strings"
	"testing"
)

func TestGetPrimaryLanguage(t *testing.T) {
	c := New("ar", "en")
	got := c.Get(KeySystemPrompt)
	if got == "" {
		t.Fatal("expected arabic system prompt")
	}
	if got == locales["en"][KeySystemPrompt] {
		t.Error("expected arabic locale, got english")
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	c := New("fr", "en")
	got := c.Get(KeySystemPrompt)
	if got != locales["en"][KeySystemPrompt] {
		t.Errorf("expected english fallback, got %q", got)
	}
}

func TestGetUnknownEverywhere(t *testing.T) {
	c := New("fr", "de")
	if got := c.Get(KeySystemPrompt); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars Vars
		want string
	}{
		{
			name: "single placeholder",
			tmpl: "## Question:\n{query}",
			vars: Vars{"query": "what is rag?"},
			want: "## Question:\nwhat is rag?",
		},
		{
			name: "multiple placeholders",
			tmpl: "## Document No: {doc_num}\n### Content: {chunk_text}",
			vars: Vars{"doc_num": "1", "chunk_text": "hello"},
			want: "## Document No: 1\n### Content: hello",
		},
		{
			name: "unmatched placeholder stays",
			tmpl: "{query} and {missing}",
			vars: Vars{"query": "x"},
			want: "x and {missing}",
		},
		{
			name: "no vars",
			tmpl: "{query}",
			vars: nil,
			want: "{query}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.tmpl, tt.vars); got != tt.want {
				t.Errorf("Substitute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDocumentTemplate(t *testing.T) {
	c := New("en", "en")
	got := c.Render(KeyDocumentTemplate, Vars{
		"doc_num":    "2",
		"chunk_text": "pgvector stores embeddings",
	})
	if !strings.Contains(got, "Document No: 2") {
		t.Errorf("rendered template missing doc number: %q", got)
	}
	if !strings.Contains(got, "pgvector stores embeddings") {
		t.Errorf("rendered template missing chunk text: %q", got)
	}
}
