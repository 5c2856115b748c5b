package llm

import (
	"context"

	"github.com/sweetpotato0/minirag/vectorstore"
)

// Role tags a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DocumentType tells the embedding model what the text will be used for,
// so it can optimise the vector for storage or for querying.
type DocumentType string

const (
	DocumentTypeDocument DocumentType = "document"
	DocumentTypeQuery    DocumentType = "query"
)

// Message is a provider-neutral chat message. Providers translate it to
// their native shape in ConstructPrompt.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// GenerateOptions tunes a single generation call. Zero values fall back to
// the provider's configured defaults.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// Provider is the pluggable contract for generation and embedding models.
// One provider instance serves either concern depending on which model is
// configured; both may be set on the same instance.
type Provider interface {
	// SetGenerationModel selects the generation model and its system
	// instructions.
	SetGenerationModel(modelID, systemInstructions string)

	// SetEmbeddingModel selects the embedding model and declares its
	// output dimension.
	SetEmbeddingModel(modelID string, embeddingSize int)

	// EmbeddingSize returns the declared embedding dimension.
	EmbeddingSize() int

	// GenerateText produces a completion for the prompt, optionally
	// continuing the given chat history. Returns the raw text; an empty
	// string when the model produced none.
	GenerateText(ctx context.Context, prompt string, history []Message, opts GenerateOptions) (string, error)

	// EmbedTexts embeds a batch of texts. Every returned vector has the
	// declared embedding size.
	EmbedTexts(ctx context.Context, texts []string, docType DocumentType) ([][]float32, error)

	// Rerank reorders candidate documents by relevance to the query,
	// returning at most topN documents. Implementations recover locally
	// from model failures by falling back to the original order.
	Rerank(ctx context.Context, query string, docs []vectorstore.RetrievedDocument, topN int) ([]vectorstore.RetrievedDocument, error)

	// ConstructPrompt builds a provider-neutral message with the native
	// role mapping applied.
	ConstructPrompt(text string, role Role) Message
}
