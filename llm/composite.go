package llm

import (
	"context"

	"github.com/sweetpotato0/minirag/vectorstore"
)

// Composite splits provider duties between a generation backend and an
// embedding backend. Configurations that use one backend for both should
// pass the same Provider twice.
type Composite struct {
	Generation Provider
	Embedding  Provider
}

var _ Provider = (*Composite)(nil)

func (c *Composite) SetGenerationModel(modelID, systemInstructions string) {
	c.Generation.SetGenerationModel(modelID, systemInstructions)
}

func (c *Composite) SetEmbeddingModel(modelID string, embeddingSize int) {
	c.Embedding.SetEmbeddingModel(modelID, embeddingSize)
}

func (c *Composite) EmbeddingSize() int {
	return c.Embedding.EmbeddingSize()
}

func (c *Composite) GenerateText(ctx context.Context, prompt string, history []Message, opts GenerateOptions) (string, error) {
	return c.Generation.GenerateText(ctx, prompt, history, opts)
}

func (c *Composite) EmbedTexts(ctx context.Context, texts []string, docType DocumentType) ([][]float32, error) {
	return c.Embedding.EmbedTexts(ctx, texts, docType)
}

func (c *Composite) Rerank(ctx context.Context, query string, docs []vectorstore.RetrievedDocument, topN int) ([]vectorstore.RetrievedDocument, error) {
	return c.Generation.Rerank(ctx, query, docs, topN)
}

func (c *Composite) ConstructPrompt(text string, role Role) Message {
	return c.Generation.ConstructPrompt(text, role)
}
