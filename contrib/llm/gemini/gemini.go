package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sweetpotato0/minirag/llm"
	"github.com/sweetpotato0/minirag/pkg/logging"
	"github.com/sweetpotato0/minirag/vectorstore"
)

// Config holds Gemini provider configuration.
type Config struct {
	APIKey             string
	InputMaxCharacters int
	MaxOutputTokens    int
	Temperature        float64
}

// Provider implements llm.Provider on the Google Generative AI SDK.
type Provider struct {
	client *genai.Client
	cfg    Config
	logger *slog.Logger

	generationModelID  string
	systemInstructions string
	embeddingModelID   string
	embeddingSize      int
}

// New creates a Gemini provider. The client is stateless aside from the
// configured model ids.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Provider{
		client: client,
		cfg:    cfg,
		logger: logging.WithComponent("gemini"),
	}, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// SetGenerationModel selects the generation model and system instructions.
func (p *Provider) SetGenerationModel(modelID, systemInstructions string) {
	p.generationModelID = modelID
	p.systemInstructions = systemInstructions
	p.logger.Info("set generation model", "model", modelID)
}

// SetEmbeddingModel selects the embedding model and its declared dimension.
func (p *Provider) SetEmbeddingModel(modelID string, embeddingSize int) {
	p.embeddingModelID = modelID
	p.embeddingSize = embeddingSize
	p.logger.Info("set embedding model", "model", modelID, "size", embeddingSize)
}

// EmbeddingSize returns the declared embedding dimension.
func (p *Provider) EmbeddingSize() int {
	return p.embeddingSize
}

// GenerateText produces a completion, threading chat history through the
// SDK's chat session when present. Gemini chat contents only accept user
// and model turns, so system-role history is folded into the model's
// system instruction instead of the contents.
func (p *Provider) GenerateText(ctx context.Context, prompt string, history []llm.Message, opts llm.GenerateOptions) (string, error) {
	if p.generationModelID == "" {
		return "", fmt.Errorf("generation model is not set")
	}

	sysText, chat := splitSystem(history)
	instructions := p.systemInstructions
	if sysText != "" {
		if instructions != "" {
			instructions += "\n\n" + sysText
		} else {
			instructions = sysText
		}
	}

	model := p.client.GenerativeModel(p.generationModelID)
	if instructions != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(instructions)},
		}
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxOutputTokens
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = p.cfg.Temperature
	}
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SetTemperature(float32(temperature))

	prompt = llm.Truncate(prompt, p.cfg.InputMaxCharacters)

	var resp *genai.GenerateContentResponse
	var err error
	if len(chat) > 0 {
		session := model.StartChat()
		session.History = toContents(chat)
		resp, err = session.SendMessage(ctx, genai.Text(prompt))
	} else {
		resp, err = model.GenerateContent(ctx, genai.Text(prompt))
	}
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	return responseText(resp), nil
}

// EmbedTexts embeds a batch of texts with the retrieval task type matching
// the document type.
func (p *Provider) EmbedTexts(ctx context.Context, texts []string, docType llm.DocumentType) ([][]float32, error) {
	if p.embeddingModelID == "" {
		return nil, fmt.Errorf("embedding model is not set")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	em := p.client.EmbeddingModel(p.embeddingModelID)
	if docType == llm.DocumentTypeQuery {
		em.TaskType = genai.TaskTypeRetrievalQuery
	} else {
		em.TaskType = genai.TaskTypeRetrievalDocument
	}

	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(llm.Truncate(text, p.cfg.InputMaxCharacters)))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(res.Embeddings))
	}

	out := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// Rerank asks the generation model for a JSON id ranking. Any failure
// falls back to the original order truncated to topN.
func (p *Provider) Rerank(ctx context.Context, query string, docs []vectorstore.RetrievedDocument, topN int) ([]vectorstore.RetrievedDocument, error) {
	generate := func(ctx context.Context, prompt string) (string, error) {
		return p.GenerateText(ctx, prompt, nil, llm.GenerateOptions{})
	}
	return llm.RerankByIDs(ctx, generate, p.logger, query, docs, topN)
}

// ConstructPrompt maps the neutral role onto Gemini's role names; the SDK
// calls the assistant role "model".
func (p *Provider) ConstructPrompt(text string, role llm.Role) llm.Message {
	return llm.Message{Role: role, Text: text}
}

// splitSystem separates system-role messages from the chat turns. Their
// joined text belongs in the model's SystemInstruction.
func splitSystem(history []llm.Message) (string, []llm.Message) {
	var sys []string
	chat := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == llm.RoleSystem {
			sys = append(sys, msg.Text)
			continue
		}
		chat = append(chat, msg)
	}
	return strings.Join(sys, "\n\n"), chat
}

func toContents(history []llm.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		contents = append(contents, &genai.Content{
			Role:  geminiRole(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Text)},
		})
	}
	return contents
}

func geminiRole(role llm.Role) string {
	if role == llm.RoleAssistant {
		return "model"
	}
	return "user"
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
