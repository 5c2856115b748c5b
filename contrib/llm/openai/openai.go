package openai

import (
	"context"
	"fmt"
	"log/slog"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/sweetpotato0/minirag/llm"
	"github.com/sweetpotato0/minirag/pkg/logging"
	"github.com/sweetpotato0/minirag/vectorstore"
)

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey             string
	BaseURL            string
	InputMaxCharacters int
	MaxOutputTokens    int
	Temperature        float64
}

// Provider implements llm.Provider on the official OpenAI SDK.
type Provider struct {
	client openaisdk.Client
	cfg    Config
	logger *slog.Logger

	generationModelID  string
	systemInstructions string
	embeddingModelID   string
	embeddingSize      int
}

// New creates an OpenAI provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Provider{
		client: openaisdk.NewClient(opts...),
		cfg:    cfg,
		logger: logging.WithComponent("openai"),
	}, nil
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

// GenerateText produces a chat completion for the prompt and history.
func (p *Provider) GenerateText(ctx context.Context, prompt string, history []llm.Message, opts llm.GenerateOptions) (string, error) {
	if p.generationModelID == "" {
		return "", fmt.Errorf("generation model is not set")
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if p.systemInstructions != "" {
		messages = append(messages, openaisdk.SystemMessage(p.systemInstructions))
	}
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, openaisdk.SystemMessage(msg.Text))
		case llm.RoleAssistant:
			messages = append(messages, openaisdk.AssistantMessage(msg.Text))
		default:
			messages = append(messages, openaisdk.UserMessage(msg.Text))
		}
	}
	messages = append(messages, openaisdk.UserMessage(llm.Truncate(prompt, p.cfg.InputMaxCharacters)))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(p.generationModelID),
		Messages: messages,
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxOutputTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(maxTokens))
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = p.cfg.Temperature
	}
	if temperature > 0 {
		params.Temperature = param.NewOpt(temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// EmbedTexts embeds a batch of texts. OpenAI has no document/query task
// split, so the document type only bounds truncation.
func (p *Provider) EmbedTexts(ctx context.Context, texts []string, docType llm.DocumentType) ([][]float32, error) {
	if p.embeddingModelID == "" {
		return nil, fmt.Errorf("embedding model is not set")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = llm.Truncate(t, p.cfg.InputMaxCharacters)
	}

	resp, err := p.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(p.embeddingModelID),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, emb := range resp.Data {
		out[i] = convertVector(emb.Embedding, p.embeddingSize)
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

// ConstructPrompt builds a neutral message; the role mapping happens when
// the message is converted to SDK params in GenerateText.
func (p *Provider) ConstructPrompt(text string, role llm.Role) llm.Message {
	return llm.Message{Role: role, Text: text}
}

func convertVector(input []float64, expected int) []float32 {
	if expected <= 0 {
		expected = len(input)
	}
	vec := make([]float32, expected)
	for i := 0; i < len(input) && i < expected; i++ {
		vec[i] = float32(input[i])
	}
	return vec
}
