package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	errorskg "github.com/sweetpotato0/minirag/errors"
	"github.com/sweetpotato0/minirag/llm"
	"github.com/sweetpotato0/minirag/pkg/embedcache"
	"github.com/sweetpotato0/minirag/pkg/logging"
	"github.com/sweetpotato0/minirag/pkg/telemetry"
	"github.com/sweetpotato0/minirag/signal"
	"github.com/sweetpotato0/minirag/store"
	"github.com/sweetpotato0/minirag/templates"
	"github.com/sweetpotato0/minirag/vectorstore"
)

// CollectionName derives the per-project collection identifier from the
// vector store's prefix. It is a pure function of its inputs.
func CollectionName(prefix string, projectID int64) string {
	return prefix + "_collection_" + strconv.FormatInt(projectID, 10)
}

// Config holds NLP controller settings.
type Config struct {
	// EmbeddingModelID keys embedding cache entries; it must match the
	// model configured on the provider.
	EmbeddingModelID string
	Language         vectorstore.Language
}

// Controller coordinates collection lifecycle, indexing, retrieval,
// reranking and answer generation.
type Controller struct {
	cfg      Config
	store    *store.Store
	vector   vectorstore.VectorStore
	provider llm.Provider
	catalog  *templates.Catalog
	cache    *embedcache.Cache
	logger   *slog.Logger
}

// New creates an NLP controller. The cache may be nil, which disables
// embedding memoization.
func New(cfg Config, st *store.Store, vs vectorstore.VectorStore, provider llm.Provider,
	catalog *templates.Catalog, cache *embedcache.Cache) *Controller {

	if cfg.Language == "" {
		cfg.Language = vectorstore.LanguageEnglish
	}
	return &Controller{
		cfg:      cfg,
		store:    st,
		vector:   vs,
		provider: provider,
		catalog:  catalog,
		cache:    cache,
		logger:   logging.WithComponent("nlp"),
	}
}

func (c *Controller) collection(projectID int64) string {
	return CollectionName(c.vector.Prefix(), projectID)
}

// ResetCollection drops and recreates the project's collection.
func (c *Controller) ResetCollection(ctx context.Context, projectID int64) error {
	name := c.collection(projectID)
	if err := c.vector.DeleteCollection(ctx, name); err != nil {
		return err
	}
	return c.vector.CreateCollection(ctx, name, c.provider.EmbeddingSize(), false)
}

// CollectionInfo describes the project's collection.
func (c *Controller) CollectionInfo(ctx context.Context, projectID int64) (*vectorstore.CollectionInfo, error) {
	name := c.collection(projectID)
	existed, err := c.vector.IsCollectionExisted(ctx, name)
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, fmt.Errorf("collection %s: %w", name, errorskg.ErrCollectionNotFound)
	}
	return c.vector.CollectionInfo(ctx, name)
}

// IndexChunks embeds a batch of chunks and inserts them into the project's
// collection. The collection must already exist.
func (c *Controller) IndexChunks(ctx context.Context, projectID int64, chunks []*store.DataChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	chunkIDs := make([]int64, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
		chunkIDs[i] = ch.ID
		metadatas[i] = map[string]any{
			"asset_id":    ch.AssetID,
			"chunk_order": ch.Order,
		}
	}

	vectors, err := c.provider.EmbedTexts(ctx, texts, llm.DocumentTypeDocument)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	return c.vector.InsertMany(ctx, c.collection(projectID), vectorstore.InsertManyParams{
		Texts:     texts,
		Vectors:   vectors,
		Metadatas: metadatas,
		ChunkIDs:  chunkIDs,
		Language:  c.cfg.Language,
	})
}

// PushResult reports how many chunks one push run indexed.
type PushResult struct {
	InsertedItems int `json:"indexed_chunks"`
}

// Push pages through the project's stored chunks and indexes them into the
// vector collection. Each page counts once, by its chunk count. A failing
// page stops the run; earlier pages stay indexed.
func (c *Controller) Push(ctx context.Context, projectID int64, doReset bool) (result *PushResult, sig signal.Signal, err error) {
	ctx, span := telemetry.Start(ctx, "nlp.push", attribute.Int64("project_id", projectID))
	defer func() { telemetry.End(span, err) }()

	project, err := c.store.GetOrCreateProject(ctx, projectID)
	if err != nil {
		return nil, signal.ProjectNotFound, err
	}

	name := c.collection(project.ID)
	if doReset {
		if err := c.vector.DeleteCollection(ctx, name); err != nil {
			return nil, signal.IndexingFailed, err
		}
	}
	if err := c.vector.CreateCollection(ctx, name, c.provider.EmbeddingSize(), false); err != nil {
		return nil, signal.IndexingFailed, err
	}

	result = &PushResult{}
	for pageNo := 1; ; pageNo++ {
		chunks, err := c.store.ListChunks(ctx, project.ID, pageNo, store.DefaultChunkPageSize)
		if err != nil {
			return result, signal.IndexingFailed, err
		}
		if len(chunks) == 0 {
			break
		}
		if err := c.IndexChunks(ctx, project.ID, chunks); err != nil {
			return result, signal.IndexingFailed, err
		}
		result.InsertedItems += len(chunks)
	}

	if err := c.vector.ResetIndexes(ctx, name); err != nil {
		c.logger.Warn("index rebuild after push failed", "collection", name, "error", err)
	}

	c.logger.Info("push completed", "project_id", project.ID, "inserted", result.InsertedItems)
	return result, signal.IndexingCompleted, nil
}

// embedQuery embeds a single query text, consulting the cache first.
func (c *Controller) embedQuery(ctx context.Context, text string) ([]float32, error) {
	docType := string(llm.DocumentTypeQuery)
	if vec, ok := c.cache.Get(ctx, c.cfg.EmbeddingModelID, docType, text); ok {
		return vec, nil
	}

	vectors, err := c.provider.EmbedTexts(ctx, []string{text}, llm.DocumentTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vectors))
	}

	c.cache.Put(ctx, c.cfg.EmbeddingModelID, docType, text, vectors[0])
	return vectors[0], nil
}

// Search retrieves the topK most relevant chunks for the query using hybrid
// rank fusion. topK <= 0 short-circuits to an empty result without touching
// the provider or the store.
func (c *Controller) Search(ctx context.Context, projectID int64, query string, topK int) (docs []vectorstore.RetrievedDocument, sig signal.Signal, err error) {
	ctx, span := telemetry.Start(ctx, "nlp.search",
		attribute.Int64("project_id", projectID), attribute.Int("top_k", topK))
	defer func() { telemetry.End(span, err) }()

	if topK <= 0 {
		return nil, signal.SearchCompleted, nil
	}

	vector, err := c.embedQuery(ctx, query)
	if err != nil {
		return nil, signal.SearchFailed, err
	}

	docs, err = c.vector.Search(ctx, c.collection(projectID), query, vector, topK, 0)
	if err != nil {
		return nil, signal.SearchFailed, err
	}
	return docs, signal.SearchCompleted, nil
}

// GenerateFromDocs assembles the grounded prompt for already-retrieved
// documents and returns the model's answer. Used by callers that need the
// retrieved contexts alongside the answer.
func (c *Controller) GenerateFromDocs(ctx context.Context, query string, docs []vectorstore.RetrievedDocument) (string, error) {
	fullPrompt, history := c.BuildPrompt(query, docs)
	return c.provider.GenerateText(ctx, fullPrompt, history, llm.GenerateOptions{})
}

// AnswerResult carries the generated answer together with the assembled
// prompt and chat history that produced it.
type AnswerResult struct {
	Answer      string        `json:"answer"`
	FullPrompt  string        `json:"full_prompt"`
	ChatHistory []llm.Message `json:"chat_history"`
}

// Answer runs retrieval, reranking and prompt assembly, then asks the
// generation model for the final response.
func (c *Controller) Answer(ctx context.Context, projectID int64, query string, topK int) (result *AnswerResult, sig signal.Signal, err error) {
	ctx, span := telemetry.Start(ctx, "nlp.answer", attribute.Int64("project_id", projectID))
	defer func() { telemetry.End(span, err) }()

	docs, sig, err := c.Search(ctx, projectID, query, topK)
	if err != nil {
		return nil, sig, err
	}
	if len(docs) == 0 {
		return nil, signal.AnswerGenerationFailed,
			fmt.Errorf("no documents retrieved for project %d: %w", projectID, errorskg.ErrNotFound)
	}

	docs, err = c.provider.Rerank(ctx, query, docs, len(docs))
	if err != nil {
		return nil, signal.AnswerGenerationFailed, err
	}

	fullPrompt, history := c.BuildPrompt(query, docs)
	answer, err := c.provider.GenerateText(ctx, fullPrompt, history, llm.GenerateOptions{})
	if err != nil {
		return nil, signal.AnswerGenerationFailed, err
	}

	return &AnswerResult{
		Answer:      answer,
		FullPrompt:  fullPrompt,
		ChatHistory: history,
	}, signal.AnswerGenerationCompleted, nil
}

// BuildPrompt assembles the grounded generation prompt: the system prompt,
// one rendered document block per retrieved chunk, then the footer holding
// the query. The system prompt additionally travels as chat history so the
// provider can surface it as a system instruction.
func (c *Controller) BuildPrompt(query string, docs []vectorstore.RetrievedDocument) (string, []llm.Message) {
	systemPrompt := c.catalog.Get(templates.KeySystemPrompt)
	history := []llm.Message{
		c.provider.ConstructPrompt(systemPrompt, llm.RoleSystem),
	}

	blocks := make([]string, len(docs))
	for i, doc := range docs {
		blocks[i] = c.catalog.Render(templates.KeyDocumentTemplate, templates.Vars{
			"doc_num":    strconv.Itoa(i + 1),
			"chunk_text": doc.Text,
		})
	}
	footer := c.catalog.Render(templates.KeyFooter, templates.Vars{"query": query})

	fullPrompt := strings.Join([]string{
		systemPrompt,
		strings.Join(blocks, "\n"),
		footer,
	}, "\n\n")
	return fullPrompt, history
}
