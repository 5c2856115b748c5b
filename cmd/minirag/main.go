package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/sweetpotato0/minirag/config"
	"github.com/sweetpotato0/minirag/contrib/eval/ragas"
	"github.com/sweetpotato0/minirag/contrib/llm/gemini"
	"github.com/sweetpotato0/minirag/contrib/llm/openai"
	"github.com/sweetpotato0/minirag/eval"
	"github.com/sweetpotato0/minirag/ingest"
	"github.com/sweetpotato0/minirag/llm"
	"github.com/sweetpotato0/minirag/nlp"
	"github.com/sweetpotato0/minirag/pkg/embedcache"
	"github.com/sweetpotato0/minirag/pkg/logging"
	"github.com/sweetpotato0/minirag/pkg/telemetry"
	"github.com/sweetpotato0/minirag/server"
	"github.com/sweetpotato0/minirag/store"
	"github.com/sweetpotato0/minirag/templates"
	"github.com/sweetpotato0/minirag/vectorstore"
	"github.com/sweetpotato0/minirag/vectorstore/pgvector"
)

func main() {
	envFile := flag.String("env", ".env", "path to the environment file")
	flag.Parse()

	if err := run(*envFile); err != nil {
		logging.Logger().Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	settings, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    settings.AppName,
		ServiceVersion: settings.AppVersion,
		Disable:        settings.OtelDisabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	db, err := sql.Open("postgres", settings.PostgresDSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	vs, err := buildVectorStore(ctx, db, settings)
	if err != nil {
		return err
	}
	defer vs.Disconnect(ctx)

	providers := &providerSet{settings: settings, built: map[llm.Backend]llm.Provider{}}
	provider, err := providers.composite(ctx)
	if err != nil {
		return err
	}

	catalog := templates.New(settings.PrimaryLang, settings.DefaultLang)

	var cache *embedcache.Cache
	if settings.RedisAddr != "" {
		cache, err = embedcache.New(ctx, embedcache.Config{
			Addr:     settings.RedisAddr,
			Password: settings.RedisPassword,
			DB:       settings.RedisDB,
		})
		if err != nil {
			logger.Warn("embedding cache unavailable, continuing without it", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	nlpController := nlp.New(nlp.Config{
		EmbeddingModelID: settings.EmbeddingModelID,
		Language:         vectorstore.ParseLanguage(settings.PrimaryLang),
	}, st, vs, provider, catalog, cache)

	ingestController := ingest.New(ingest.Config{
		AllowedTypes:    settings.FileAllowedTypes,
		MaxSizeBytes:    settings.FileMaxSizeBytes(),
		CopyBufferBytes: settings.FileChunkBytes(),
		FilesDir:        settings.FilesDir,
	}, st, vs)

	judge, err := providers.judge(ctx)
	if err != nil {
		return err
	}
	evalController := eval.New(nlpController, ragas.New(judge))

	srv := server.New(settings.HTTPAddr, server.Services{
		Settings: settings,
		Ingest:   ingestController,
		NLP:      nlpController,
		Eval:     evalController,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func buildVectorStore(ctx context.Context, db *sql.DB, settings *config.Settings) (vectorstore.VectorStore, error) {
	backend, err := vectorstore.ParseBackend(settings.VectorDBBackend)
	if err != nil {
		return nil, err
	}
	distance, err := vectorstore.ParseDistanceMethod(settings.VectorDBDistanceMethod)
	if err != nil {
		return nil, err
	}

	switch backend {
	case vectorstore.BackendPGVector:
		vs := pgvector.New(db, pgvector.Config{
			DistanceMethod: distance,
			IndexThreshold: settings.VectorDBPgvecIndexThreshold,
		})
		if err := vs.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect vector store: %w", err)
		}
		return vs, nil
	default:
		return nil, fmt.Errorf("vector db backend %s has no constructor", backend)
	}
}

// providerSet builds at most one provider instance per backend so a shared
// generation/embedding backend reuses a single client.
type providerSet struct {
	settings *config.Settings
	built    map[llm.Backend]llm.Provider
}

func (p *providerSet) get(ctx context.Context, backend llm.Backend) (llm.Provider, error) {
	if provider, ok := p.built[backend]; ok {
		return provider, nil
	}

	var provider llm.Provider
	var err error
	switch backend {
	case llm.BackendGemini:
		provider, err = gemini.New(ctx, gemini.Config{
			APIKey:             p.settings.GeminiAPIKey,
			InputMaxCharacters: p.settings.InputDafaultMaxCharacters,
			MaxOutputTokens:    p.settings.GenerationDafaultMaxTokens,
			Temperature:        p.settings.GenerationDafaultTemperature,
		})
	case llm.BackendOpenAI:
		provider, err = openai.New(openai.Config{
			APIKey:             p.settings.OpenAIAPIKey,
			InputMaxCharacters: p.settings.InputDafaultMaxCharacters,
			MaxOutputTokens:    p.settings.GenerationDafaultMaxTokens,
			Temperature:        p.settings.GenerationDafaultTemperature,
		})
	default:
		err = fmt.Errorf("llm backend %s has no constructor", backend)
	}
	if err != nil {
		return nil, err
	}

	p.built[backend] = provider
	return provider, nil
}

// composite assembles the generation and embedding providers, with their
// models bound, behind one llm.Provider.
func (p *providerSet) composite(ctx context.Context) (llm.Provider, error) {
	genBackend, err := llm.ParseBackend(p.settings.GenerationBackend)
	if err != nil {
		return nil, err
	}
	embedBackend, err := llm.ParseBackend(p.settings.EmbeddingBackend)
	if err != nil {
		return nil, err
	}

	generation, err := p.get(ctx, genBackend)
	if err != nil {
		return nil, err
	}
	embedding, err := p.get(ctx, embedBackend)
	if err != nil {
		return nil, err
	}

	generation.SetGenerationModel(p.settings.GenerationModelID, p.settings.SystemInstructions)
	embedding.SetEmbeddingModel(p.settings.EmbeddingModelID, p.settings.EmbeddingModelSize)

	if genBackend == embedBackend {
		return generation, nil
	}
	return &llm.Composite{Generation: generation, Embedding: embedding}, nil
}

// judge resolves the evaluation judge model, reusing the generation
// provider when the configured backend matches.
func (p *providerSet) judge(ctx context.Context) (llm.Provider, error) {
	judgeBackend, err := eval.ParseJudgeBackend(p.settings.RagasProvider)
	if err != nil {
		return nil, err
	}

	backend := llm.BackendGemini
	if judgeBackend == eval.JudgeOpenAI {
		backend = llm.BackendOpenAI
	}

	provider, err := p.get(ctx, backend)
	if err != nil {
		return nil, err
	}
	provider.SetGenerationModel(p.settings.GenerationModelID, p.settings.SystemInstructions)
	return provider, nil
}
