package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings holds every runtime option the service reads from the
// environment. Field names follow the env keys, including the historical
// DAFAULT spellings which are the real variable names in deployments.
type Settings struct {
	AppName    string
	AppVersion string

	GeminiAPIKey string
	OpenAIAPIKey string

	FileAllowedTypes     []string
	FileMaxSizeMB        int
	FileDefaultChunkKB   int
	FilesDir             string

	GenerationBackend            string
	GenerationModelID            string
	EmbeddingBackend             string
	EmbeddingModelID             string
	EmbeddingModelSize           int
	RagasProvider                string
	InputDafaultMaxCharacters    int
	GenerationDafaultMaxTokens   int
	GenerationDafaultTemperature float64
	SystemInstructions           string

	VectorDBBackend            string
	VectorDBDistanceMethod     string
	VectorDBPgvecIndexThreshold int

	PostgresUsername     string
	PostgresPassword     string
	PostgresHost         string
	PostgresPort         int
	PostgresMainDatabase string
	PostgresSSLMode      string

	PrimaryLang string
	DefaultLang string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HTTPAddr     string
	OtelDisabled bool
}

// Load reads an optional .env file and then the process environment.
// A missing .env file is not an error; real environment variables always win.
func Load(envFile string) (*Settings, error) {
	if envFile != "" {
		// godotenv does not override variables already set in the process.
		_ = godotenv.Load(envFile)
	}

	s := &Settings{
		AppName:    getEnv("APP_NAME", "minirag"),
		AppVersion: getEnv("APP_VERSION", "0.1.0"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),

		FileAllowedTypes:   splitList(getEnv("FILE_ALLOWED_TYPES", "text/plain")),
		FileMaxSizeMB:      getEnvInt("FILE_MAX_SIZE", 10),
		FileDefaultChunkKB: getEnvInt("FILE_DEFAULT_CHUNK_SIZE", 512),
		FilesDir:           getEnv("FILES_DIR", "files"),

		GenerationBackend:            getEnv("GENERATION_BACKEND", "GEMINI"),
		GenerationModelID:            os.Getenv("GENERATION_MODEL_ID"),
		EmbeddingBackend:             getEnv("EMBEDDING_BACKEND", "GEMINI"),
		EmbeddingModelID:             os.Getenv("EMBEDDING_MODEL_ID"),
		EmbeddingModelSize:           getEnvInt("EMBEDDING_MODEL_SIZE", 768),
		RagasProvider:                getEnv("RAGAS_PROVIDER", "google"),
		InputDafaultMaxCharacters:    getEnvInt("INPUT_DAFAULT_MAX_CHARACTERS", 2048),
		GenerationDafaultMaxTokens:   getEnvInt("GENERATION_DAFAULT_MAX_TOKENS", 1024),
		GenerationDafaultTemperature: getEnvFloat("GENERATION_DAFAULT_TEMPERATURE", 0.7),
		SystemInstructions:           os.Getenv("SYSTEM_INSTRUCTIONS"),

		VectorDBBackend:             getEnv("VECTOR_DB_BACKEND", "PGVECTOR"),
		VectorDBDistanceMethod:      getEnv("VECTOR_DB_DISTANCE_METHOD", "cosine"),
		VectorDBPgvecIndexThreshold: getEnvInt("VECTOR_DB_PGVEC_INDEX_THRESHOLD", 100),

		PostgresUsername:     getEnv("POSTGRES_USERNAME", "postgres"),
		PostgresPassword:     os.Getenv("POSTGRES_PASSWORD"),
		PostgresHost:         getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:         getEnvInt("POSTGRES_PORT", 5432),
		PostgresMainDatabase: getEnv("POSTGRES_MAIN_DATABASE", "minirag"),
		PostgresSSLMode:      getEnv("POSTGRES_SSLMODE", "disable"),

		PrimaryLang: getEnv("PRIMARY_LANG", "en"),
		DefaultLang: getEnv("DEFAULT_LANG", "en"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		OtelDisabled: getEnvBool("OTEL_DISABLED", true),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the loaded settings and reports every broken field at once.
func (s *Settings) Validate() error {
	v := NewValidator()

	v.RequireNonEmpty("APP_NAME", s.AppName)
	v.RequireNonEmptyList("FILE_ALLOWED_TYPES", s.FileAllowedTypes)
	v.RequirePositive("FILE_MAX_SIZE", s.FileMaxSizeMB)
	v.RequirePositive("FILE_DEFAULT_CHUNK_SIZE", s.FileDefaultChunkKB)
	v.RequireNonEmpty("FILES_DIR", s.FilesDir)

	v.ValidateOneOf("GENERATION_BACKEND", s.GenerationBackend, "GEMINI", "OPENAI")
	v.RequireNonEmpty("GENERATION_MODEL_ID", s.GenerationModelID)
	v.ValidateOneOf("EMBEDDING_BACKEND", s.EmbeddingBackend, "GEMINI", "OPENAI")
	v.RequireNonEmpty("EMBEDDING_MODEL_ID", s.EmbeddingModelID)
	v.RequirePositive("EMBEDDING_MODEL_SIZE", s.EmbeddingModelSize)
	v.RequirePositive("INPUT_DAFAULT_MAX_CHARACTERS", s.InputDafaultMaxCharacters)
	v.RequirePositive("GENERATION_DAFAULT_MAX_TOKENS", s.GenerationDafaultMaxTokens)
	v.ValidateFloatRange("GENERATION_DAFAULT_TEMPERATURE", s.GenerationDafaultTemperature, 0.0, 2.0)

	v.ValidateOneOf("RAGAS_PROVIDER", s.RagasProvider, "google", "openai")

	v.ValidateOneOf("VECTOR_DB_BACKEND", s.VectorDBBackend, "PGVECTOR")
	v.ValidateOneOf("VECTOR_DB_DISTANCE_METHOD", s.VectorDBDistanceMethod, "cosine", "dot")
	v.RequirePositive("VECTOR_DB_PGVEC_INDEX_THRESHOLD", s.VectorDBPgvecIndexThreshold)

	v.RequireNonEmpty("POSTGRES_USERNAME", s.PostgresUsername)
	v.RequireNonEmpty("POSTGRES_HOST", s.PostgresHost)
	v.ValidatePort("POSTGRES_PORT", s.PostgresPort)
	v.RequireNonEmpty("POSTGRES_MAIN_DATABASE", s.PostgresMainDatabase)
	v.ValidateOneOf("POSTGRES_SSLMODE", s.PostgresSSLMode, "disable", "require", "verify-ca", "verify-full")

	if s.GenerationBackend == "GEMINI" || s.EmbeddingBackend == "GEMINI" {
		v.RequireNonEmpty("GEMINI_API_KEY", s.GeminiAPIKey)
	}
	if s.GenerationBackend == "OPENAI" || s.EmbeddingBackend == "OPENAI" {
		v.RequireNonEmpty("OPENAI_API_KEY", s.OpenAIAPIKey)
	}

	return v.Error()
}

// PostgresDSN builds the connection string for the main database.
func (s *Settings) PostgresDSN() string {
	return "postgres://" + s.PostgresUsername + ":" + s.PostgresPassword +
		"@" + s.PostgresHost + ":" + strconv.Itoa(s.PostgresPort) +
		"/" + s.PostgresMainDatabase + "?sslmode=" + s.PostgresSSLMode
}

// FileMaxSizeBytes returns the upload size limit in bytes.
func (s *Settings) FileMaxSizeBytes() int64 {
	return int64(s.FileMaxSizeMB) * 1024 * 1024
}

// FileChunkBytes returns the streaming write buffer size in bytes.
func (s *Settings) FileChunkBytes() int {
	return s.FileDefaultChunkKB * 1024
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
