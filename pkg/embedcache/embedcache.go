package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweetpotato0/minirag/pkg/logging"
)

// Config holds Redis configuration for the embedding cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Cache memoizes embedding vectors in Redis, keyed by model, document type
// and the content hash of the text. A nil *Cache is a no-op on every method,
// so callers never have to branch on whether caching is enabled.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// New creates an embedding cache and verifies the Redis connection.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "minirag:embed:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		logger: logging.WithComponent("embedcache"),
	}, nil
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) key(model, docType, text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + model + ":" + docType + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached vector for the text, if present. Cache errors are
// logged and reported as misses.
func (c *Cache) Get(ctx context.Context, model, docType, text string) ([]float32, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, c.key(model, docType, text)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache lookup failed", "error", err)
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", "error", err)
		return nil, false
	}
	return vec, true
}

// Put stores a vector for the text with the configured TTL. Failures are
// logged and otherwise ignored.
func (c *Cache) Put(ctx context.Context, model, docType, text string, vec []float32) {
	if c == nil || c.client == nil || len(vec) == 0 {
		return
	}

	raw, err := json.Marshal(vec)
	if err != nil {
		c.logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(model, docType, text), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache store failed", "error", err)
	}
}
