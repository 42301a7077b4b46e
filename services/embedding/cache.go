package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// Cache stores query embeddings
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error
}

// CachedTextEmbedder puts a cache in front of an Embedder's text path.
// Cache failures are logged and bypassed.
type CachedTextEmbedder struct {
	embedder *Embedder
	cache    Cache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewCachedTextEmbedder creates a caching text embedder
func NewCachedTextEmbedder(embedder *Embedder, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedTextEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedTextEmbedder{
		embedder: embedder,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
	}
}

// EmbedText returns the cached embedding for the query or computes and stores it
func (c *CachedTextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.embedder.Model(), c.embedder.PrepareText(text))

	vector, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	} else if ok {
		return vector, nil
	}

	vector, err = c.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, vector, c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vector, nil
}

// CacheKey derives the cache key for a prepared text under a model
func CacheKey(model, prepared string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prepared))
	return "embedding:" + hex.EncodeToString(sum[:])
}
