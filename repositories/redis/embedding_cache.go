package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Options configures the Redis connection
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// EmbeddingCache stores query embeddings in Redis as JSON arrays
type EmbeddingCache struct {
	rdb *goredis.Client
}

// NewEmbeddingCache connects to Redis and verifies the connection
func NewEmbeddingCache(ctx context.Context, opts Options) (*EmbeddingCache, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &EmbeddingCache{rdb: rdb}, nil
}

// NewEmbeddingCacheFromClient wraps an existing client
func NewEmbeddingCacheFromClient(rdb *goredis.Client) *EmbeddingCache {
	return &EmbeddingCache{rdb: rdb}
}

// Get returns the cached vector. A missing key is not an error.
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil, false, fmt.Errorf("decode cached embedding: %w", err)
	}
	return vector, true, nil
}

// Set stores a vector with the given TTL; zero keeps it forever
func (c *EmbeddingCache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (c *EmbeddingCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *EmbeddingCache) Close() error {
	return c.rdb.Close()
}
