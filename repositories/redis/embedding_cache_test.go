package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableClient() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestNewEmbeddingCache_RequiresAddress(t *testing.T) {
	_, err := NewEmbeddingCache(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing redis address")
}

func TestNewEmbeddingCache_PingFailure(t *testing.T) {
	_, err := NewEmbeddingCache(context.Background(), Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestEmbeddingCache_UnreachableServer(t *testing.T) {
	cache := NewEmbeddingCacheFromClient(unreachableClient())
	defer cache.Close()

	_, ok, err := cache.Get(context.Background(), "embedding:abc")
	assert.Error(t, err)
	assert.False(t, ok)

	err = cache.Set(context.Background(), "embedding:abc", []float32{0.1}, time.Minute)
	assert.Error(t, err)

	assert.Error(t, cache.Ping(context.Background()))
}
