package embeddings

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
)

const (
	defaultMaxCostBytes = 64 << 20 // 64 MiB of vectors
	defaultNumCounters  = 100_000
)

// Cache is a read-through Embedder. Identical content always embeds to the
// same vector, so results are cached by content hash and repeated Learn or
// Recall calls on the same text skip the provider round trip.
type Cache struct {
	inner  Embedder
	cache  *ristretto.Cache
	logger *zap.Logger
}

// CacheConfig holds configuration for the embedding cache.
type CacheConfig struct {
	// MaxCostBytes bounds the cache by the byte size of stored vectors
	// (defaults to 64 MiB).
	MaxCostBytes int64

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// NewCache wraps an embedder with a ristretto cache.
func NewCache(inner Embedder, c CacheConfig) (*Cache, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner embedder is required")
	}
	if c.MaxCostBytes <= 0 {
		c.MaxCostBytes = defaultMaxCostBytes
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     c.MaxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return &Cache{
		inner:  inner,
		cache:  cache,
		logger: c.Logger,
	}, nil
}

// Embed returns the cached vector for the text's content hash, or asks the
// inner embedder and caches the result.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := memory.HashContent(text)

	if hit, ok := c.cache.Get(key); ok {
		if vec, ok := hit.([]float32); ok {
			c.logger.Debug("embedding cache hit",
				zap.String("text_hash", key),
			)
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, vec, int64(len(vec)*4))
	return vec, nil
}

// Wait blocks until buffered cache writes are applied. Ristretto admits
// entries asynchronously; callers that need read-your-write (tests, mostly)
// call this between Embed calls.
func (c *Cache) Wait() {
	c.cache.Wait()
}

// Close releases the cache and the inner embedder.
func (c *Cache) Close() error {
	c.cache.Close()
	return c.inner.Close()
}

var _ Embedder = (*Cache)(nil)
