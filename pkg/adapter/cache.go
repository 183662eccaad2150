package adapter

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
)

// CachedEmbedder wraps another Embedder with an in-process cache keyed by
// text. Dedupe workflows often re-embed the same text within seconds, so
// even a small cache cuts provider calls noticeably.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps inner with a cache holding roughly maxEntries
// embeddings
func NewCachedEmbedder(inner Embedder, maxEntries int64) (*CachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}

	return &CachedEmbedder{
		inner: inner,
		cache: cache,
	}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache.Get(text); ok {
		if vector, ok := cached.([]float32); ok {
			return vector, nil
		}
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(text, vector, 1)
	return vector, nil
}

func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

func (c *CachedEmbedder) Dimension(ctx context.Context) (int, error) {
	return c.inner.Dimension(ctx)
}

// Wait blocks until pending cache writes are applied. Only tests need this.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}
