package cache

import (
	"context"
	"fmt"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

// Embedder is the subset of the embedding client CachedEmbedder wraps.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ImageEmbedder is implemented by embedders that also support multimodal
// text+image queries. CachedEmbedder forwards to it uncached when present,
// since image bytes make the query non-repeating in practice.
type ImageEmbedder interface {
	EmbedMultimodal(ctx context.Context, text string, image []byte) ([]float32, error)
}

// CachedEmbedder memoizes single-text Embed calls in an EmbeddingCache,
// so repeated retrieval queries skip the Vertex AI round-trip entirely.
// Batches of more than one text bypass the cache and go straight to inner,
// since query-time embedding always calls Embed with exactly one text.
type CachedEmbedder struct {
	inner Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps inner with cache.
func NewCachedEmbedder(inner Embedder, cache *EmbeddingCache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

var _ service.QueryEmbedder = (*CachedEmbedder)(nil)

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return c.inner.Embed(ctx, texts)
	}

	key := EmbeddingQueryHash(texts[0])
	if vec, ok := c.cache.Get(key); ok {
		return [][]float32{vec}, nil
	}

	vecs, err := c.inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 1 {
		c.cache.Set(key, vecs[0])
	}
	return vecs, nil
}

// EmbedMultimodal forwards to inner uncached when inner supports it,
// satisfying the retrieval service's optional image-query embedder contract.
func (c *CachedEmbedder) EmbedMultimodal(ctx context.Context, text string, image []byte) ([]float32, error) {
	ie, ok := c.inner.(ImageEmbedder)
	if !ok {
		return nil, fmt.Errorf("cache.CachedEmbedder.EmbedMultimodal: inner embedder does not support multimodal queries")
	}
	return ie.EmbedMultimodal(ctx, text, image)
}
