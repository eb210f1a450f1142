package cache

import (
	"context"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

// RetrieverClient is the subset of RetrieverService that CachedRetriever
// wraps.
type RetrieverClient interface {
	Retrieve(ctx context.Context, p service.RetrieveParams) ([]service.Candidate, error)
}

// CachedRetriever memoizes Retrieve results by (query, scope, crossDoc) in a
// QueryCache, so repeated questions against the same document scope skip
// the hybrid lexical/vector/cross-encoder/MMR pipeline entirely.
type CachedRetriever struct {
	inner RetrieverClient
	cache *QueryCache
}

// NewCachedRetriever wraps inner with cache.
func NewCachedRetriever(inner RetrieverClient, cache *QueryCache) *CachedRetriever {
	return &CachedRetriever{inner: inner, cache: cache}
}

// Retrieve serves from cache on a hit, otherwise runs inner and populates
// the cache with the result.
func (c *CachedRetriever) Retrieve(ctx context.Context, p service.RetrieveParams) ([]service.Candidate, error) {
	if candidates, ok := c.cache.Get(p.Query, p.Scope, p.CrossDoc); ok {
		return candidates, nil
	}

	candidates, err := c.inner.Retrieve(ctx, p)
	if err != nil {
		return nil, err
	}
	c.cache.Set(p.Query, p.Scope, p.CrossDoc, candidates)
	return candidates, nil
}

// InvalidateDocument drops every cached retrieval result that scoped to
// docID, called when a document is deleted or re-ingested.
func (c *CachedRetriever) InvalidateDocument(docID string) {
	c.cache.InvalidateDocument(docID)
}
