// Package cache provides in-memory caching for the RAG pipeline.
package cache

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

// defaultQueryCacheSize bounds the retrieval cache the same way
// defaultEmbeddingCacheSize bounds the embedding cache.
const defaultQueryCacheSize = 5000

// QueryCache caches retrieved candidates by (query, document scope,
// cross-doc flag), avoiding a repeat hybrid-retrieval round trip for a
// query that was just answered. Thread-safe, bounded by TTL and LRU size.
type QueryCache struct {
	mu  sync.RWMutex
	lru *lru.Cache[string, *queryCacheEntry]
	ttl time.Duration

	stopCh chan struct{}
}

type queryCacheEntry struct {
	candidates []service.Candidate
	createdAt  time.Time
	expiresAt  time.Time
}

// New creates a QueryCache with the given TTL and starts background cleanup.
func New(ttl time.Duration) *QueryCache {
	backing, err := lru.New[string, *queryCacheEntry](defaultQueryCacheSize)
	if err != nil {
		panic(fmt.Sprintf("cache.New: %v", err))
	}
	c := &QueryCache{
		lru:    backing,
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns cached candidates for a query scoped to docIDs, if present and
// not expired.
func (c *QueryCache) Get(query string, docIDs []string, crossDoc bool) ([]service.Candidate, bool) {
	key := cacheKey(query, docIDs, crossDoc)
	c.mu.RLock()
	entry, ok := c.lru.Get(key)
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		c.lru.Remove(key)
		c.mu.Unlock()
		return nil, false
	}

	slog.Info("[QUERY-CACHE] hit",
		"query_hash", key,
		"age_ms", time.Since(entry.createdAt).Milliseconds(),
	)
	return entry.candidates, true
}

// Set stores retrieved candidates for a query scoped to docIDs.
func (c *QueryCache) Set(query string, docIDs []string, crossDoc bool, candidates []service.Candidate) {
	key := cacheKey(query, docIDs, crossDoc)
	now := time.Now()
	c.mu.Lock()
	evicted := c.lru.Add(key, &queryCacheEntry{
		candidates: candidates,
		createdAt:  now,
		expiresAt:  now.Add(c.ttl),
	})
	c.mu.Unlock()

	slog.Info("[QUERY-CACHE] set",
		"query_hash", key,
		"candidate_count", len(candidates),
		"ttl_s", int(c.ttl.Seconds()),
		"evicted_for_capacity", evicted,
	)
}

// InvalidateDocument drops every cached entry whose key was built from a
// scope containing docID. Call this after a document is re-indexed or
// deleted so stale candidates never outlive the chunks they point at.
func (c *QueryCache) InvalidateDocument(docID string) {
	needle := "|" + docID + "|"
	c.mu.Lock()
	count := 0
	for _, key := range c.lru.Keys() {
		if strings.Contains(key, needle) {
			c.lru.Remove(key)
			count++
		}
	}
	c.mu.Unlock()

	if count > 0 {
		slog.Info("[QUERY-CACHE] invalidated document", "doc_id", docID, "entries_removed", count)
	}
}

// Len returns the number of entries in the cache.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Stop halts the background cleanup goroutine.
func (c *QueryCache) Stop() {
	close(c.stopCh)
}

// cleanup removes TTL-expired entries every 5 minutes.
func (c *QueryCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			before := c.lru.Len()
			for _, key := range c.lru.Keys() {
				entry, ok := c.lru.Peek(key)
				if ok && now.After(entry.expiresAt) {
					c.lru.Remove(key)
				}
			}
			after := c.lru.Len()
			c.mu.Unlock()
			if before != after {
				slog.Info("[QUERY-CACHE] cleanup", "removed", before-after, "remaining", after)
			}
		case <-c.stopCh:
			return
		}
	}
}

// cacheKey builds a deterministic key embedding the doc scope so
// InvalidateDocument can substring-match it: "qc:{crossDoc}:|id1|id2|:{hash}"
func cacheKey(query string, docIDs []string, crossDoc bool) string {
	sorted := append([]string(nil), docIDs...)
	sort.Strings(sorted)
	scope := "|" + strings.Join(sorted, "|") + "|"
	if len(sorted) == 0 {
		scope = "||"
	}

	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf("qc:%v:%s:%x", crossDoc, scope, h[:8])
}
