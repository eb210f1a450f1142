// Package cache provides in-memory caching for the RAG pipeline.
//
// EmbeddingCache stores query→vector mappings to avoid redundant
// Vertex AI embedding calls for repeated or similar queries.
package cache

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultEmbeddingCacheSize bounds the cache at a fixed entry count on top of
// the TTL sweep, so a burst of distinct query text can't grow the cache
// without bound between cleanup ticks.
const defaultEmbeddingCacheSize = 10000

// EmbeddingCache caches query embedding vectors keyed by normalized query
// hash, bounded by both TTL and an LRU eviction cap.
type EmbeddingCache struct {
	mu     sync.RWMutex
	lru    *lru.Cache[string, *embeddingEntry]
	ttl    time.Duration
	stopCh chan struct{}
}

type embeddingEntry struct {
	vec       []float32
	createdAt time.Time
	expiresAt time.Time
}

// DefaultEmbeddingTTL is 15 minutes unless overridden by EMBEDDING_CACHE_TTL env var.
func DefaultEmbeddingTTL() time.Duration {
	if v := os.Getenv("EMBEDDING_CACHE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 15 * time.Minute
}

// NewEmbeddingCache creates an EmbeddingCache with the given TTL, bounded at
// defaultEmbeddingCacheSize entries, and starts background cleanup.
func NewEmbeddingCache(ttl time.Duration) *EmbeddingCache {
	backing, err := lru.New[string, *embeddingEntry](defaultEmbeddingCacheSize)
	if err != nil {
		// Only errs on a non-positive size, which defaultEmbeddingCacheSize never is.
		panic(fmt.Sprintf("cache.NewEmbeddingCache: %v", err))
	}
	c := &EmbeddingCache{
		lru:    backing,
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns a cached embedding vector if present and not expired.
func (c *EmbeddingCache) Get(queryHash string) ([]float32, bool) {
	c.mu.RLock()
	entry, ok := c.lru.Get(queryHash)
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		c.lru.Remove(queryHash)
		c.mu.Unlock()
		return nil, false
	}

	slog.Info("[EMBED-CACHE] hit",
		"query_hash", queryHash,
		"age_ms", time.Since(entry.createdAt).Milliseconds(),
	)
	return entry.vec, true
}

// Set stores an embedding vector in the cache, evicting the least recently
// used entry if the cache is at capacity.
func (c *EmbeddingCache) Set(queryHash string, vec []float32) {
	now := time.Now()
	c.mu.Lock()
	evicted := c.lru.Add(queryHash, &embeddingEntry{
		vec:       vec,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	})
	c.mu.Unlock()

	slog.Info("[EMBED-CACHE] set",
		"query_hash", queryHash,
		"vec_dim", len(vec),
		"ttl_s", int(c.ttl.Seconds()),
		"evicted_for_capacity", evicted,
	)
}

// Len returns the number of entries in the cache.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Stop halts the background cleanup goroutine.
func (c *EmbeddingCache) Stop() {
	close(c.stopCh)
}

// cleanup removes TTL-expired entries every 5 minutes, independent of the
// LRU's own capacity-driven eviction.
func (c *EmbeddingCache) cleanup() {
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
				slog.Info("[EMBED-CACHE] cleanup", "removed", before-after, "remaining", after)
			}
		case <-c.stopCh:
			return
		}
	}
}

// EmbeddingQueryHash returns a deterministic cache key for a query string.
// Normalizes by lowercasing and trimming whitespace before hashing.
func EmbeddingQueryHash(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("emb:%x", h[:16])
}
