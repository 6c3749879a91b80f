package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"curation-service/internal/apperr"
	"curation-service/internal/cache"
	"curation-service/internal/logger"
	"curation-service/internal/metrics"
)

// Embedder computes an embedding vector for text (implementation: embedding.Client).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const DefaultEmbeddingCacheTTL = 10 * time.Minute

// EmbeddingCache is a read-through, content-addressed cache of query embeddings.
// Entries only leave by TTL. Concurrent misses for the same key share one
// external call. Store failures degrade to calling the embedder.
type EmbeddingCache struct {
	embedder Embedder
	store    cache.Store
	ttl      time.Duration
	group    singleflight.Group
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewEmbeddingCache(embedder Embedder, store cache.Store, ttl time.Duration, log *logger.Logger, m *metrics.Metrics) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultEmbeddingCacheTTL
	}
	return &EmbeddingCache{embedder: embedder, store: store, ttl: ttl, log: log.With("component", "embedding_cache"), metrics: m}
}

// NormalizeQuery trims, collapses inner whitespace and lowercases.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// EmbeddingKey hashes the normalized text together with the threshold.
func EmbeddingKey(normalized string, threshold float64) string {
	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(threshold, 'f', -1, 64)))
	return "embedding:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the embedding for an already normalized query.
func (c *EmbeddingCache) Get(ctx context.Context, normalized string, threshold float64) ([]float32, error) {
	if c.embedder == nil {
		return nil, apperr.Upstream("embedding service is not configured", false, nil)
	}
	key := EmbeddingKey(normalized, threshold)

	if vec, ok := c.lookup(ctx, key); ok {
		c.metrics.IncCacheLookup("embedding", metrics.CacheHitShared)
		return vec, nil
	}
	c.metrics.IncCacheLookup("embedding", metrics.CacheMiss)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// a caller that arrived while another one was filling the key
		if vec, ok := c.lookup(ctx, key); ok {
			return vec, nil
		}

		callCtx := context.WithoutCancel(ctx)
		vec, err := c.embedder.Embed(callCtx, normalized)
		if err != nil {
			c.metrics.IncEmbeddingCall("error")
			return nil, err
		}
		c.metrics.IncEmbeddingCall("ok")

		raw, _ := json.Marshal(vec)
		if err := c.store.Set(callCtx, key, raw, c.ttl); err != nil {
			c.log.Warn("embedding cache write failed", "error", err)
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (c *EmbeddingCache) lookup(ctx context.Context, key string) ([]float32, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("embedding cache read failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}
