package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PubuduLasith093/RiskSafeAI/internal/cache"
)

// Embedder produces dense vectors for obligation statements. The OpenAI
// provider satisfies this directly.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CachedEmbedder memoizes embeddings per statement so re-clustering within a
// process never re-embeds identical text
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedEmbedder wraps an embedder with cache-backed memoization
func NewCachedEmbedder(inner Embedder, c cache.Cache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, ttl: ttl}
}

// Embed returns vectors in input order, fetching only cache misses from the
// underlying embedder
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		key := cache.Key("embedding", text)
		if raw, found := e.cache.Get(key); found {
			var v []float32
			if err := json.Unmarshal(raw, &v); err == nil {
				vectors[i] = v
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	fetched, err := e.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fetched), len(missing))
	}

	for j, v := range fetched {
		vectors[missingIdx[j]] = v
		if raw, err := json.Marshal(v); err == nil {
			_ = e.cache.Set(cache.Key("embedding", missing[j]), raw, e.ttl)
		}
	}
	return vectors, nil
}
