package embedding

import (
	"context"
	"encoding/json"
	"time"

	"github.com/utility-explorer/intelligence/internal/cache"
)

// CachedEmbedder wraps an Embedder with a cache keyed on model + text.
// The classifier and resolver embed the same fixed anchor phrases on
// every request; since embeddings are deterministic per model version,
// caching them changes nothing observable and removes the dominant cost.
type CachedEmbedder struct {
	inner Embedder
	cache cache.Client
	ttl   time.Duration
}

// NewCachedEmbedder wraps inner with the given cache client.
func NewCachedEmbedder(inner Embedder, c cache.Client, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, ttl: ttl}
}

// EmbedSingle returns a cached embedding when available.
func (e *CachedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key("emb", e.inner.Model(), text)

	if data, err := e.cache.Get(ctx, key); err == nil {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil {
			return vec, nil
		}
	}

	vec, err := e.inner.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		_ = e.cache.Set(ctx, key, data, e.ttl)
	}

	return vec, nil
}

// Model returns the inner model name.
func (e *CachedEmbedder) Model() string {
	return e.inner.Model()
}

// Dimension returns the inner embedding dimension.
func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

var _ Embedder = (*CachedEmbedder)(nil)
