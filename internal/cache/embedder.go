package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"rag-contextkit/internal/domain"
)

// CachedEmbeddingProvider memoizes embeddings around any inner provider.
// Composition, not inheritance: it holds a cache and the wrapped provider
// and satisfies the same interface.
type CachedEmbeddingProvider struct {
	inner  domain.EmbeddingProvider
	cache  Provider[domain.Embedding]
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedEmbeddingProvider wraps inner with cache. A zero ttl defers to the
// cache's default TTL.
func NewCachedEmbeddingProvider(
	inner domain.EmbeddingProvider,
	cache Provider[domain.Embedding],
	ttl time.Duration,
	logger *slog.Logger,
) *CachedEmbeddingProvider {
	return &CachedEmbeddingProvider{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func embeddingKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (p *CachedEmbeddingProvider) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	key := embeddingKey(text)
	if emb, ok := p.cache.Get(key); ok {
		return emb, nil
	}
	emb, err := p.inner.Embed(ctx, text)
	if err != nil {
		return domain.Embedding{}, err
	}
	p.cache.Set(key, emb, p.ttl)
	return emb, nil
}

// EmbedBatch serves cached texts locally and forwards only the misses to the
// inner provider in a single batch call.
func (p *CachedEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if emb, ok := p.cache.Get(embeddingKey(text)); ok {
			out[i] = emb
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fetched, err := p.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missTexts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(fetched))
	}
	for j, i := range missIdx {
		out[i] = fetched[j]
		p.cache.Set(embeddingKey(texts[i]), fetched[j], p.ttl)
	}

	if p.logger != nil {
		p.logger.Debug("embedding_batch_served",
			slog.Int("total", len(texts)),
			slog.Int("cache_hits", len(texts)-len(missTexts)),
			slog.Int("fetched", len(missTexts)))
	}
	return out, nil
}

func (p *CachedEmbeddingProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}
