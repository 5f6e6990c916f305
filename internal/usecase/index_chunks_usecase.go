package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"rag-contextkit/internal/bm25"
	"rag-contextkit/internal/domain"
)

// IndexChunksInput carries pre-chunked text to index. Chunking and document
// parsing happen upstream.
type IndexChunksInput struct {
	Chunks []domain.Chunk
}

// IndexChunksOutput reports what was indexed.
type IndexChunksOutput struct {
	Indexed     int
	CorpusSize  int
	EmbedTokens int
}

// IndexChunksUsecase adds chunks to both retrieval sources: embeddings go to
// the vector store, and the sparse index is rebuilt over the accumulated
// corpus.
type IndexChunksUsecase interface {
	Execute(ctx context.Context, input IndexChunksInput) (*IndexChunksOutput, error)
}

type indexChunksUsecase struct {
	store    domain.VectorStore
	embedder domain.EmbeddingProvider
	sparse   *bm25.Index
	logger   *slog.Logger

	mu     sync.Mutex
	corpus []domain.Chunk
	seen   map[string]bool
}

// NewIndexChunksUsecase creates the indexing usecase.
func NewIndexChunksUsecase(
	store domain.VectorStore,
	embedder domain.EmbeddingProvider,
	sparse *bm25.Index,
	logger *slog.Logger,
) IndexChunksUsecase {
	return &indexChunksUsecase{
		store:    store,
		embedder: embedder,
		sparse:   sparse,
		logger:   logger,
		seen:     make(map[string]bool),
	}
}

func (u *indexChunksUsecase) Execute(ctx context.Context, input IndexChunksInput) (*IndexChunksOutput, error) {
	if len(input.Chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index", domain.ErrInvalidInput)
	}
	for _, c := range input.Chunks {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: chunk has empty id", domain.ErrInvalidInput)
		}
		if strings.TrimSpace(c.Content) == "" {
			return nil, fmt.Errorf("%w: chunk %s has empty content", domain.ErrInvalidInput, c.ID)
		}
	}

	start := time.Now()

	texts := make([]string, len(input.Chunks))
	for i, c := range input.Chunks {
		texts[i] = c.Content
	}
	embs, err := u.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embs) != len(input.Chunks) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(input.Chunks), len(embs))
	}

	vectors := make([][]float32, len(embs))
	embedTokens := 0
	for i, e := range embs {
		vectors[i] = e.Vector
		embedTokens += e.TokenCount
	}

	if err := u.store.UpsertChunks(ctx, input.Chunks, vectors); err != nil {
		return nil, fmt.Errorf("failed to upsert chunks: %w", err)
	}

	u.mu.Lock()
	for _, c := range input.Chunks {
		if u.seen[c.ID] {
			// Re-indexed chunk: replace in place so the corpus never holds
			// two entries under one ID.
			for i := range u.corpus {
				if u.corpus[i].ID == c.ID {
					u.corpus[i] = c
					break
				}
			}
			continue
		}
		u.seen[c.ID] = true
		u.corpus = append(u.corpus, c)
	}
	corpus := append([]domain.Chunk(nil), u.corpus...)
	u.mu.Unlock()

	if err := u.sparse.Build(corpus); err != nil {
		return nil, fmt.Errorf("failed to build sparse index: %w", err)
	}

	u.logger.Info("chunks_indexed",
		slog.Int("chunk_count", len(input.Chunks)),
		slog.Int("corpus_size", len(corpus)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return &IndexChunksOutput{
		Indexed:     len(input.Chunks),
		CorpusSize:  len(corpus),
		EmbedTokens: embedTokens,
	}, nil
}
