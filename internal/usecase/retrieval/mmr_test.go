package retrieval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-contextkit/internal/domain"
	"rag-contextkit/internal/usecase/retrieval"
)

func TestCosineSimilarity(t *testing.T) {
	sim, err := retrieval.CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = retrieval.CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = retrieval.CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := retrieval.CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	sim, err := retrieval.CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestMMRConfig_Validate(t *testing.T) {
	assert.NoError(t, retrieval.DefaultMMRConfig().Validate())

	bad := retrieval.MMRConfig{Lambda: 1.1, TopK: 5}
	assert.ErrorIs(t, bad.Validate(), domain.ErrConfig)

	bad = retrieval.MMRConfig{Lambda: 0.5, TopK: 0}
	assert.ErrorIs(t, bad.Validate(), domain.ErrConfig)
}

func mmrCandidate(id string, score float64, vec []float32) domain.RetrievalResult {
	return domain.RetrievalResult{
		ID:        id,
		Chunk:     domain.Chunk{ID: id, Content: "content " + id},
		Score:     score,
		Embedding: vec,
	}
}

func TestRerankMMR_LambdaOneKeepsRelevanceOrder(t *testing.T) {
	// Near-identical vectors: with lambda=1 diversity is ignored entirely.
	results := []domain.RetrievalResult{
		mmrCandidate("a", 0.9, []float32{1, 0}),
		mmrCandidate("b", 0.8, []float32{0.99, 0.01}),
		mmrCandidate("c", 0.7, []float32{0.98, 0.02}),
	}

	reranked, err := retrieval.RerankMMR(results, retrieval.MMRConfig{Lambda: 1.0, TopK: 3}, testLogger())
	require.NoError(t, err)
	require.Len(t, reranked, 3)

	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, reranked[i].ID)
		assert.Equal(t, i+1, reranked[i].NewRank)
	}
	assert.Equal(t, 1, reranked[0].OriginalRank)
}

func TestRerankMMR_LambdaZeroMaximizesSpread(t *testing.T) {
	// "b" duplicates "a"'s direction; with lambda=0 the orthogonal "c" must
	// be picked before "b" regardless of score.
	results := []domain.RetrievalResult{
		mmrCandidate("a", 0.9, []float32{1, 0}),
		mmrCandidate("b", 0.8, []float32{1, 0}),
		mmrCandidate("c", 0.1, []float32{0, 1}),
	}

	reranked, err := retrieval.RerankMMR(results, retrieval.MMRConfig{Lambda: 0.0, TopK: 3}, testLogger())
	require.NoError(t, err)
	require.Len(t, reranked, 3)

	assert.Equal(t, "a", reranked[0].ID)
	assert.Equal(t, "c", reranked[1].ID)
	assert.Equal(t, "b", reranked[2].ID)
}

func TestRerankMMR_PenalizesRedundancy(t *testing.T) {
	// "b" scores above "c" but duplicates the already-selected "a"; a
	// balanced lambda prefers the diverse "c".
	results := []domain.RetrievalResult{
		mmrCandidate("a", 1.0, []float32{1, 0}),
		mmrCandidate("b", 0.85, []float32{1, 0}),
		mmrCandidate("c", 0.6, []float32{0.1, 1}),
	}

	reranked, err := retrieval.RerankMMR(results, retrieval.MMRConfig{Lambda: 0.5, TopK: 2}, testLogger())
	require.NoError(t, err)
	require.Len(t, reranked, 2)

	assert.Equal(t, "a", reranked[0].ID)
	assert.Equal(t, "c", reranked[1].ID)
	assert.Greater(t, reranked[1].Scores.DiversityPenalty, 0.0)
	assert.Equal(t, 0.6, reranked[1].Scores.RelevanceScore)
}

func TestRerankMMR_TopKLimitsSelection(t *testing.T) {
	results := []domain.RetrievalResult{
		mmrCandidate("a", 0.9, []float32{1, 0}),
		mmrCandidate("b", 0.8, []float32{0, 1}),
		mmrCandidate("c", 0.7, []float32{1, 1}),
	}

	reranked, err := retrieval.RerankMMR(results, retrieval.MMRConfig{Lambda: 0.7, TopK: 2}, testLogger())
	require.NoError(t, err)
	assert.Len(t, reranked, 2)
}

func TestRerankMMR_TopKLargerThanInput(t *testing.T) {
	results := []domain.RetrievalResult{
		mmrCandidate("a", 0.9, []float32{1, 0}),
	}

	reranked, err := retrieval.RerankMMR(results, retrieval.MMRConfig{Lambda: 0.7, TopK: 10}, testLogger())
	require.NoError(t, err)
	assert.Len(t, reranked, 1)
}

func TestRerankMMR_MissingEmbedding(t *testing.T) {
	results := []domain.RetrievalResult{
		mmrCandidate("a", 0.9, []float32{1, 0}),
		{ID: "b", Score: 0.8, Chunk: domain.Chunk{ID: "b"}},
	}

	_, err := retrieval.RerankMMR(results, retrieval.DefaultMMRConfig(), testLogger())
	assert.ErrorIs(t, err, domain.ErrEmbeddingRequired)
}

func TestRerankMMR_DimensionMismatchSurfaces(t *testing.T) {
	results := []domain.RetrievalResult{
		mmrCandidate("a", 0.9, []float32{1, 0}),
		mmrCandidate("b", 0.8, []float32{1, 0, 0}),
	}

	_, err := retrieval.RerankMMR(results, retrieval.MMRConfig{Lambda: 0.5, TopK: 2}, testLogger())
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestRerankMMR_EmptyInput(t *testing.T) {
	reranked, err := retrieval.RerankMMR(nil, retrieval.DefaultMMRConfig(), testLogger())
	require.NoError(t, err)
	assert.Empty(t, reranked)
}

func BenchmarkRerankMMR(b *testing.B) {
	results := make([]domain.RetrievalResult, 100)
	for i := range results {
		vec := make([]float32, 128)
		for d := range vec {
			vec[d] = float32((i*31+d*7)%97) / 97.0
		}
		results[i] = domain.RetrievalResult{
			ID:        string(rune('a' + i%26)),
			Score:     1.0 - float64(i)/100.0,
			Embedding: vec,
		}
	}
	cfg := retrieval.MMRConfig{Lambda: 0.7, TopK: 20}
	logger := testLogger()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := retrieval.RerankMMR(results, cfg, logger); err != nil {
			b.Fatal(err)
		}
	}
}
