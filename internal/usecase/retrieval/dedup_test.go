package retrieval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-contextkit/internal/domain"
	"rag-contextkit/internal/usecase/retrieval"
)

func TestJaccardSimilarity(t *testing.T) {
	// Identical texts regardless of case and punctuation.
	assert.Equal(t, 1.0, retrieval.JaccardSimilarity("Hello, World!", "hello world"))

	// Disjoint word sets.
	assert.Equal(t, 0.0, retrieval.JaccardSimilarity("alpha beta", "gamma delta"))

	// {a,b,c} vs {b,c,d}: 2 shared of 4 total.
	assert.InDelta(t, 0.5, retrieval.JaccardSimilarity("a b c", "b c d"), 1e-9)

	// Two empty texts count as identical.
	assert.Equal(t, 1.0, retrieval.JaccardSimilarity("", ""))
	assert.Equal(t, 0.0, retrieval.JaccardSimilarity("word", ""))
}

func TestJaccardSimilarity_Symmetric(t *testing.T) {
	a := "the quick brown fox"
	b := "the slow brown turtle"
	assert.Equal(t, retrieval.JaccardSimilarity(a, b), retrieval.JaccardSimilarity(b, a))
}

func dedupItem(id string, score float64, content string) domain.RerankerResult {
	return domain.RerankerResult{
		ID:    id,
		Score: score,
		Chunk: domain.Chunk{ID: id, Content: content},
	}
}

func TestDedupConfig_Validate(t *testing.T) {
	assert.NoError(t, retrieval.DefaultDedupConfig().Validate())

	bad := retrieval.DedupConfig{SimilarityThreshold: 0}
	assert.ErrorIs(t, bad.Validate(), domain.ErrConfig)

	bad = retrieval.DedupConfig{SimilarityThreshold: 1.5}
	assert.ErrorIs(t, bad.Validate(), domain.ErrConfig)
}

func TestDeduplicate_UnrelatedChunksUntouched(t *testing.T) {
	results := []domain.RerankerResult{
		dedupItem("a", 0.9, "postgres connection pooling"),
		dedupItem("b", 0.8, "jaccard similarity thresholds"),
		dedupItem("c", 0.7, "reciprocal rank fusion basics"),
	}

	out, err := retrieval.Deduplicate(results, retrieval.DefaultDedupConfig(), testLogger())
	require.NoError(t, err)

	assert.Len(t, out.Unique, 3)
	assert.Empty(t, out.Duplicates)
	assert.Equal(t, 3, out.Comparisons)
}

func TestDeduplicate_KeepHighestScore(t *testing.T) {
	results := []domain.RerankerResult{
		dedupItem("low", 0.5, "token budget enforcement for context windows"),
		dedupItem("high", 0.9, "token budget enforcement for context windows"),
	}

	cfg := retrieval.DedupConfig{SimilarityThreshold: 0.8, KeepHighestScore: true}
	out, err := retrieval.Deduplicate(results, cfg, testLogger())
	require.NoError(t, err)

	require.Len(t, out.Unique, 1)
	assert.Equal(t, "high", out.Unique[0].ID)
	require.Len(t, out.Duplicates, 1)
	assert.Equal(t, "low", out.Duplicates[0].RemovedID)
	assert.Equal(t, "high", out.Duplicates[0].KeptID)
	assert.Equal(t, 1.0, out.Duplicates[0].Similarity)
}

func TestDeduplicate_KeepFirstWhenPolicyDisabled(t *testing.T) {
	results := []domain.RerankerResult{
		dedupItem("first", 0.5, "token budget enforcement for context windows"),
		dedupItem("second", 0.9, "token budget enforcement for context windows"),
	}

	cfg := retrieval.DedupConfig{SimilarityThreshold: 0.8, KeepHighestScore: false}
	out, err := retrieval.Deduplicate(results, cfg, testLogger())
	require.NoError(t, err)

	require.Len(t, out.Unique, 1)
	assert.Equal(t, "first", out.Unique[0].ID)
}

func TestDeduplicate_EqualScoresKeepFirst(t *testing.T) {
	results := []domain.RerankerResult{
		dedupItem("first", 0.7, "identical duplicate content here"),
		dedupItem("second", 0.7, "identical duplicate content here"),
	}

	cfg := retrieval.DedupConfig{SimilarityThreshold: 0.8, KeepHighestScore: true}
	out, err := retrieval.Deduplicate(results, cfg, testLogger())
	require.NoError(t, err)

	require.Len(t, out.Unique, 1)
	assert.Equal(t, "first", out.Unique[0].ID)
}

func TestDeduplicate_RemovedItemsNotComparedFurther(t *testing.T) {
	// a~b and b~c but a and c share little: removing b must not cascade
	// into removing c.
	results := []domain.RerankerResult{
		dedupItem("a", 0.9, "alpha beta gamma delta epsilon"),
		dedupItem("b", 0.8, "alpha beta gamma delta zeta"),
		dedupItem("c", 0.7, "beta gamma delta zeta eta"),
	}

	cfg := retrieval.DedupConfig{SimilarityThreshold: 0.6, KeepHighestScore: true}
	out, err := retrieval.Deduplicate(results, cfg, testLogger())
	require.NoError(t, err)

	ids := make([]string, 0, len(out.Unique))
	for _, r := range out.Unique {
		ids = append(ids, r.ID)
	}
	// a removes b (sim 4/6 ≥ 0.6); a vs c shares 3 of 7 words, below
	// threshold, so c survives.
	assert.Equal(t, []string{"a", "c"}, ids)
	require.Len(t, out.Duplicates, 1)
	assert.Equal(t, "b", out.Duplicates[0].RemovedID)
}

func TestDeduplicate_ComparisonsCountSkipsRemoved(t *testing.T) {
	results := []domain.RerankerResult{
		dedupItem("a", 0.9, "one two three four"),
		dedupItem("b", 0.8, "one two three four"),
		dedupItem("c", 0.7, "five six seven eight"),
	}

	cfg := retrieval.DedupConfig{SimilarityThreshold: 0.8, KeepHighestScore: true}
	out, err := retrieval.Deduplicate(results, cfg, testLogger())
	require.NoError(t, err)

	// a-b removes b, then a-c; b-c is never evaluated.
	assert.Equal(t, 2, out.Comparisons)
}

func TestDeduplicate_EmptyInput(t *testing.T) {
	out, err := retrieval.Deduplicate(nil, retrieval.DefaultDedupConfig(), testLogger())
	require.NoError(t, err)
	assert.Empty(t, out.Unique)
	assert.Equal(t, 0, out.Comparisons)
}

func TestDeduplicate_InvalidConfig(t *testing.T) {
	_, err := retrieval.Deduplicate(nil, retrieval.DedupConfig{SimilarityThreshold: -1}, testLogger())
	assert.ErrorIs(t, err, domain.ErrConfig)
}
