package retrieval

import (
	"fmt"
	"log/slog"
	"math"

	"rag-contextkit/internal/domain"
)

// MMRConfig holds settings for maximal-marginal-relevance reranking.
// Lambda trades relevance against diversity: 1 degenerates to pure relevance
// ranking, 0 ignores relevance and maximizes spread.
type MMRConfig struct {
	Lambda float64
	TopK   int
}

// DefaultMMRConfig returns a balanced starting point.
func DefaultMMRConfig() MMRConfig {
	return MMRConfig{Lambda: 0.7, TopK: 10}
}

// Validate checks the MMR configuration ranges.
func (c MMRConfig) Validate() error {
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("%w: mmr lambda must be in [0.0, 1.0], got %f", domain.ErrConfig, c.Lambda)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: mmr topK must be positive, got %d", domain.ErrConfig, c.TopK)
	}
	return nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Vectors of differing length fail fast; zero-magnitude vectors yield 0
// rather than NaN.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// RerankMMR greedily selects up to TopK results, each round picking the
// candidate maximizing lambda*relevance - (1-lambda)*maxSimilarityToSelected.
// Relevance is the candidate's retrieval score, assumed pre-normalized to
// [0,1]. Every input must carry an embedding.
func RerankMMR(results []domain.RetrievalResult, cfg MMRConfig, logger *slog.Logger) ([]domain.RerankerResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, r := range results {
		if len(r.Embedding) == 0 {
			return nil, fmt.Errorf("%w: result %s has no embedding", domain.ErrEmbeddingRequired, r.ID)
		}
	}

	type candidate struct {
		result       domain.RetrievalResult
		originalRank int
	}
	remaining := make([]candidate, len(results))
	for i, r := range results {
		remaining[i] = candidate{result: r, originalRank: i + 1}
	}

	topK := cfg.TopK
	if topK > len(remaining) {
		topK = len(remaining)
	}
	selected := make([]domain.RerankerResult, 0, topK)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)
		var bestPenalty float64

		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				sim, err := CosineSimilarity(cand.result.Embedding, sel.Embedding)
				if err != nil {
					return nil, err
				}
				if sim > maxSim {
					maxSim = sim
				}
			}
			penalty := (1 - cfg.Lambda) * maxSim
			score := cfg.Lambda*cand.result.Score - penalty
			if score > bestScore {
				bestScore = score
				bestIdx = i
				bestPenalty = penalty
			}
		}

		picked := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		selected = append(selected, domain.RerankerResult{
			ID:           picked.result.ID,
			Chunk:        picked.result.Chunk,
			Score:        bestScore,
			OriginalRank: picked.originalRank,
			NewRank:      len(selected) + 1,
			Scores: domain.RerankerScores{
				OriginalScore:    picked.result.Score,
				RerankerScore:    bestScore,
				RelevanceScore:   picked.result.Score,
				DiversityPenalty: bestPenalty,
			},
			Embedding: picked.result.Embedding,
		})
	}

	if logger != nil {
		logger.Info("mmr_rerank_completed",
			slog.Int("candidate_count", len(results)),
			slog.Int("selected_count", len(selected)),
			slog.Float64("lambda", cfg.Lambda))
	}
	return selected, nil
}
