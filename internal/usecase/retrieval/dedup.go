package retrieval

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"rag-contextkit/internal/domain"
)

// DedupConfig holds settings for near-duplicate removal.
type DedupConfig struct {
	// SimilarityThreshold is the Jaccard similarity at or above which two
	// chunks count as duplicates.
	SimilarityThreshold float64
	// KeepHighestScore keeps the higher-scoring member of a duplicate pair.
	// When false the later-encountered member is always removed.
	KeepHighestScore bool
}

// DefaultDedupConfig returns the standard near-duplicate settings.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{SimilarityThreshold: 0.8, KeepHighestScore: true}
}

// Validate checks the dedup configuration ranges.
func (c DedupConfig) Validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold must be in (0.0, 1.0], got %f",
			domain.ErrConfig, c.SimilarityThreshold)
	}
	return nil
}

// DuplicateRecord notes one removal for observability.
type DuplicateRecord struct {
	RemovedID  string
	KeptID     string
	Similarity float64
}

// DedupResult carries the survivors plus an audit trail of removals and the
// number of pairs evaluated.
type DedupResult struct {
	Unique      []domain.RerankerResult
	Duplicates  []DuplicateRecord
	Comparisons int
}

func wordSet(content string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// JaccardSimilarity computes |A∩B| / |A∪B| over the lowercase word-token
// sets of two texts. Two empty texts are identical.
func JaccardSimilarity(a, b string) float64 {
	return jaccardOverSets(wordSet(a), wordSet(b))
}

// Deduplicate removes near-duplicate chunks with an all-pairs comparison.
// A removed item is never compared further, so chains of near-duplicates
// (A~B, B~C, A≁C) do not cascade into removing dissimilar items. Ties keep
// the first-encountered item.
func Deduplicate(results []domain.RerankerResult, cfg DedupConfig, logger *slog.Logger) (DedupResult, error) {
	if err := cfg.Validate(); err != nil {
		return DedupResult{}, err
	}

	removed := make([]bool, len(results))
	tokenSets := make([]map[string]struct{}, len(results))
	for i, r := range results {
		tokenSets[i] = wordSet(r.Chunk.Content)
	}

	var duplicates []DuplicateRecord
	comparisons := 0

	for i := 0; i < len(results); i++ {
		if removed[i] {
			continue
		}
		for j := i + 1; j < len(results); j++ {
			if removed[i] {
				break
			}
			if removed[j] {
				continue
			}
			comparisons++
			sim := jaccardOverSets(tokenSets[i], tokenSets[j])
			if sim < cfg.SimilarityThreshold {
				continue
			}
			if cfg.KeepHighestScore && results[j].Score > results[i].Score {
				removed[i] = true
				duplicates = append(duplicates, DuplicateRecord{
					RemovedID:  results[i].ID,
					KeptID:     results[j].ID,
					Similarity: sim,
				})
			} else {
				removed[j] = true
				duplicates = append(duplicates, DuplicateRecord{
					RemovedID:  results[j].ID,
					KeptID:     results[i].ID,
					Similarity: sim,
				})
			}
		}
	}

	unique := make([]domain.RerankerResult, 0, len(results))
	for i, r := range results {
		if !removed[i] {
			unique = append(unique, r)
		}
	}

	if logger != nil {
		logger.Info("deduplication_completed",
			slog.Int("input_count", len(results)),
			slog.Int("unique_count", len(unique)),
			slog.Int("removed_count", len(duplicates)),
			slog.Int("comparisons", comparisons))
	}
	return DedupResult{Unique: unique, Duplicates: duplicates, Comparisons: comparisons}, nil
}

func jaccardOverSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
