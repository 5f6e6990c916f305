package retrieval

import (
	"fmt"
	"sort"

	"rag-contextkit/internal/domain"
)

// Ordering strategy names.
const (
	OrderRelevance = "relevance"
	OrderSandwich  = "sandwich"
)

// OrderConfig holds settings for final chunk arrangement.
type OrderConfig struct {
	Strategy string
	// SandwichStartCount is how many of the highest-scoring chunks lead the
	// output under the sandwich strategy. Zero means half the set, rounded up.
	SandwichStartCount int
}

// DefaultOrderConfig returns strict relevance ordering.
func DefaultOrderConfig() OrderConfig {
	return OrderConfig{Strategy: OrderRelevance}
}

// OrderFunc arranges scored results into their final sequence.
type OrderFunc func(results []domain.RerankerResult, cfg OrderConfig) []domain.RerankerResult

// OrderByRelevance stable-sorts by score descending; ties preserve input
// order.
func OrderByRelevance(results []domain.RerankerResult, _ OrderConfig) []domain.RerankerResult {
	out := append([]domain.RerankerResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// OrderSandwiched places the top chunks at the start in descending order and
// the remainder so that scores descend toward the very end, leaving the
// weakest chunks in the middle. This offsets the "lost in the middle"
// attention bias of long-context consumers.
func OrderSandwiched(results []domain.RerankerResult, cfg OrderConfig) []domain.RerankerResult {
	sorted := OrderByRelevance(results, cfg)

	start := cfg.SandwichStartCount
	if start <= 0 {
		start = (len(sorted) + 1) / 2
	}
	if start >= len(sorted) {
		return sorted
	}

	out := make([]domain.RerankerResult, 0, len(sorted))
	out = append(out, sorted[:start]...)
	for i := len(sorted) - 1; i >= start; i-- {
		out = append(out, sorted[i])
	}
	return out
}

// OrderChunks arranges results using the named strategy. Unrecognized names
// fail with a configuration error rather than silently defaulting.
func OrderChunks(results []domain.RerankerResult, cfg OrderConfig) ([]domain.RerankerResult, error) {
	switch cfg.Strategy {
	case OrderRelevance:
		return OrderByRelevance(results, cfg), nil
	case OrderSandwich:
		return OrderSandwiched(results, cfg), nil
	default:
		return nil, fmt.Errorf("%w: unrecognized ordering strategy %q", domain.ErrConfig, cfg.Strategy)
	}
}
