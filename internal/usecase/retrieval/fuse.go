package retrieval

import (
	"fmt"
	"log/slog"
	"sort"

	"rag-contextkit/internal/domain"
)

// Contribution records what one source list added to a fused item.
type Contribution struct {
	List  string
	Rank  int
	Score float64
	RRF   float64
}

// RRFResult is one fused item with its per-list provenance. BestRank is the
// lowest rank the item held in any contributing list.
type RRFResult struct {
	ID            string
	Chunk         domain.Chunk
	Score         float64
	BestRank      int
	Contributions []Contribution
	Embedding     []float32
}

// FuseRRF merges independently ranked lists with reciprocal rank fusion:
// each list contributes 1/(k+rank) for every item it contains, and an item's
// fused score is the sum across lists. Items are matched by ID, not object
// identity. Ties break by best rank, then by list-encounter order, so output
// is fully deterministic.
func FuseRRF(lists []domain.RankedList, k float64, logger *slog.Logger) ([]RRFResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: rrf k must be positive, got %f", domain.ErrConfig, k)
	}

	fused := make(map[string]*RRFResult)
	encounter := make(map[string]int)
	order := 0

	for _, list := range lists {
		for _, item := range list.Items {
			r, exists := fused[item.ID]
			if !exists {
				r = &RRFResult{
					ID:       item.ID,
					Chunk:    item.Chunk,
					BestRank: item.Rank,
				}
				fused[item.ID] = r
				encounter[item.ID] = order
				order++
			}
			if item.Rank < r.BestRank {
				r.BestRank = item.Rank
			}
			if r.Embedding == nil && item.Embedding != nil {
				r.Embedding = item.Embedding
			}
			contribution := 1.0 / (k + float64(item.Rank))
			r.Score += contribution
			r.Contributions = append(r.Contributions, Contribution{
				List:  list.Name,
				Rank:  item.Rank,
				Score: item.Score,
				RRF:   contribution,
			})
		}
	}

	results := make([]RRFResult, 0, len(fused))
	for _, r := range fused {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].BestRank != results[j].BestRank {
			return results[i].BestRank < results[j].BestRank
		}
		return encounter[results[i].ID] < encounter[results[j].ID]
	})

	if logger != nil {
		logger.Info("rrf_fusion_completed",
			slog.Int("list_count", len(lists)),
			slog.Int("fused_count", len(results)),
			slog.Float64("rrf_k", k))
	}
	return results, nil
}
