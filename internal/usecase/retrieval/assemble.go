package retrieval

import (
	"fmt"
	"strings"

	"rag-contextkit/internal/domain"
)

// Assemble renders the budgeted chunks into the final context string with
// numbered source attributions. The ordered results supply scores and
// metadata; budget supplies the surviving (possibly truncated) chunks and
// the token accounting.
func Assemble(ordered []domain.RerankerResult, budget BudgetResult, deduplicatedCount int) domain.AssembledContext {
	byID := make(map[string]domain.RerankerResult, len(ordered))
	for _, r := range ordered {
		byID[r.ID] = r
	}

	var sb strings.Builder
	sources := make([]domain.SourceAttribution, 0, len(budget.Included))
	chunks := make([]domain.Chunk, 0, len(budget.Included))

	for i, chunk := range budget.Included {
		r := byID[chunk.ID]

		header := fmt.Sprintf("[%d]", i+1)
		if chunk.Metadata.Source != "" {
			header += " " + chunk.Metadata.Source
		}
		if chunk.Metadata.Section != "" {
			header += " — " + chunk.Metadata.Section
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(header)
		sb.WriteString("\n")
		sb.WriteString(chunk.Content)

		location := ""
		if chunk.Metadata.PageNumber > 0 {
			location = fmt.Sprintf("page %d", chunk.Metadata.PageNumber)
		} else if chunk.Metadata.EndIndex > chunk.Metadata.StartIndex {
			location = fmt.Sprintf("chars %d-%d", chunk.Metadata.StartIndex, chunk.Metadata.EndIndex)
		}

		sources = append(sources, domain.SourceAttribution{
			Index:      i + 1,
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Source:     chunk.Metadata.Source,
			Location:   location,
			Score:      r.Score,
			Section:    chunk.Metadata.Section,
		})
		chunks = append(chunks, chunk)
	}

	return domain.AssembledContext{
		Content:           sb.String(),
		EstimatedTokens:   budget.UsedTokens,
		ChunkCount:        len(budget.Included),
		DeduplicatedCount: deduplicatedCount,
		DroppedCount:      len(budget.Dropped),
		Sources:           sources,
		Chunks:            chunks,
	}
}
