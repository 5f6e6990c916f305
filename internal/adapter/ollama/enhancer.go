package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rag-contextkit/internal/domain"
)

const enhancePrompt = `You are an expert search query generator.
Generate %d diverse search queries to find information related to the user's input.
Focus on different aspects like main keywords, synonyms, and specific sub-questions.
Output ONLY the generated queries, one per line. Do not add numbering or bullets or explanations.

User Input: %s`

// QueryEnhancer expands a query into additional retrieval queries through a
// chat provider.
type QueryEnhancer struct {
	chat       domain.ChatProvider
	maxQueries int
	logger     *slog.Logger
}

// NewQueryEnhancer creates an LLM-backed query enhancer producing up to
// maxQueries rewrites.
func NewQueryEnhancer(chat domain.ChatProvider, maxQueries int, logger *slog.Logger) *QueryEnhancer {
	if maxQueries <= 0 {
		maxQueries = 3
	}
	return &QueryEnhancer{chat: chat, maxQueries: maxQueries, logger: logger}
}

func (e *QueryEnhancer) Enhance(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf(enhancePrompt, e.maxQueries, query)
	resp, err := e.chat.Chat(ctx, []domain.ChatMessage{
		{Role: "user", Content: prompt},
	}, domain.ChatOptions{Temperature: 0.7, MaxTokens: 200})
	if err != nil {
		return nil, fmt.Errorf("query expansion failed: %w", err)
	}

	var expansions []string
	for _, line := range strings.Split(resp, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == query {
			continue
		}
		expansions = append(expansions, trimmed)
		if len(expansions) == e.maxQueries {
			break
		}
	}

	e.logger.Info("query_expansion_completed",
		slog.String("original", query),
		slog.Int("count", len(expansions)))
	return expansions, nil
}
