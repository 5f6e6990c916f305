package retrieval

import (
	"fmt"
	"log/slog"

	"rag-contextkit/internal/domain"
)

// OverflowStrategy names how the boundary chunk is handled when the budget
// runs out.
type OverflowStrategy string

const (
	// OverflowDrop excludes the chunk that does not fit and keeps evaluating
	// later, smaller chunks.
	OverflowDrop OverflowStrategy = "drop"
	// OverflowTruncate includes a prefix of the first non-fitting chunk
	// sized to exactly fill the remaining budget.
	OverflowTruncate OverflowStrategy = "truncate"
)

// charsPerToken is the fixed estimation heuristic, not a real tokenizer.
const charsPerToken = 4

// EstimateTokens approximates the token count of content as
// ceil(len/charsPerToken).
func EstimateTokens(content string) int {
	return (len(content) + charsPerToken - 1) / charsPerToken
}

// BudgetConfig holds settings for token-budget enforcement.
type BudgetConfig struct {
	MaxTokens int
	Overflow  OverflowStrategy
}

// Validate checks the budget configuration.
func (c BudgetConfig) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: maxTokens must be positive, got %d", domain.ErrConfig, c.MaxTokens)
	}
	switch c.Overflow {
	case OverflowDrop, OverflowTruncate:
		return nil
	default:
		return fmt.Errorf("%w: unrecognized overflow strategy %q", domain.ErrConfig, c.Overflow)
	}
}

// BudgetResult accounts for every input chunk: included plus dropped equals
// the input, and UsedTokens never exceeds the budget.
type BudgetResult struct {
	Included        []domain.Chunk
	Dropped         []domain.Chunk
	UsedTokens      int
	RemainingTokens int
	WasTruncated    bool
}

// ApplyBudget greedily selects chunks in their given order until MaxTokens
// is reached; ordering is the caller's responsibility. Under the drop
// strategy an input that yields no included chunk at all is surfaced as
// ErrTokenBudgetExceeded rather than an empty result.
func ApplyBudget(chunks []domain.Chunk, cfg BudgetConfig, logger *slog.Logger) (BudgetResult, error) {
	if err := cfg.Validate(); err != nil {
		return BudgetResult{}, err
	}

	res := BudgetResult{
		Included: make([]domain.Chunk, 0, len(chunks)),
	}
	used := 0
	truncated := false

	for _, chunk := range chunks {
		tokens := EstimateTokens(chunk.Content)
		if used+tokens <= cfg.MaxTokens {
			res.Included = append(res.Included, chunk)
			used += tokens
			continue
		}

		remaining := cfg.MaxTokens - used
		if cfg.Overflow == OverflowTruncate && !truncated && remaining > 0 {
			cut := chunk
			cut.Content = chunk.Content[:remaining*charsPerToken]
			res.Included = append(res.Included, cut)
			used += EstimateTokens(cut.Content)
			truncated = true
			continue
		}

		res.Dropped = append(res.Dropped, chunk)
	}

	res.UsedTokens = used
	res.RemainingTokens = cfg.MaxTokens - used
	res.WasTruncated = truncated

	if len(chunks) > 0 && len(res.Included) == 0 {
		return BudgetResult{}, fmt.Errorf("%w: smallest chunk does not fit in %d tokens",
			domain.ErrTokenBudgetExceeded, cfg.MaxTokens)
	}

	if logger != nil {
		logger.Info("token_budget_applied",
			slog.Int("included_count", len(res.Included)),
			slog.Int("dropped_count", len(res.Dropped)),
			slog.Int("used_tokens", used),
			slog.Int("max_tokens", cfg.MaxTokens),
			slog.Bool("truncated", truncated))
	}
	return res, nil
}
