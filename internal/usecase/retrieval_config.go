package usecase

import (
	"fmt"
	"time"

	"rag-contextkit/internal/domain"
	"rag-contextkit/internal/usecase/retrieval"
)

// HybridConfig holds settings for dense+sparse hybrid retrieval.
type HybridConfig struct {
	// Alpha balances the sources: 0.0 retrieves sparse-only, 1.0 dense-only,
	// anything between fuses both lists with unweighted RRF. Vanilla RRF has
	// no weighting knob, so the extremes skip the unused source entirely.
	Alpha float64
	// RRFK dampens the influence of rank differences in fusion.
	RRFK float64
}

// DefaultHybridConfig returns the standard fusion settings (RRF k=60).
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{Alpha: 0.5, RRFK: 60.0}
}

// Validate checks the hybrid configuration ranges.
func (c HybridConfig) Validate() error {
	if c.Alpha < 0.0 || c.Alpha > 1.0 {
		return fmt.Errorf("%w: hybrid alpha must be in [0.0, 1.0], got %f", domain.ErrConfig, c.Alpha)
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("%w: rrf k must be positive, got %f", domain.ErrConfig, c.RRFK)
	}
	return nil
}

// RerankConfig holds settings for the MMR diversity rerank stage.
type RerankConfig struct {
	Enabled bool
	MMR     retrieval.MMRConfig
}

// DefaultRerankConfig enables MMR with balanced settings.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{Enabled: true, MMR: retrieval.DefaultMMRConfig()}
}

// Validate checks the rerank configuration.
func (c RerankConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return c.MMR.Validate()
}

// BudgetDefaults derives the token ceiling when a caller does not set one:
// maxTokens = ContextWindowSize * BudgetPercentage.
type BudgetDefaults struct {
	ContextWindowSize int
	BudgetPercentage  float64
	Overflow          retrieval.OverflowStrategy
}

// DefaultBudgetDefaults returns an 8192-token window at 50% budget with the
// drop strategy.
func DefaultBudgetDefaults() BudgetDefaults {
	return BudgetDefaults{
		ContextWindowSize: 8192,
		BudgetPercentage:  0.5,
		Overflow:          retrieval.OverflowDrop,
	}
}

// Validate checks the budget defaults.
func (c BudgetDefaults) Validate() error {
	if c.ContextWindowSize <= 0 {
		return fmt.Errorf("%w: contextWindowSize must be positive, got %d", domain.ErrConfig, c.ContextWindowSize)
	}
	if c.BudgetPercentage <= 0 || c.BudgetPercentage > 1 {
		return fmt.Errorf("%w: budgetPercentage must be in (0.0, 1.0], got %f", domain.ErrConfig, c.BudgetPercentage)
	}
	switch c.Overflow {
	case retrieval.OverflowDrop, retrieval.OverflowTruncate:
	default:
		return fmt.Errorf("%w: unrecognized overflow strategy %q", domain.ErrConfig, c.Overflow)
	}
	return nil
}

// MaxTokens resolves the default ceiling.
func (c BudgetDefaults) MaxTokens() int {
	return int(float64(c.ContextWindowSize) * c.BudgetPercentage)
}

// CacheConfig holds settings for search-result caching.
type CacheConfig struct {
	Enabled bool
	Size    int
	TTL     time.Duration
}

// DefaultCacheConfig enables a small result cache.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Enabled: true, Size: 256, TTL: 10 * time.Minute}
}

// Validate checks the cache configuration.
func (c CacheConfig) Validate() error {
	if c.Enabled && c.Size <= 0 {
		return fmt.Errorf("%w: cache size must be positive, got %d", domain.ErrConfig, c.Size)
	}
	return nil
}

// RetrievalConfig holds all tunable parameters of the search pipeline.
type RetrievalConfig struct {
	// SearchLimit is the number of candidates fetched per source before
	// fusion narrows them down.
	SearchLimit int
	// TopK is the default number of chunks carried past fusion when the
	// caller does not override it.
	TopK int
	// MinScore drops dense candidates below this similarity.
	MinScore float64

	Hybrid   HybridConfig
	Rerank   RerankConfig
	Dedup    retrieval.DedupConfig
	Budget   BudgetDefaults
	Ordering retrieval.OrderConfig
	Cache    CacheConfig
}

// DefaultRetrievalConfig returns the standard pipeline settings.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		SearchLimit: 50,
		TopK:        10,
		Hybrid:      DefaultHybridConfig(),
		Rerank:      DefaultRerankConfig(),
		Dedup:       retrieval.DefaultDedupConfig(),
		Budget:      DefaultBudgetDefaults(),
		Ordering:    retrieval.DefaultOrderConfig(),
		Cache:       DefaultCacheConfig(),
	}
}

// Validate checks every tunable block.
func (c RetrievalConfig) Validate() error {
	if c.SearchLimit <= 0 {
		return fmt.Errorf("%w: searchLimit must be positive, got %d", domain.ErrConfig, c.SearchLimit)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: topK must be positive, got %d", domain.ErrConfig, c.TopK)
	}
	if c.MinScore < 0 {
		return fmt.Errorf("%w: minScore must be non-negative, got %f", domain.ErrConfig, c.MinScore)
	}
	if err := c.Hybrid.Validate(); err != nil {
		return err
	}
	if err := c.Rerank.Validate(); err != nil {
		return err
	}
	if err := c.Dedup.Validate(); err != nil {
		return err
	}
	if err := c.Budget.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return nil
}
