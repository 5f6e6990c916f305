package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rag-contextkit/internal/bm25"
	"rag-contextkit/internal/cache"
	"rag-contextkit/internal/domain"
	"rag-contextkit/internal/registry"
	"rag-contextkit/internal/usecase/retrieval"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SearchOptions are per-call overrides. Zero values fall back to the
// configured defaults; pointer fields distinguish "unset" from an explicit
// zero.
type SearchOptions struct {
	TopK      int
	MinScore  float64
	Ordering  string
	MaxTokens int
	UseCache  *bool
	CacheTTL  time.Duration
	Alpha     *float64
	Filter    map[string]string
}

// searchParams are the fully resolved options for one call. The struct is
// JSON-serialized into the cache key, so field order and types must stay
// stable.
type searchParams struct {
	TopK      int                        `json:"topK"`
	MinScore  float64                    `json:"minScore"`
	Ordering  string                     `json:"ordering"`
	MaxTokens int                        `json:"maxTokens"`
	Alpha     float64                    `json:"alpha"`
	Overflow  retrieval.OverflowStrategy `json:"overflow"`
	Filter    map[string]string          `json:"filter,omitempty"`
	UseCache  bool                       `json:"-"`
	CacheTTL  time.Duration              `json:"-"`
}

// SearchOutput is the pipeline result plus per-call observability.
type SearchOutput struct {
	Context     domain.AssembledContext
	RetrievalID string
	FromCache   bool
	Timings     map[string]time.Duration
}

// SearchUsecase is the single pipeline entry point:
// cache? -> enhance? -> retrieve -> fuse -> rerank? -> dedup -> order ->
// budget -> assemble.
type SearchUsecase interface {
	Execute(ctx context.Context, query string, opts SearchOptions) (*SearchOutput, error)
}

// SearchOption configures optional collaborators.
type SearchOption func(*searchUsecase)

// WithQueryEnhancer enables the enhancement stage.
func WithQueryEnhancer(enhancer domain.QueryEnhancer) SearchOption {
	return func(u *searchUsecase) { u.enhancer = enhancer }
}

// WithResultCache replaces the internally built result cache.
func WithResultCache(c cache.Provider[domain.AssembledContext]) SearchOption {
	return func(u *searchUsecase) { u.resultCache = c }
}

type searchUsecase struct {
	store       domain.VectorStore
	embedder    domain.EmbeddingProvider
	sparse      *bm25.Index
	enhancer    domain.QueryEnhancer
	resultCache cache.Provider[domain.AssembledContext]
	orderers    *registry.Registry[retrieval.OrderFunc]
	cfg         RetrievalConfig
	logger      *slog.Logger
}

// NewSearchUsecase wires the pipeline. The configuration is validated once
// here; per-call options are validated on each Execute.
func NewSearchUsecase(
	store domain.VectorStore,
	embedder domain.EmbeddingProvider,
	sparse *bm25.Index,
	cfg RetrievalConfig,
	logger *slog.Logger,
	opts ...SearchOption,
) (SearchUsecase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	orderers := registry.New[retrieval.OrderFunc]()
	if err := orderers.Register(retrieval.OrderRelevance, retrieval.OrderByRelevance); err != nil {
		return nil, err
	}
	if err := orderers.Register(retrieval.OrderSandwich, retrieval.OrderSandwiched); err != nil {
		return nil, err
	}

	u := &searchUsecase{
		store:    store,
		embedder: embedder,
		sparse:   sparse,
		orderers: orderers,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.resultCache == nil {
		if cfg.Cache.Enabled {
			u.resultCache = cache.NewLRU[domain.AssembledContext](cfg.Cache.Size, cfg.Cache.TTL)
		} else {
			u.resultCache = cache.NewNoCache[domain.AssembledContext]()
		}
	}
	return u, nil
}

func (u *searchUsecase) resolve(opts SearchOptions) (searchParams, error) {
	p := searchParams{
		TopK:      u.cfg.TopK,
		MinScore:  u.cfg.MinScore,
		Ordering:  u.cfg.Ordering.Strategy,
		MaxTokens: u.cfg.Budget.MaxTokens(),
		Alpha:     u.cfg.Hybrid.Alpha,
		Overflow:  u.cfg.Budget.Overflow,
		Filter:    opts.Filter,
		UseCache:  u.cfg.Cache.Enabled,
		CacheTTL:  u.cfg.Cache.TTL,
	}
	if opts.TopK != 0 {
		p.TopK = opts.TopK
	}
	if opts.MinScore != 0 {
		p.MinScore = opts.MinScore
	}
	if opts.Ordering != "" {
		p.Ordering = opts.Ordering
	}
	if opts.MaxTokens != 0 {
		p.MaxTokens = opts.MaxTokens
	}
	if opts.Alpha != nil {
		p.Alpha = *opts.Alpha
	}
	if opts.UseCache != nil {
		p.UseCache = *opts.UseCache
	}
	if opts.CacheTTL != 0 {
		p.CacheTTL = opts.CacheTTL
	}

	if p.TopK <= 0 {
		return p, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrConfig, p.TopK)
	}
	if p.MinScore < 0 {
		return p, fmt.Errorf("%w: minScore must be non-negative, got %f", domain.ErrConfig, p.MinScore)
	}
	if p.MaxTokens <= 0 {
		return p, fmt.Errorf("%w: maxTokens must be positive, got %d", domain.ErrConfig, p.MaxTokens)
	}
	if p.Alpha < 0 || p.Alpha > 1 {
		return p, fmt.Errorf("%w: alpha must be in [0.0, 1.0], got %f", domain.ErrConfig, p.Alpha)
	}
	if _, ok := u.orderers.Get(p.Ordering); !ok {
		return p, fmt.Errorf("%w: unrecognized ordering strategy %q", domain.ErrConfig, p.Ordering)
	}
	return p, nil
}

// cacheKey derives a stable key from the query and the canonical
// serialization of the resolved options.
func cacheKey(query string, p searchParams) string {
	serialized, _ := json.Marshal(p)
	sum := sha256.Sum256([]byte(query + "|" + string(serialized)))
	return "search:" + hex.EncodeToString(sum[:])
}

// checkpoint observes cancellation at a stage boundary.
func checkpoint(ctx context.Context, stage domain.Stage) error {
	select {
	case <-ctx.Done():
		return domain.NewStageError(stage, ctx.Err())
	default:
		return nil
	}
}

func (u *searchUsecase) Execute(ctx context.Context, query string, opts SearchOptions) (*SearchOutput, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	params, err := u.resolve(opts)
	if err != nil {
		return nil, err
	}

	retrievalID := uuid.NewString()
	timings := make(map[string]time.Duration)
	pipelineStart := time.Now()

	key := cacheKey(query, params)
	if params.UseCache {
		readStart := time.Now()
		cached, hit := u.resultCache.Get(key)
		timings["cache_read"] = time.Since(readStart)
		if hit {
			u.logger.Info("search_cache_hit",
				slog.String("retrieval_id", retrievalID))
			return &SearchOutput{
				Context:     cached,
				RetrievalID: retrievalID,
				FromCache:   true,
				Timings:     timings,
			}, nil
		}
	}

	// Stage: enhancement (optional)
	queries := []string{query}
	if u.enhancer != nil {
		if err := checkpoint(ctx, domain.StageEnhancement); err != nil {
			return nil, err
		}
		enhanceStart := time.Now()
		extra, err := u.enhancer.Enhance(ctx, query)
		timings["enhancement"] = time.Since(enhanceStart)
		if err != nil {
			return nil, domain.NewStageError(domain.StageEnhancement,
				fmt.Errorf("query enhancement failed: %w", err))
		}
		queries = append(queries, extra...)
		u.logger.Info("query_enhanced",
			slog.String("retrieval_id", retrievalID),
			slog.Int("query_count", len(queries)))
	}

	// Stage: retrieval (dense and sparse sources fan out, results join
	// before fusion)
	if err := checkpoint(ctx, domain.StageRetrieval); err != nil {
		return nil, err
	}
	retrieveStart := time.Now()
	lists, err := u.retrieveCandidates(ctx, queries, params)
	timings["retrieval"] = time.Since(retrieveStart)
	if err != nil {
		return nil, err
	}

	// Stage: fusion. A single list degenerates to a monotonic transform of
	// its own order, so fusing unconditionally is safe.
	if err := checkpoint(ctx, domain.StageFusion); err != nil {
		return nil, err
	}
	fuseStart := time.Now()
	fused, err := retrieval.FuseRRF(lists, u.cfg.Hybrid.RRFK, u.logger)
	timings["fusion"] = time.Since(fuseStart)
	if err != nil {
		return nil, domain.NewStageError(domain.StageFusion, err)
	}
	results := toRetrievalResults(fused)

	// Stage: reranking (optional)
	var reranked []domain.RerankerResult
	if u.cfg.Rerank.Enabled {
		if err := checkpoint(ctx, domain.StageReranking); err != nil {
			return nil, err
		}
		rerankStart := time.Now()
		reranked, err = u.rerank(ctx, results, params)
		timings["reranking"] = time.Since(rerankStart)
		if err != nil {
			return nil, domain.NewStageError(domain.StageReranking, err)
		}
	} else {
		reranked = passthroughRerank(results, params.TopK)
	}

	// Stage: deduplication
	if err := checkpoint(ctx, domain.StageDedup); err != nil {
		return nil, err
	}
	dedupStart := time.Now()
	deduped, err := retrieval.Deduplicate(reranked, u.cfg.Dedup, u.logger)
	timings["deduplication"] = time.Since(dedupStart)
	if err != nil {
		return nil, domain.NewStageError(domain.StageDedup, err)
	}

	// Stage: ordering
	if err := checkpoint(ctx, domain.StageOrdering); err != nil {
		return nil, err
	}
	orderStart := time.Now()
	orderFunc, ok := u.orderers.Get(params.Ordering)
	if !ok {
		return nil, domain.NewStageError(domain.StageOrdering,
			fmt.Errorf("%w: unrecognized ordering strategy %q", domain.ErrConfig, params.Ordering))
	}
	orderCfg := retrieval.OrderConfig{
		Strategy:           params.Ordering,
		SandwichStartCount: u.cfg.Ordering.SandwichStartCount,
	}
	ordered := orderFunc(deduped.Unique, orderCfg)
	timings["ordering"] = time.Since(orderStart)

	// Stage: token budget
	if err := checkpoint(ctx, domain.StageBudget); err != nil {
		return nil, err
	}
	budgetStart := time.Now()
	chunks := make([]domain.Chunk, len(ordered))
	for i, r := range ordered {
		chunks[i] = r.Chunk
	}
	budget, err := retrieval.ApplyBudget(chunks, retrieval.BudgetConfig{
		MaxTokens: params.MaxTokens,
		Overflow:  params.Overflow,
	}, u.logger)
	timings["budget"] = time.Since(budgetStart)
	if err != nil {
		return nil, domain.NewStageError(domain.StageBudget, err)
	}

	// Stage: assembly
	if err := checkpoint(ctx, domain.StageAssembly); err != nil {
		return nil, err
	}
	assembleStart := time.Now()
	assembled := retrieval.Assemble(ordered, budget, len(deduped.Duplicates))
	timings["assembly"] = time.Since(assembleStart)

	// Cache write happens only after a fully successful pipeline.
	if params.UseCache {
		writeStart := time.Now()
		u.resultCache.Set(key, assembled, params.CacheTTL)
		timings["cache_write"] = time.Since(writeStart)
	}

	u.logger.Info("search_completed",
		slog.String("retrieval_id", retrievalID),
		slog.Int("chunk_count", assembled.ChunkCount),
		slog.Int("deduplicated", assembled.DeduplicatedCount),
		slog.Int("dropped", assembled.DroppedCount),
		slog.Int("estimated_tokens", assembled.EstimatedTokens),
		slog.Int64("duration_ms", time.Since(pipelineStart).Milliseconds()))

	return &SearchOutput{
		Context:     assembled,
		RetrievalID: retrievalID,
		Timings:     timings,
	}, nil
}

// retrieveCandidates issues dense and sparse retrieval concurrently for every
// query. Alpha extremes skip the unused source entirely instead of weighting
// RRF, which has no native weight knob.
func (u *searchUsecase) retrieveCandidates(ctx context.Context, queries []string, params searchParams) ([]domain.RankedList, error) {
	useDense := params.Alpha > 0
	useSparse := params.Alpha < 1

	var denseVectors []domain.Embedding
	if useDense {
		embs, err := u.embedder.EmbedBatch(ctx, queries)
		if err != nil {
			return nil, domain.NewStageError(domain.StageRetrieval,
				fmt.Errorf("failed to embed queries: %w", err))
		}
		if len(embs) != len(queries) {
			return nil, domain.NewStageError(domain.StageRetrieval,
				fmt.Errorf("expected %d embeddings, got %d", len(queries), len(embs)))
		}
		denseVectors = embs
	}

	// Fixed slots keep list order deterministic regardless of goroutine
	// completion order.
	listsPerQuery := 0
	if useDense {
		listsPerQuery++
	}
	if useSparse {
		listsPerQuery++
	}
	slots := make([]domain.RankedList, len(queries)*listsPerQuery)

	g, gctx := errgroup.WithContext(ctx)
	slot := 0
	for qi, q := range queries {
		if useDense {
			idx, vector := slot, denseVectors[qi].Vector
			name := fmt.Sprintf("dense:%d", qi)
			g.Go(func() error {
				hits, err := u.store.Search(gctx, vector, domain.VectorSearchOptions{
					TopK:     u.cfg.SearchLimit,
					MinScore: params.MinScore,
					Filter:   params.Filter,
				})
				if err != nil {
					return fmt.Errorf("dense search failed: %w", err)
				}
				items := make([]domain.RankedItem, len(hits))
				for i, h := range hits {
					items[i] = domain.RankedItem{
						ID:        h.ID,
						Rank:      i + 1,
						Score:     h.Score,
						Chunk:     h.Chunk,
						Embedding: h.Embedding,
					}
				}
				slots[idx] = domain.RankedList{Name: name, Items: items}
				return nil
			})
			slot++
		}
		if useSparse {
			idx, q := slot, q
			name := fmt.Sprintf("sparse:%d", qi)
			g.Go(func() error {
				results, err := u.sparse.Retrieve(q, bm25.RetrieveOptions{TopK: u.cfg.SearchLimit})
				if err != nil {
					return fmt.Errorf("sparse search failed: %w", err)
				}
				items := make([]domain.RankedItem, len(results))
				for i, r := range results {
					items[i] = domain.RankedItem{
						ID:    r.ID,
						Rank:  i + 1,
						Score: r.Score,
						Chunk: r.Chunk,
					}
				}
				slots[idx] = domain.RankedList{Name: name, Items: items}
				return nil
			})
			slot++
		}
	}
	if err := g.Wait(); err != nil {
		return nil, domain.NewStageError(domain.StageRetrieval, err)
	}
	return slots, nil
}

// toRetrievalResults converts fused items, splitting per-source provenance
// back out of the contribution records.
func toRetrievalResults(fused []retrieval.RRFResult) []domain.RetrievalResult {
	results := make([]domain.RetrievalResult, len(fused))
	for i, f := range fused {
		r := domain.RetrievalResult{
			ID:        f.ID,
			Chunk:     f.Chunk,
			Score:     f.Score,
			Scores:    domain.RetrievalScores{Fused: f.Score},
			Embedding: f.Embedding,
		}
		for _, c := range f.Contributions {
			switch {
			case strings.HasPrefix(c.List, "dense"):
				if r.DenseRank == 0 || c.Rank < r.DenseRank {
					r.DenseRank = c.Rank
					r.Scores.Dense = c.Score
				}
			case strings.HasPrefix(c.List, "sparse"):
				if r.SparseRank == 0 || c.Rank < r.SparseRank {
					r.SparseRank = c.Rank
					r.Scores.Sparse = c.Score
				}
			}
		}
		results[i] = r
	}
	return results
}

// rerank runs MMR over the fused candidates, backfilling embeddings for
// sparse-only results via the embedding provider.
func (u *searchUsecase) rerank(ctx context.Context, results []domain.RetrievalResult, params searchParams) ([]domain.RerankerResult, error) {
	missingIdx := make([]int, 0)
	missingTexts := make([]string, 0)
	for i, r := range results {
		if len(r.Embedding) == 0 {
			missingIdx = append(missingIdx, i)
			missingTexts = append(missingTexts, r.Chunk.Content)
		}
	}
	if len(missingTexts) > 0 {
		if u.embedder == nil || !u.embedder.IsAvailable(ctx) {
			return nil, fmt.Errorf("%w: %d candidates lack vectors and no embedding provider is available",
				domain.ErrEmbeddingRequired, len(missingTexts))
		}
		embs, err := u.embedder.EmbedBatch(ctx, missingTexts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed rerank candidates: %w", err)
		}
		if len(embs) != len(missingTexts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(missingTexts), len(embs))
		}
		for j, i := range missingIdx {
			results[i].Embedding = embs[j].Vector
		}
	}

	// MMR treats relevance as pre-normalized to [0,1]; RRF scores are small
	// sums of reciprocals, so scale by the maximum.
	maxScore := 0.0
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	normalized := make([]domain.RetrievalResult, len(results))
	copy(normalized, results)
	if maxScore > 0 {
		for i := range normalized {
			normalized[i].Score /= maxScore
		}
	}

	mmrCfg := u.cfg.Rerank.MMR
	mmrCfg.TopK = params.TopK
	return retrieval.RerankMMR(normalized, mmrCfg, u.logger)
}

// passthroughRerank keeps fused order when the rerank stage is disabled.
func passthroughRerank(results []domain.RetrievalResult, topK int) []domain.RerankerResult {
	if topK > len(results) {
		topK = len(results)
	}
	out := make([]domain.RerankerResult, topK)
	for i := 0; i < topK; i++ {
		r := results[i]
		out[i] = domain.RerankerResult{
			ID:           r.ID,
			Chunk:        r.Chunk,
			Score:        r.Score,
			OriginalRank: i + 1,
			NewRank:      i + 1,
			Scores: domain.RerankerScores{
				OriginalScore: r.Score,
				RerankerScore: r.Score,
			},
			Embedding: r.Embedding,
		}
	}
	return out
}
