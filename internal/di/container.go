package di

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rag-contextkit/internal/adapter/httpapi"
	"rag-contextkit/internal/adapter/ollama"
	pgvstore "rag-contextkit/internal/adapter/pgvector"
	"rag-contextkit/internal/bm25"
	"rag-contextkit/internal/cache"
	"rag-contextkit/internal/domain"
	"rag-contextkit/internal/infra/config"
	"rag-contextkit/internal/infra/httpclient"
	"rag-contextkit/internal/usecase"
	"rag-contextkit/internal/usecase/retrieval"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	SearchUsecase usecase.SearchUsecase
	IndexUsecase  usecase.IndexChunksUsecase
	Handler       *httpapi.Handler
	Embedder      domain.EmbeddingProvider
}

// NewApplicationComponents wires all dependencies from config and database
// pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	// Shared HTTP client with connection pooling for the model server
	ollamaHTTP := httpclient.NewPooledClient(time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second)

	// Embedding provider wrapped with the LRU memoization decorator
	var embedder domain.EmbeddingProvider = ollama.NewEmbedder(cfg.Ollama.URL, cfg.Ollama.EmbeddingModel, ollamaHTTP)
	if cfg.Cache.Enabled {
		embeddingCache := cache.NewLRU[domain.Embedding](cfg.Cache.Size, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
		embedder = cache.NewCachedEmbeddingProvider(embedder, embeddingCache, 0, log)
	}

	// Retrieval sources
	store := pgvstore.NewStore(pool)
	sparseIndex, err := bm25.NewIndex(bm25.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create sparse index: %w", err)
	}

	retrievalConfig := usecase.RetrievalConfig{
		SearchLimit: cfg.Retrieval.SearchLimit,
		TopK:        cfg.Retrieval.TopK,
		MinScore:    cfg.Retrieval.MinScore,
		Hybrid: usecase.HybridConfig{
			Alpha: cfg.Retrieval.Alpha,
			RRFK:  cfg.Retrieval.RRFK,
		},
		Rerank: usecase.RerankConfig{
			Enabled: cfg.Retrieval.RerankEnabled,
			MMR: retrieval.MMRConfig{
				Lambda: cfg.Retrieval.MMRLambda,
				TopK:   cfg.Retrieval.TopK,
			},
		},
		Dedup: retrieval.DedupConfig{
			SimilarityThreshold: cfg.Retrieval.DedupThreshold,
			KeepHighestScore:    true,
		},
		Budget: usecase.BudgetDefaults{
			ContextWindowSize: cfg.Retrieval.ContextWindowSize,
			BudgetPercentage:  cfg.Retrieval.BudgetPercentage,
			Overflow:          retrieval.OverflowStrategy(cfg.Retrieval.OverflowStrategy),
		},
		Ordering: retrieval.OrderConfig{
			Strategy:           cfg.Retrieval.OrderingStrategy,
			SandwichStartCount: cfg.Retrieval.SandwichStartCount,
		},
		Cache: usecase.CacheConfig{
			Enabled: cfg.Cache.Enabled,
			Size:    cfg.Cache.Size,
			TTL:     time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		},
	}

	// Optional components
	var opts []usecase.SearchOption
	if cfg.Retrieval.EnhancementEnabled {
		generator := ollama.NewGenerator(cfg.Ollama.URL, cfg.Ollama.ChatModel, ollamaHTTP, log)
		enhancer := ollama.NewQueryEnhancer(generator, cfg.Retrieval.EnhancementQueries, log)
		opts = append(opts, usecase.WithQueryEnhancer(enhancer))
		log.Info("query_enhancement_enabled",
			slog.String("model", cfg.Ollama.ChatModel),
			slog.Int("max_queries", cfg.Retrieval.EnhancementQueries))
	}

	searchUsecase, err := usecase.NewSearchUsecase(store, embedder, sparseIndex, retrievalConfig, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search usecase: %w", err)
	}

	indexUsecase := usecase.NewIndexChunksUsecase(store, embedder, sparseIndex, log)
	handler := httpapi.NewHandler(searchUsecase, indexUsecase, embedder)

	return &ApplicationComponents{
		SearchUsecase: searchUsecase,
		IndexUsecase:  indexUsecase,
		Handler:       handler,
		Embedder:      embedder,
	}, nil
}
