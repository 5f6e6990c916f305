package domain

import "context"

// Embedding is a single embedding result.
type Embedding struct {
	Vector     []float32
	TokenCount int
}

// EmbeddingProvider produces embedding vectors for free text. Implemented by
// adapters (e.g. Ollama) and by the caching decorator in internal/cache.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) (Embedding, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)
	IsAvailable(ctx context.Context) bool
}

// VectorSearchOptions tune a single dense similarity search.
type VectorSearchOptions struct {
	TopK     int
	MinScore float64
	// Filter restricts results to chunks whose metadata contains every
	// key/value pair.
	Filter map[string]string
}

// VectorHit is one dense search result. Embedding is returned so downstream
// diversity reranking does not need to re-embed stored chunks.
type VectorHit struct {
	ID        string
	Score     float64
	Chunk     Chunk
	Embedding []float32
}

// VectorStore is the pluggable dense similarity-search collaborator.
type VectorStore interface {
	Search(ctx context.Context, queryVector []float32, opts VectorSearchOptions) ([]VectorHit, error)
	UpsertChunks(ctx context.Context, chunks []Chunk, embeddings [][]float32) error
}

// ChatMessage is one turn of a chat-completion exchange.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions tune a single chat-completion call.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// ChatProvider is the chat-completion collaborator. Only the optional
// query-enhancement path depends on it; the ranking core does not.
type ChatProvider interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)
}

// QueryEnhancer expands a query into additional retrieval queries
// (rewrites, sub-questions). Returned queries do not include the original.
type QueryEnhancer interface {
	Enhance(ctx context.Context, query string) ([]string, error)
}
