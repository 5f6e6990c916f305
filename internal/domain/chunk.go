package domain

// ChunkMetadata carries the well-known optional fields attached to a chunk.
// Anything beyond these lives in Extra so callers keep compile-time checks
// on the common fields without losing extensibility.
type ChunkMetadata struct {
	StartIndex int
	EndIndex   int
	PageNumber int
	Section    string
	Source     string
	Extra      map[string]string
}

// Chunk is an immutable piece of indexed text. ID must be unique within a
// single pipeline call.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Metadata   ChunkMetadata
}

// RankedItem is one entry of a single retriever's ranked output. Rank is
// 1-indexed within the source list; Score is source-native and not comparable
// across sources.
type RankedItem struct {
	ID    string
	Rank  int
	Score float64
	Chunk Chunk
	// Embedding is carried along when the source already has the vector, so
	// diversity reranking does not re-embed stored chunks.
	Embedding []float32
}

// RankedList is one retriever's output, named for provenance tracking.
type RankedList struct {
	Name  string
	Items []RankedItem
}

// RetrievalScores breaks a fused score down by source.
type RetrievalScores struct {
	Dense  float64
	Sparse float64
	Fused  float64
}

// RetrievalResult is the output of the retrieval/fusion stage, ordered by
// Score descending. DenseRank and SparseRank are 1-indexed; zero means the
// item did not appear in that source.
type RetrievalResult struct {
	ID         string
	Chunk      Chunk
	Score      float64
	Scores     RetrievalScores
	DenseRank  int
	SparseRank int
	Embedding  []float32
}

// RerankerScores records how a reranker arrived at its combined score.
type RerankerScores struct {
	OriginalScore    float64
	RerankerScore    float64
	RelevanceScore   float64
	DiversityPenalty float64
}

// RerankerResult is a retrieval result after reranking. OriginalRank and
// NewRank are 1-indexed positions before and after the rerank; Score is the
// value downstream stages order by.
type RerankerResult struct {
	ID           string
	Chunk        Chunk
	Score        float64
	OriginalRank int
	NewRank      int
	Scores       RerankerScores
	Embedding    []float32
}

// SourceAttribution maps a position in the assembled context back to the
// chunk it came from. Index is the 1-indexed position in the final output.
type SourceAttribution struct {
	Index      int
	ChunkID    string
	DocumentID string
	Source     string
	Location   string
	Score      float64
	Section    string
}

// AssembledContext is the terminal artifact of one assembly call, owned by
// the caller.
type AssembledContext struct {
	Content           string
	EstimatedTokens   int
	ChunkCount        int
	DeduplicatedCount int
	DroppedCount      int
	Sources           []SourceAttribution
	Chunks            []Chunk
}
