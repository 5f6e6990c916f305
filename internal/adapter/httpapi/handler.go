package httpapi

import (
	"errors"
	"net/http"

	"rag-contextkit/internal/domain"
	"rag-contextkit/internal/usecase"

	"github.com/labstack/echo/v4"
)

// Handler exposes the search and indexing usecases over JSON.
type Handler struct {
	searchUsecase usecase.SearchUsecase
	indexUsecase  usecase.IndexChunksUsecase
	embedder      domain.EmbeddingProvider
}

// NewHandler creates the HTTP handler.
func NewHandler(
	searchUsecase usecase.SearchUsecase,
	indexUsecase usecase.IndexChunksUsecase,
	embedder domain.EmbeddingProvider,
) *Handler {
	return &Handler{
		searchUsecase: searchUsecase,
		indexUsecase:  indexUsecase,
		embedder:      embedder,
	}
}

// Register attaches the routes.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/search", h.Search)
	e.POST("/v1/index", h.IndexChunks)
	e.GET("/v1/health", h.Health)
}

type searchRequest struct {
	Query     string            `json:"query"`
	TopK      int               `json:"topK,omitempty"`
	MinScore  float64           `json:"minScore,omitempty"`
	Ordering  string            `json:"ordering,omitempty"`
	MaxTokens int               `json:"maxTokens,omitempty"`
	UseCache  *bool             `json:"useCache,omitempty"`
	Alpha     *float64          `json:"alpha,omitempty"`
	Filter    map[string]string `json:"filter,omitempty"`
}

type sourceAttribution struct {
	Index      int     `json:"index"`
	ChunkID    string  `json:"chunkId"`
	DocumentID string  `json:"documentId,omitempty"`
	Source     string  `json:"source,omitempty"`
	Location   string  `json:"location,omitempty"`
	Score      float64 `json:"score"`
	Section    string  `json:"section,omitempty"`
}

type searchResponse struct {
	RetrievalID       string              `json:"retrievalId"`
	FromCache         bool                `json:"fromCache"`
	Content           string              `json:"content"`
	EstimatedTokens   int                 `json:"estimatedTokens"`
	ChunkCount        int                 `json:"chunkCount"`
	DeduplicatedCount int                 `json:"deduplicatedCount"`
	DroppedCount      int                 `json:"droppedCount"`
	Sources           []sourceAttribution `json:"sources"`
	TimingsMs         map[string]int64    `json:"timingsMs"`
}

// Search runs the full retrieval pipeline for one query.
// (POST /v1/search)
func (h *Handler) Search(ctx echo.Context) error {
	var req searchRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	output, err := h.searchUsecase.Execute(ctx.Request().Context(), req.Query, usecase.SearchOptions{
		TopK:      req.TopK,
		MinScore:  req.MinScore,
		Ordering:  req.Ordering,
		MaxTokens: req.MaxTokens,
		UseCache:  req.UseCache,
		Alpha:     req.Alpha,
		Filter:    req.Filter,
	})
	if err != nil {
		return ctx.JSON(statusFor(err), errorBody(err))
	}

	sources := make([]sourceAttribution, len(output.Context.Sources))
	for i, s := range output.Context.Sources {
		sources[i] = sourceAttribution{
			Index:      s.Index,
			ChunkID:    s.ChunkID,
			DocumentID: s.DocumentID,
			Source:     s.Source,
			Location:   s.Location,
			Score:      s.Score,
			Section:    s.Section,
		}
	}
	timings := make(map[string]int64, len(output.Timings))
	for stage, d := range output.Timings {
		timings[stage] = d.Milliseconds()
	}

	return ctx.JSON(http.StatusOK, searchResponse{
		RetrievalID:       output.RetrievalID,
		FromCache:         output.FromCache,
		Content:           output.Context.Content,
		EstimatedTokens:   output.Context.EstimatedTokens,
		ChunkCount:        output.Context.ChunkCount,
		DeduplicatedCount: output.Context.DeduplicatedCount,
		DroppedCount:      output.Context.DroppedCount,
		Sources:           sources,
		TimingsMs:         timings,
	})
}

type indexChunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId,omitempty"`
	Content    string `json:"content"`
	Section    string `json:"section,omitempty"`
	Source     string `json:"source,omitempty"`
	PageNumber int    `json:"pageNumber,omitempty"`
	StartIndex int    `json:"startIndex,omitempty"`
	EndIndex   int    `json:"endIndex,omitempty"`
}

type indexRequest struct {
	Chunks []indexChunk `json:"chunks"`
}

// IndexChunks adds pre-chunked text to both retrieval sources.
// (POST /v1/index)
func (h *Handler) IndexChunks(ctx echo.Context) error {
	var req indexRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	chunks := make([]domain.Chunk, len(req.Chunks))
	for i, c := range req.Chunks {
		chunks[i] = domain.Chunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Content:    c.Content,
			Metadata: domain.ChunkMetadata{
				Section:    c.Section,
				Source:     c.Source,
				PageNumber: c.PageNumber,
				StartIndex: c.StartIndex,
				EndIndex:   c.EndIndex,
			},
		}
	}

	output, err := h.indexUsecase.Execute(ctx.Request().Context(), usecase.IndexChunksInput{Chunks: chunks})
	if err != nil {
		return ctx.JSON(statusFor(err), errorBody(err))
	}
	return ctx.JSON(http.StatusOK, map[string]int{
		"indexed":    output.Indexed,
		"corpusSize": output.CorpusSize,
	})
}

// Health reports process liveness and embedder reachability.
// (GET /v1/health)
func (h *Handler) Health(ctx echo.Context) error {
	status := map[string]any{"status": "ok"}
	if h.embedder != nil {
		status["embedderAvailable"] = h.embedder.IsAvailable(ctx.Request().Context())
	}
	return ctx.JSON(http.StatusOK, status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIndexNotBuilt):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) map[string]string {
	body := map[string]string{"error": err.Error()}
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		body["stage"] = string(stageErr.Stage)
	}
	return body
}
