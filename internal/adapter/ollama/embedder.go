package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"rag-contextkit/internal/domain"
)

// Embedder implements domain.EmbeddingProvider against an Ollama-compatible
// /api/embed endpoint.
type Embedder struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

// NewEmbedder creates an Ollama embedding provider using a shared pooled
// HTTP client.
func NewEmbedder(baseURL, model string, client *http.Client) *Embedder {
	return &Embedder{BaseURL: baseURL, Model: model, Client: client}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

func (e *Embedder) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	embs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return domain.Embedding{}, err
	}
	return embs[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	start := time.Now()

	jsonData, err := json.Marshal(embedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embed", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embed request returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Embeddings))
	}

	out := make([]domain.Embedding, len(parsed.Embeddings))
	for i, v := range parsed.Embeddings {
		out[i] = domain.Embedding{Vector: v}
	}
	if len(out) > 0 {
		// Ollama reports prompt tokens for the whole batch; attribute them
		// to the first entry rather than inventing a split.
		out[0].TokenCount = parsed.PromptEvalCount
	}

	slog.Debug("ollama_embed_completed",
		slog.Int("text_count", len(texts)),
		slog.String("model", e.Model),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return out, nil
}

// IsAvailable probes the server's tag listing.
func (e *Embedder) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/api/tags", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
