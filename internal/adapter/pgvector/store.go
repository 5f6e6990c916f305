// Package pgvector provides a PostgreSQL/pgvector-backed implementation of
// the dense similarity-search collaborator.
package pgvector

import (
	"context"
	"fmt"
	"sort"

	"rag-contextkit/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
)

// filterColumns maps the allowed metadata filter keys to table columns.
var filterColumns = map[string]string{
	"documentId": "document_id",
	"section":    "section",
	"source":     "source",
}

// Store implements domain.VectorStore over a rag_chunks table with a
// pgvector embedding column. Cosine similarity is 1 - cosine distance.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a pgvector-backed vector store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UpsertChunks writes chunks and their embeddings, replacing rows that share
// an id.
func (s *Store) UpsertChunks(ctx context.Context, chunks []domain.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(`
			INSERT INTO rag_chunks (id, document_id, content, section, source, page_number, start_index, end_index, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				content = EXCLUDED.content,
				section = EXCLUDED.section,
				source = EXCLUDED.source,
				page_number = EXCLUDED.page_number,
				start_index = EXCLUDED.start_index,
				end_index = EXCLUDED.end_index,
				embedding = EXCLUDED.embedding`,
			c.ID, c.DocumentID, c.Content,
			c.Metadata.Section, c.Metadata.Source, c.Metadata.PageNumber,
			c.Metadata.StartIndex, c.Metadata.EndIndex,
			pgv.NewVector(embeddings[i]),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert chunk: %w", err)
		}
	}
	return nil
}

// Search returns the topK nearest chunks by cosine similarity, optionally
// restricted by metadata filters and a similarity floor.
func (s *Store) Search(ctx context.Context, queryVector []float32, opts domain.VectorSearchOptions) ([]domain.VectorHit, error) {
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrConfig, opts.TopK)
	}

	query := `
		SELECT id, document_id, content, section, source, page_number, start_index, end_index, embedding,
		       1 - (embedding <=> $1) AS score
		FROM rag_chunks`
	args := []interface{}{pgv.NewVector(queryVector)}

	filterKeys := make([]string, 0, len(opts.Filter))
	for key := range opts.Filter {
		filterKeys = append(filterKeys, key)
	}
	sort.Strings(filterKeys)
	for _, key := range filterKeys {
		column, ok := filterColumns[key]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported filter key %q", domain.ErrInvalidInput, key)
		}
		args = append(args, opts.Filter[key])
		clause := fmt.Sprintf("%s = $%d", column, len(args))
		if len(args) == 2 {
			query += "\n\t\tWHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	args = append(args, opts.TopK)
	query += fmt.Sprintf("\n\t\tORDER BY embedding <=> $1\n\t\tLIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var hits []domain.VectorHit
	for rows.Next() {
		var (
			chunk     domain.Chunk
			embedding pgv.Vector
			score     float64
		)
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.Content,
			&chunk.Metadata.Section, &chunk.Metadata.Source, &chunk.Metadata.PageNumber,
			&chunk.Metadata.StartIndex, &chunk.Metadata.EndIndex,
			&embedding, &score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if score < opts.MinScore {
			continue
		}
		hits = append(hits, domain.VectorHit{
			ID:        chunk.ID,
			Score:     score,
			Chunk:     chunk,
			Embedding: embedding.Slice(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return hits, nil
}
