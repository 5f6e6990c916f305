package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-contextkit/internal/bm25"
	"rag-contextkit/internal/domain"
	"rag-contextkit/internal/usecase"
)

func TestIndexChunksUsecase_Execute(t *testing.T) {
	mockStore := new(MockVectorStore)
	mockEmbedder := new(MockEmbedder)
	sparse := emptySparseIndex(t)

	chunks := []domain.Chunk{
		{ID: "a", Content: "replication slots explained"},
		{ID: "b", Content: "write ahead log internals"},
	}
	vecA := []float32{1, 0}
	vecB := []float32{0, 1}

	mockEmbedder.On("EmbedBatch", mock.Anything, []string{chunks[0].Content, chunks[1].Content}).
		Return([]domain.Embedding{{Vector: vecA, TokenCount: 3}, {Vector: vecB, TokenCount: 4}}, nil).Once()
	mockStore.On("UpsertChunks", mock.Anything, chunks, [][]float32{vecA, vecB}).
		Return(nil).Once()

	uc := usecase.NewIndexChunksUsecase(mockStore, mockEmbedder, sparse, testLogger())

	output, err := uc.Execute(context.Background(), usecase.IndexChunksInput{Chunks: chunks})
	require.NoError(t, err)

	assert.Equal(t, 2, output.Indexed)
	assert.Equal(t, 2, output.CorpusSize)
	assert.Equal(t, 7, output.EmbedTokens)
	assert.True(t, sparse.Built())

	results, err := sparse.Retrieve("replication slots", bm25.RetrieveOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)

	mockStore.AssertExpectations(t)
	mockEmbedder.AssertExpectations(t)
}

func TestIndexChunksUsecase_Execute_ReindexReplacesChunk(t *testing.T) {
	mockStore := new(MockVectorStore)
	mockEmbedder := new(MockEmbedder)
	sparse := emptySparseIndex(t)

	mockEmbedder.On("EmbedBatch", mock.Anything, mock.Anything).
		Return([]domain.Embedding{{Vector: []float32{1}}}, nil).Times(2)
	mockStore.On("UpsertChunks", mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Times(2)

	uc := usecase.NewIndexChunksUsecase(mockStore, mockEmbedder, sparse, testLogger())

	_, err := uc.Execute(context.Background(), usecase.IndexChunksInput{Chunks: []domain.Chunk{
		{ID: "a", Content: "original wording"},
	}})
	require.NoError(t, err)

	output, err := uc.Execute(context.Background(), usecase.IndexChunksInput{Chunks: []domain.Chunk{
		{ID: "a", Content: "revised wording"},
	}})
	require.NoError(t, err)

	// Same ID indexed twice must not grow the corpus.
	assert.Equal(t, 1, output.CorpusSize)

	results, err := sparse.Retrieve("revised", bm25.RetrieveOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)

	_, err = sparse.Retrieve("original", bm25.RetrieveOptions{TopK: 5})
	require.NoError(t, err)
}

func TestIndexChunksUsecase_Execute_ValidatesInput(t *testing.T) {
	uc := usecase.NewIndexChunksUsecase(new(MockVectorStore), new(MockEmbedder), emptySparseIndex(t), testLogger())

	_, err := uc.Execute(context.Background(), usecase.IndexChunksInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.Execute(context.Background(), usecase.IndexChunksInput{Chunks: []domain.Chunk{
		{ID: "", Content: "no id"},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.Execute(context.Background(), usecase.IndexChunksInput{Chunks: []domain.Chunk{
		{ID: "a", Content: "   "},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexChunksUsecase_Execute_UpsertFailureSkipsSparseBuild(t *testing.T) {
	mockStore := new(MockVectorStore)
	mockEmbedder := new(MockEmbedder)
	sparse := emptySparseIndex(t)

	mockEmbedder.On("EmbedBatch", mock.Anything, mock.Anything).
		Return([]domain.Embedding{{Vector: []float32{1}}}, nil).Once()
	mockStore.On("UpsertChunks", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("db down")).Once()

	uc := usecase.NewIndexChunksUsecase(mockStore, mockEmbedder, sparse, testLogger())

	_, err := uc.Execute(context.Background(), usecase.IndexChunksInput{Chunks: []domain.Chunk{
		{ID: "a", Content: "content"},
	}})
	require.Error(t, err)
	assert.False(t, sparse.Built())
}

func TestIndexChunksUsecase_Execute_EmbeddingCountMismatch(t *testing.T) {
	mockStore := new(MockVectorStore)
	mockEmbedder := new(MockEmbedder)

	mockEmbedder.On("EmbedBatch", mock.Anything, mock.Anything).
		Return([]domain.Embedding{}, nil).Once()

	uc := usecase.NewIndexChunksUsecase(mockStore, mockEmbedder, emptySparseIndex(t), testLogger())

	_, err := uc.Execute(context.Background(), usecase.IndexChunksInput{Chunks: []domain.Chunk{
		{ID: "a", Content: "content"},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1 embeddings")
	mockStore.AssertNotCalled(t, "UpsertChunks", mock.Anything, mock.Anything, mock.Anything)
}
