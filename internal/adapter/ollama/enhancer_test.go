package ollama_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-contextkit/internal/adapter/ollama"
	"rag-contextkit/internal/domain"
)

type MockChatProvider struct {
	mock.Mock
}

func (m *MockChatProvider) Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (string, error) {
	args := m.Called(ctx, messages, opts)
	return args.String(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestQueryEnhancer_Enhance(t *testing.T) {
	mockChat := new(MockChatProvider)
	e := ollama.NewQueryEnhancer(mockChat, 3, testLogger())

	mockChat.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return("pool sizing defaults\n\nmax connections tuning\npgbouncer setup", nil).Once()

	queries, err := e.Enhance(context.Background(), "connection pooling")
	require.NoError(t, err)

	assert.Equal(t, []string{"pool sizing defaults", "max connections tuning", "pgbouncer setup"}, queries)
	mockChat.AssertExpectations(t)
}

func TestQueryEnhancer_Enhance_SkipsEchoOfOriginal(t *testing.T) {
	mockChat := new(MockChatProvider)
	e := ollama.NewQueryEnhancer(mockChat, 3, testLogger())

	mockChat.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return("connection pooling\nalternative phrasing", nil).Once()

	queries, err := e.Enhance(context.Background(), "connection pooling")
	require.NoError(t, err)
	assert.Equal(t, []string{"alternative phrasing"}, queries)
}

func TestQueryEnhancer_Enhance_CapsAtMaxQueries(t *testing.T) {
	mockChat := new(MockChatProvider)
	e := ollama.NewQueryEnhancer(mockChat, 2, testLogger())

	mockChat.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return("one\ntwo\nthree\nfour", nil).Once()

	queries, err := e.Enhance(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, queries, 2)
}

func TestQueryEnhancer_Enhance_ChatError(t *testing.T) {
	mockChat := new(MockChatProvider)
	e := ollama.NewQueryEnhancer(mockChat, 3, testLogger())

	mockChat.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("model unavailable")).Once()

	_, err := e.Enhance(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query expansion failed")
}
