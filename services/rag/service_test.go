package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/internal/prompt"
	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/repositories/memory"
	"github.com/upb/rag-chatbot/services"
	"github.com/upb/rag-chatbot/services/providers"
)

// MockEmbedder is a mock implementation of providers.Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Name() string { return "mock-embedder" }

func (m *MockEmbedder) MaxBatch() int { return 64 }

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if v := args.Get(0); v != nil {
		return v.([][]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockProvider is a mock implementation of providers.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "openai" }

func (m *MockProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*providers.ChatResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type fixture struct {
	index    *memory.VectorIndex
	embedder *MockEmbedder
	provider *MockProvider
	service  *RAGService
}

func newFixture(t *testing.T, options Options) *fixture {
	t.Helper()

	f := &fixture{
		index:    memory.NewVectorIndex("rag_collection", zap.NewNop()),
		embedder: &MockEmbedder{},
		provider: &MockProvider{},
	}

	registry := providers.NewRegistry()
	require.NoError(t, registry.RegisterProvider(f.provider))

	svc, err := NewRAGService(f.index, f.embedder, registry, options, zap.NewNop())
	require.NoError(t, err)
	f.service = svc
	return f
}

func (f *fixture) seed(t *testing.T, n int) {
	t.Helper()
	ids := make([]string, n)
	mds := make([]models.Metadata, n)
	docs := make([]string, n)
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		ids[i] = string(rune('a' + i))
		mds[i] = models.Metadata{"title": ids[i], "chunk_index": i}
		docs[i] = "text " + ids[i]
		vecs[i] = []float32{1, float32(i)}
	}
	require.NoError(t, f.index.Upsert(context.Background(), ids, mds, docs, vecs))
}

func TestNewRAGService(t *testing.T) {
	t.Run("defaults fill zero options", func(t *testing.T) {
		f := newFixture(t, Options{})
		assert.Equal(t, DefaultOptions().TopK, f.service.options.TopK)
		assert.Equal(t, 6, f.service.options.MaxContextItems)
		assert.Equal(t, "gpt-4o-mini", f.service.options.Model)
		assert.Equal(t, 512, f.service.options.MaxTokens)
		assert.Equal(t, "openai", f.service.ProviderName())
	})

	t.Run("unknown provider", func(t *testing.T) {
		registry := providers.NewRegistry()
		_, err := NewRAGService(memory.NewVectorIndex("c", zap.NewNop()), &MockEmbedder{}, registry,
			Options{Provider: "anthropic"}, zap.NewNop())
		require.Error(t, err)
		assert.True(t, services.IsConfigurationError(err))
		assert.ErrorIs(t, err, providers.ErrProviderNotFound)
	})
}

func TestRAGService_Ask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{TopK: 8, MaxContextItems: 2, Model: "gpt-4o-mini", MaxTokens: 256})
	f.seed(t, 3)

	f.embedder.On("Embed", mock.Anything, []string{"What is a?"}).Return([][]float32{{1, 0}}, nil)
	f.provider.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
		return req.Model == "gpt-4o-mini" &&
			req.MaxTokens == 256 &&
			req.Temperature == 0 &&
			len(req.Messages) == 2 &&
			req.Messages[0].Role == providers.RoleSystem &&
			req.Messages[0].Content == prompt.SystemMessage &&
			strings.Contains(req.Messages[1].Content, "Context 1:\ntext a") &&
			strings.Contains(req.Messages[1].Content, "Context 2:\ntext b") &&
			!strings.Contains(req.Messages[1].Content, "Context 3:") &&
			strings.Contains(req.Messages[1].Content, "User Question: What is a?")
	})).Return(&providers.ChatResponse{Content: "  a is the first letter [Context 1].\n"}, nil)

	result, err := f.service.Ask(ctx, AskRequest{Question: "  What is a?  "})
	require.NoError(t, err)

	assert.Equal(t, "a is the first letter [Context 1].", result.Answer)
	require.Len(t, result.Contexts, 2)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, `text a

[metadata: {"chunk_index":0,"title":"a"}]`, result.Contexts[0])
	assert.Equal(t, "a", result.Trace[0].ID)
	assert.Equal(t, "b", result.Trace[1].ID)
	assert.LessOrEqual(t, result.Trace[0].Distance, result.Trace[1].Distance)
	assert.Equal(t, "b", result.Trace[1].Metadata["title"])

	f.embedder.AssertExpectations(t)
	f.provider.AssertExpectations(t)
}

func TestRAGService_AskTopK(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{TopK: 8, MaxContextItems: 6})
	f.seed(t, 5)

	f.embedder.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)
	f.provider.On("ChatCompletion", mock.Anything, mock.Anything).Return(&providers.ChatResponse{Content: "ok"}, nil)

	result, err := f.service.Ask(ctx, AskRequest{Question: "q", TopK: 1})
	require.NoError(t, err)
	assert.Len(t, result.Contexts, 1)

	result, err = f.service.Ask(ctx, AskRequest{Question: "q"})
	require.NoError(t, err)
	assert.Len(t, result.Contexts, 5)
	assert.Len(t, result.Trace, 5)
}

func TestRAGService_AskEmptyQuestion(t *testing.T) {
	f := newFixture(t, Options{})

	for _, q := range []string{"", "   ", "\n\t"} {
		result, err := f.service.Ask(context.Background(), AskRequest{Question: q})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, services.IsValidationError(err))
	}

	f.embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	f.provider.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
}

func TestRAGService_AskNoMatches(t *testing.T) {
	f := newFixture(t, Options{})
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)

	result, err := f.service.Ask(context.Background(), AskRequest{Question: "anything?"})
	require.NoError(t, err)

	assert.Equal(t, models.NoAnswerText, result.Answer)
	assert.NotNil(t, result.Contexts)
	assert.Empty(t, result.Contexts)
	assert.NotNil(t, result.Trace)
	assert.Empty(t, result.Trace)
	f.provider.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
}

func TestRAGService_AskErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("embedding provider failure", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.embedder.On("Embed", mock.Anything, mock.Anything).
			Return(nil, services.WrapEmbedding("embedding request failed", errors.New("status 500")))

		_, err := f.service.Ask(ctx, AskRequest{Question: "q"})
		require.Error(t, err)
		assert.True(t, services.IsEmbeddingProviderError(err))
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("plain embedder error is wrapped", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: refused"))

		_, err := f.service.Ask(ctx, AskRequest{Question: "q"})
		assert.True(t, services.IsEmbeddingProviderError(err))
	})

	t.Run("wrong embedding count", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([][]float32{}, nil)

		_, err := f.service.Ask(ctx, AskRequest{Question: "q"})
		assert.True(t, services.IsEmbeddingProviderError(err))
	})

	t.Run("index failure is internal", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.seed(t, 1)
		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1, 0, 0}}, nil)

		_, err := f.service.Ask(ctx, AskRequest{Question: "q"})
		require.Error(t, err)
		assert.True(t, services.IsInternalError(err))
	})

	t.Run("completion failure", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.seed(t, 1)
		f.embedder.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)
		f.provider.On("ChatCompletion", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

		_, err := f.service.Ask(ctx, AskRequest{Question: "q"})
		require.Error(t, err)
		assert.True(t, services.IsCompletionProviderError(err))
		assert.Contains(t, err.Error(), "overloaded")
		f.provider.AssertNumberOfCalls(t, "ChatCompletion", 1)
	})
}

func TestRAGService_AskTimeout(t *testing.T) {
	f := newFixture(t, Options{RequestTimeout: 50 * time.Millisecond})

	f.embedder.On("Embed", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
		}).
		Return([][]float32{{1, 0}}, nil)

	_, err := f.service.Ask(context.Background(), AskRequest{Question: "q"})
	require.NoError(t, err)
}
