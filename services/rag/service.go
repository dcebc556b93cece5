// Package rag answers questions from retrieved context.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/internal/prompt"
	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/repositories"
	"github.com/upb/rag-chatbot/services"
	"github.com/upb/rag-chatbot/services/providers"
)

// RAGService runs the retrieve then generate pipeline
type RAGService struct {
	index    repositories.VectorIndex
	embedder providers.Embedder
	provider providers.Provider
	options  Options
	logger   *zap.Logger
}

// NewRAGService creates a new RAG service. The completion provider named in options
// must be registered.
func NewRAGService(
	index repositories.VectorIndex,
	embedder providers.Embedder,
	registry *providers.Registry,
	options Options,
	logger *zap.Logger,
) (*RAGService, error) {
	defaults := DefaultOptions()
	if options.TopK <= 0 {
		options.TopK = defaults.TopK
	}
	if options.MaxContextItems <= 0 {
		options.MaxContextItems = defaults.MaxContextItems
	}
	if options.Provider == "" {
		options.Provider = defaults.Provider
	}
	if options.Model == "" {
		options.Model = defaults.Model
	}
	if options.MaxTokens <= 0 {
		options.MaxTokens = defaults.MaxTokens
	}

	provider, err := registry.GetProvider(options.Provider)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeConfiguration,
			fmt.Sprintf("completion provider %q is not registered", options.Provider), err).
			WithDetail("registered", registry.ListProviders())
	}

	return &RAGService{
		index:    index,
		embedder: embedder,
		provider: provider,
		options:  options,
		logger:   logger,
	}, nil
}

// ProviderName returns the completion provider in use
func (s *RAGService) ProviderName() string {
	return s.provider.Name()
}

// Ask answers a question grounded on the nearest indexed chunks
func (s *RAGService) Ask(ctx context.Context, req AskRequest) (*models.AnswerResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, services.ErrEmptyQuestion
	}

	if s.options.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.RequestTimeout)
		defer cancel()
	}

	start := time.Now()

	embeddings, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		if !services.IsEmbeddingProviderError(err) {
			err = services.WrapEmbedding("failed to embed question", err)
		}
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, services.WrapEmbedding("failed to embed question",
			fmt.Errorf("expected 1 embedding, got %d", len(embeddings)))
	}

	k := req.TopK
	if k <= 0 {
		k = s.options.TopK
	}

	matches, err := s.index.Query(ctx, embeddings[0], k)
	if err != nil {
		return nil, services.WrapInternal("failed to query vector index", err)
	}
	if len(matches) > s.options.MaxContextItems {
		matches = matches[:s.options.MaxContextItems]
	}

	if len(matches) == 0 {
		s.logger.Info("no context found for question", zap.Int("top_k", k))
		return models.NewNoAnswerResult(), nil
	}

	contexts := make([]string, len(matches))
	trace := make([]models.TraceEntry, len(matches))
	for i, m := range matches {
		contexts[i] = prompt.RenderContext(m.Text, m.Metadata)
		trace[i] = models.TraceFromMatch(m)
	}

	rsp, err := s.provider.ChatCompletion(ctx, &providers.ChatRequest{
		Model:       s.options.Model,
		Messages:    providers.SystemAndUser(prompt.SystemMessage, prompt.Build(contexts, question)),
		MaxTokens:   s.options.MaxTokens,
		Temperature: s.options.Temperature,
	})
	if err != nil {
		if !services.IsCompletionProviderError(err) {
			err = services.WrapCompletion("completion request failed", err)
		}
		return nil, err
	}

	s.logger.Info("question answered",
		zap.String("provider", s.provider.Name()),
		zap.String("model", s.options.Model),
		zap.Int("contexts", len(contexts)),
		zap.Int("total_tokens", rsp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return &models.AnswerResult{
		Answer:   strings.TrimSpace(rsp.Content),
		Contexts: contexts,
		Trace:    trace,
	}, nil
}
