package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/upb/rag-chatbot/services"
	"github.com/upb/rag-chatbot/services/providers"
)

const (
	providerName          = "openai"
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultMaxBatch       = 64
)

// Options configures the embedding side of the adapter
type Options struct {
	// EmbeddingModel used by Embed
	EmbeddingModel string

	// EmbeddingDimensions, when positive, is enforced on every returned vector
	EmbeddingDimensions int

	// MaxBatch is the largest number of texts accepted per Embed call
	MaxBatch int
}

// OpenAIAdapter implements providers.Provider and providers.Embedder on top of go-openai
type OpenAIAdapter struct {
	config  providers.ProviderConfig
	options Options
	client  *goopenai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config providers.ProviderConfig, options Options) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if options.EmbeddingModel == "" {
		options.EmbeddingModel = defaultEmbeddingModel
	}
	if options.MaxBatch <= 0 {
		options.MaxBatch = defaultMaxBatch
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{
		Timeout:   config.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return &OpenAIAdapter{
		config:  config,
		options: options,
		client:  goopenai.NewClientWithConfig(clientConfig),
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return providerName
}

// MaxBatch returns the largest number of texts a single Embed call accepts
func (a *OpenAIAdapter) MaxBatch() int {
	return a.options.MaxBatch
}

// Embed returns one vector per input text, in input order
func (a *OpenAIAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > a.options.MaxBatch {
		return nil, services.WrapEmbedding(
			fmt.Sprintf("batch of %d texts exceeds the maximum of %d", len(texts), a.options.MaxBatch), nil)
	}

	resp, err := a.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(a.options.EmbeddingModel),
	})
	if err != nil {
		return nil, services.WrapEmbedding("failed to create embeddings", describeError(err))
	}

	if len(resp.Data) != len(texts) {
		return nil, services.WrapEmbedding(
			fmt.Sprintf("provider returned %d embeddings for %d texts", len(resp.Data), len(texts)), nil)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	dim := a.options.EmbeddingDimensions
	for i, d := range data {
		if d.Index != i {
			return nil, services.WrapEmbedding(fmt.Sprintf("unexpected embedding index %d at position %d", d.Index, i), nil)
		}
		if len(d.Embedding) == 0 {
			return nil, services.WrapEmbedding(fmt.Sprintf("empty embedding at index %d", i), nil)
		}
		if dim == 0 {
			dim = len(d.Embedding)
		}
		if len(d.Embedding) != dim {
			return nil, services.WrapEmbedding(
				fmt.Sprintf("embedding %d has dimension %d, expected %d", i, len(d.Embedding), dim), nil)
		}
		vectors[i] = d.Embedding
	}

	return vectors, nil
}

// ChatCompletion performs a chat completion request
func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, a.buildOpenAIRequest(req))
	if err != nil {
		return nil, services.WrapCompletion("chat completion failed", describeError(err))
	}
	if len(resp.Choices) == 0 {
		return nil, services.WrapCompletion("provider returned no choices", nil)
	}

	choice := resp.Choices[0]
	return &providers.ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Provider:     a.Name(),
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency: time.Since(startTime),
	}, nil
}

// buildOpenAIRequest converts unified request to OpenAI format
func (a *OpenAIAdapter) buildOpenAIRequest(req *providers.ChatRequest) goopenai.ChatCompletionRequest {
	openaiReq := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    make([]goopenai.ChatCompletionMessage, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}

	// go-openai omits a zero temperature, which the API reads as 1.0
	if openaiReq.Temperature == 0 {
		openaiReq.Temperature = math.SmallestNonzeroFloat32
	}

	for i, msg := range req.Messages {
		openaiReq.Messages[i] = goopenai.ChatCompletionMessage{
			Role:    openAIRole(msg.Role),
			Content: msg.Content,
		}
	}

	return openaiReq
}

func openAIRole(role string) string {
	switch role {
	case providers.RoleSystem:
		return goopenai.ChatMessageRoleSystem
	case providers.RoleAssistant:
		return goopenai.ChatMessageRoleAssistant
	default:
		return goopenai.ChatMessageRoleUser
	}
}

// describeError keeps the provider's own message and status code in the chain
func describeError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai status %d (%s): %w", apiErr.HTTPStatusCode, apiErr.Type, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai status %d: %w", reqErr.HTTPStatusCode, err)
	}
	return err
}
