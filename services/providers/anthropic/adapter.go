package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/upb/rag-chatbot/services"
	"github.com/upb/rag-chatbot/services/providers"
)

const (
	providerName     = "anthropic"
	defaultMaxTokens = 1024
)

// AnthropicAdapter implements providers.Provider for the Anthropic Messages API
type AnthropicAdapter struct {
	config providers.ProviderConfig
	client sdk.Client
}

// NewAnthropicAdapter creates a new Anthropic adapter
func NewAnthropicAdapter(config providers.ProviderConfig) *AnthropicAdapter {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(config.MaxRetries),
		option.WithHTTPClient(&http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicAdapter{
		config: config,
		client: sdk.NewClient(opts...),
	}
}

// Name returns the provider name
func (a *AnthropicAdapter) Name() string {
	return providerName
}

// ChatCompletion performs a chat completion request
func (a *AnthropicAdapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	resp, err := a.client.Messages.New(ctx, buildMessageParams(req))
	if err != nil {
		return nil, services.WrapCompletion("anthropic message request failed", describeError(err))
	}

	var b strings.Builder
	for _, content := range resp.Content {
		if text, ok := content.AsAny().(sdk.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}

	input := int(resp.Usage.InputTokens)
	output := int(resp.Usage.OutputTokens)
	return &providers.ChatResponse{
		ID:           resp.ID,
		Model:        string(resp.Model),
		Provider:     a.Name(),
		Content:      b.String(),
		FinishReason: string(resp.StopReason),
		Usage: providers.Usage{
			PromptTokens:     input,
			CompletionTokens: output,
			TotalTokens:      input + output,
		},
		Latency: time.Since(startTime),
	}, nil
}

// buildMessageParams lifts system messages into the System field; everything else is a turn
func buildMessageParams(req *providers.ChatRequest) sdk.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(req.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: sdk.Float(req.Temperature),
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case providers.RoleSystem:
			params.System = append(params.System, sdk.TextBlockParam{Text: msg.Content})
		case providers.RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))
		}
	}

	return params
}

func describeError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic status %d: %w", apiErr.StatusCode, err)
	}
	return err
}
