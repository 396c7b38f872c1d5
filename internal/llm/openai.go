package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/hyperjump/kotae/internal/apperr"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAI generates chat completions through the OpenAI API.
type OpenAI struct {
	client openai.Client
	model  string
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	model   string
	baseURL string
	timeout time.Duration
}

// WithOpenAIModel overrides the chat model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithOpenAIBaseURL points the client at a different endpoint. Used by tests.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithOpenAITimeout sets the per-request timeout.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(c *openAIConfig) { c.timeout = d }
}

// NewOpenAI returns an OpenAI chat provider. The API key is required.
func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.KindConfiguration, "OpenAI API key is not configured")
	}
	cfg := openAIConfig{model: DefaultOpenAIModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.timeout))
	}
	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		model:  cfg.model,
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAI) Name() string { return ProviderOpenAI }

// Complete sends one chat completion request.
func (p *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*req.PresencePenalty)
	}
	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*req.FrequencyPenalty)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
				return Response{}, apperr.Wrap(apperr.KindConfiguration,
					fmt.Sprintf("OpenAI rejected the API key (status %d)", apiErr.StatusCode), err)
			}
			return Response{}, apperr.Wrap(apperr.KindProvider,
				fmt.Sprintf("OpenAI chat error (status %d)", apiErr.StatusCode), err)
		}
		return Response{}, apperr.Wrap(apperr.KindProvider, "OpenAI chat request failed", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, apperr.New(apperr.KindProvider, "OpenAI returned no choices")
	}
	return Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}
