// Package llm provides chat completion providers. OpenAI goes through the
// official Go SDK; Anthropic is a small HTTP client against /v1/messages.
package llm

import (
	"context"
	"time"

	"github.com/hyperjump/kotae/internal/apperr"
)

// Provider names accepted by the factory.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Request is one chat completion call. Pointer fields distinguish "not set"
// from an explicit zero so a user-configured temperature of 0 survives.
type Request struct {
	System           string
	Prompt           string
	Temperature      *float64
	TopP             *float64
	MaxTokens        int
	PresencePenalty  *float64
	FrequencyPenalty *float64
}

// Response is the provider's answer plus token accounting when reported.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider generates chat completions.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// New returns the provider for name. An empty name means OpenAI. A timeout
// of zero keeps each client's default.
func New(name, apiKey, model string, timeout time.Duration) (Provider, error) {
	switch name {
	case ProviderOpenAI, "":
		opts := []OpenAIOption{WithOpenAIModel(model)}
		if timeout > 0 {
			opts = append(opts, WithOpenAITimeout(timeout))
		}
		return NewOpenAI(apiKey, opts...)
	case ProviderAnthropic:
		opts := []AnthropicOption{WithAnthropicModel(model)}
		if timeout > 0 {
			opts = append(opts, WithAnthropicTimeout(timeout))
		}
		return NewAnthropic(apiKey, opts...)
	default:
		return nil, apperr.Newf(apperr.KindConfiguration, "unknown LLM provider %q", name)
	}
}
