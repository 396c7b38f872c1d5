package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/apperr"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024

	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = "claude-3-5-sonnet-latest"
)

// Anthropic generates chat completions against the Anthropic /v1/messages
// API. No official Go SDK is used; the wire format is small enough for a
// plain HTTP client.
type Anthropic struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// AnthropicOption configures an Anthropic provider.
type AnthropicOption func(*Anthropic)

// WithAnthropicModel overrides the chat model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(p *Anthropic) {
		if model != "" {
			p.model = model
		}
	}
}

// WithAnthropicBaseURL points the client at a different endpoint. Used by tests.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(p *Anthropic) { p.baseURL = url }
}

// WithAnthropicTimeout sets the request timeout.
func WithAnthropicTimeout(d time.Duration) AnthropicOption {
	return func(p *Anthropic) { p.client.Timeout = d }
}

// NewAnthropic returns an Anthropic chat provider. The API key is required.
func NewAnthropic(apiKey string, opts ...AnthropicOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.KindConfiguration, "Anthropic API key is not configured")
	}
	p := &Anthropic{
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: anthropicBaseURL,
		apiKey:  apiKey,
		model:   DefaultAnthropicModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Anthropic) Name() string { return ProviderAnthropic }

// messagesRequest is the /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the /v1/messages response format.
type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one chat completion request. Anthropic has no presence or
// frequency penalty parameters, so those request fields are ignored.
func (p *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}
	body := messagesRequest{
		Model:       p.model,
		Messages:    []messagesMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, apperr.Wrap(apperr.KindProvider, "Anthropic request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, apperr.Wrap(apperr.KindProvider, "read Anthropic response", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Response{}, apperr.Newf(apperr.KindConfiguration,
			"Anthropic rejected the API key (status %d)", resp.StatusCode)
	}

	var msg messagesResponse
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Response{}, apperr.Wrap(apperr.KindProvider,
			fmt.Sprintf("decode Anthropic response (status %d)", resp.StatusCode), err)
	}
	if msg.Error != nil {
		return Response{}, apperr.Newf(apperr.KindProvider, "Anthropic error: %s", msg.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, apperr.Newf(apperr.KindProvider,
			"Anthropic error (status %d): %s", resp.StatusCode, string(raw))
	}
	if len(msg.Content) == 0 {
		return Response{}, apperr.New(apperr.KindProvider, "Anthropic returned no content")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return Response{
		Content:      b.String(),
		Model:        msg.Model,
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}
