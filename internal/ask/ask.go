// Package ask orchestrates answering a question: resolve settings and
// retrieval mode, record the user message, retrieve context, call the
// configured LLM, and record the assistant's answer. Each stage can
// short-circuit; failures after the user message is recorded leave a
// system-role error message in the log so the question is never lost.
package ask

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/apperr"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/settings"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// errorMessageContent is recorded as a system message when answering fails
// after the user's question was already logged.
const errorMessageContent = "Sorry, there was an error processing your request."

// Request is one question against a conversation.
type Request struct {
	ConversationID string `json:"conversationId"`
	Question       string `json:"question"`
	// APIKey overrides the stored credential for this call only.
	APIKey string `json:"apiKey,omitempty"`
	// WebSearch skips retrieval and answers directly.
	WebSearch bool `json:"webSearch,omitempty"`
	// GroupID narrows conversation-scoped retrieval to one group.
	GroupID string `json:"groupId,omitempty"`
}

// Answer is the orchestrator's response.
type Answer struct {
	Content    string   `json:"answer"`
	UsedRAG    bool     `json:"usedRag"`
	SourceType string   `json:"sourceType"`
	Sources    []string `json:"sources,omitempty"`
}

// EmbedderFactory builds an embedder for an API key.
type EmbedderFactory func(apiKey string) (embedding.Embedder, error)

// ProviderFactory builds an LLM provider.
type ProviderFactory func(name, apiKey, model string, timeout time.Duration) (llm.Provider, error)

// Service answers questions.
type Service struct {
	cfg         *config.Config
	settings    *settings.Store
	messages    *storage.MessageLog
	debug       *storage.DebugLog
	newEmbedder EmbedderFactory
	newProvider ProviderFactory
	openIndex   func(ctx context.Context, opts vector.Options) (vector.Index, error)
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for mode decisions and recovered failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEmbedderFactory replaces the embedder constructor. Tests use this to
// avoid the network.
func WithEmbedderFactory(f EmbedderFactory) Option {
	return func(s *Service) { s.newEmbedder = f }
}

// WithProviderFactory replaces the LLM provider constructor.
func WithProviderFactory(f ProviderFactory) Option {
	return func(s *Service) { s.newProvider = f }
}

// New creates the ask service.
func New(cfg *config.Config, settingsStore *settings.Store, messages *storage.MessageLog, debug *storage.DebugLog, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		settings: settingsStore,
		messages: messages,
		debug:    debug,
		newEmbedder: func(apiKey string) (embedding.Embedder, error) {
			return embedding.NewOpenAIEmbedder(apiKey,
				embedding.WithModel(cfg.Embedding.Model),
				embedding.WithDimensions(cfg.Embedding.Dimensions),
				embedding.WithRequestTimeout(time.Duration(cfg.Providers.EmbedTimeout)*time.Second))
		},
		newProvider: llm.New,
		openIndex:   vector.Open,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask runs the staged orchestration for one question.
func (s *Service) Ask(ctx context.Context, req Request) (Answer, error) {
	// Stage 1: validate. No side effects on failure.
	if req.ConversationID == "" {
		return Answer{}, apperr.New(apperr.KindValidation, "conversation id is required")
	}
	if req.Question == "" {
		return Answer{}, apperr.New(apperr.KindValidation, "question is required")
	}

	// Stage 2: settings and credential.
	cfg, err := s.settings.Load()
	if err != nil {
		return Answer{}, err
	}
	apiKey := cfg.ResolveAPIKey(req.APIKey)
	if apiKey == "" {
		return Answer{}, apperr.Newf(apperr.KindConfiguration,
			"no API key configured for provider %s", cfg.LLMProvider)
	}
	provider, err := s.newProvider(cfg.LLMProvider, apiKey, cfg.LLMModel,
		time.Duration(s.cfg.Providers.LLMTimeout)*time.Second)
	if err != nil {
		return Answer{}, err
	}

	// Stage 3: retrieval mode.
	var idx vector.Index
	if !req.WebSearch {
		idx = s.resolveIndex(ctx, cfg, req.ConversationID, req.GroupID)
		if idx != nil {
			defer idx.Close()
		}
	}
	usedRAG := idx != nil

	// Stage 4: record the user message before anything can fail.
	userMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   req.Question,
		Timestamp: nowMillis(),
	}
	if err := s.messages.Append(req.ConversationID, userMsg); err != nil {
		return Answer{}, err
	}

	answer, err := s.answer(ctx, cfg, provider, idx, req, usedRAG)
	if err != nil {
		s.recordError(req.ConversationID)
		return Answer{}, err
	}
	return answer, nil
}

// answer runs stages 5 through 7. The user message is already recorded.
func (s *Service) answer(ctx context.Context, cfg *settings.Settings, provider llm.Provider, idx vector.Index, req Request, usedRAG bool) (Answer, error) {
	// Stage 5: retrieve context.
	var contexts []string
	var sources []string
	if usedRAG {
		hits, err := s.retrieve(ctx, cfg, idx, req.Question)
		if err != nil {
			return Answer{}, err
		}
		seen := map[string]bool{}
		for _, h := range hits {
			contexts = append(contexts, h.Chunk.Text)
			if src, ok := h.Chunk.Metadata[models.MetaSource].(string); ok && !seen[src] {
				seen[src] = true
				sources = append(sources, src)
			}
		}
	}

	// Stage 6: compose and call.
	temperature := cfg.TemperatureOrDefault()
	topP := cfg.TopPOrDefault()
	presencePenalty := cfg.PresencePenaltyOrDefault()
	frequencyPenalty := cfg.FrequencyPenaltyOrDefault()
	llmReq := llm.Request{
		System:           composeSystem(cfg.SystemPrompt),
		Prompt:           composeUser(contexts, req.Question),
		Temperature:      &temperature,
		TopP:             &topP,
		MaxTokens:        cfg.MaxTokens,
		PresencePenalty:  &presencePenalty,
		FrequencyPenalty: &frequencyPenalty,
	}
	s.trace(req.ConversationID, models.DebugRequest, map[string]interface{}{
		"provider": provider.Name(),
		"model":    cfg.LLMModel,
		"system":   llmReq.System,
		"prompt":   llmReq.Prompt,
		"usedRag":  usedRAG,
		"sources":  sources,
	})

	resp, err := provider.Complete(ctx, llmReq)
	if err != nil {
		return Answer{}, err
	}
	s.trace(req.ConversationID, models.DebugResponse, map[string]interface{}{
		"provider":     provider.Name(),
		"model":        resp.Model,
		"content":      resp.Content,
		"inputTokens":  resp.InputTokens,
		"outputTokens": resp.OutputTokens,
	})

	// Stage 7: record the assistant message.
	sourceType := models.SourceDocument
	if !usedRAG {
		sourceType = models.SourceWeb
	}
	assistantMsg := models.Message{
		ID:         uuid.NewString(),
		Role:       models.RoleAssistant,
		Content:    resp.Content,
		Timestamp:  nowMillis(),
		SourceType: sourceType,
		UsedRAG:    models.BoolPtr(usedRAG),
	}
	if err := s.messages.Append(req.ConversationID, assistantMsg); err != nil {
		return Answer{}, err
	}

	return Answer{
		Content:    resp.Content,
		UsedRAG:    usedRAG,
		SourceType: sourceType,
		Sources:    sources,
	}, nil
}

// resolveIndex picks the retrieval index: the conversation-scoped index when
// it has content, then the global index, else nil for direct-answer mode.
// Index trouble degrades the mode, it never fails the question.
func (s *Service) resolveIndex(ctx context.Context, cfg *settings.Settings, conversationID, groupID string) vector.Index {
	scopes := []vector.Options{
		{ConversationID: conversationID, GroupID: groupID},
		{},
	}
	for _, scope := range scopes {
		scope.Store = vector.StoreType(cfg.VectorStore)
		scope.MilvusURL = cfg.VectorStoreURL
		scope.Dimensions = s.cfg.Embedding.Dimensions
		scope.Timeout = time.Duration(s.cfg.Providers.VectorTimeout) * time.Second
		scope.FilesRoot = s.cfg.Files.Root
		scope.Logger = s.logger

		idx, err := s.openIndex(ctx, scope)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("vector index unavailable", zap.Error(err))
			}
			continue
		}
		n, err := idx.Count(ctx)
		if err == nil && n > 0 {
			return idx
		}
		_ = idx.Close()
	}
	if s.logger != nil {
		s.logger.Debug("no usable index, answering directly",
			zap.String("conversation", conversationID))
	}
	return nil
}

// retrieve embeds the question and queries the index.
func (s *Service) retrieve(ctx context.Context, cfg *settings.Settings, idx vector.Index, question string) ([]models.ScoredChunk, error) {
	embedKey := cfg.EmbeddingAPIKey()
	if embedKey == "" {
		return nil, apperr.New(apperr.KindConfiguration,
			"no embedding credential configured (set llm_api_key or OPENAI_API_KEY)")
	}
	embedder, err := s.newEmbedder(embedKey)
	if err != nil {
		return nil, err
	}
	defer embedder.Close()

	queryVec, err := embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return idx.TopK(ctx, queryVec, s.cfg.Retrieval.TopK)
}

// trace appends a debug entry, dropping failures: tracing must never break
// the request being traced.
func (s *Service) trace(conversationID, entryType string, content interface{}) {
	entry := models.DebugEntry{
		ID:        uuid.NewString(),
		Type:      entryType,
		Content:   content,
		Timestamp: nowMillis(),
	}
	if err := s.debug.Append(conversationID, entry); err != nil && s.logger != nil {
		s.logger.Warn("debug trace append failed", zap.Error(err))
	}
}

// recordError best-effort appends a system error message.
func (s *Service) recordError(conversationID string) {
	msg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleSystem,
		Content:   errorMessageContent,
		Timestamp: nowMillis(),
	}
	if err := s.messages.Append(conversationID, msg); err != nil && s.logger != nil {
		s.logger.Warn("error message append failed", zap.Error(err))
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
