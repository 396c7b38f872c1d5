// Package settings provides the file-backed runtime settings record:
// provider, model, system prompt, credentials, and vector-store selection.
// The record is a single JSON object lazily materialized with defaults on
// first read and persisted on every write. Last writer wins; concurrent
// updates are serialized within this process only.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Vector store kinds.
const (
	VectorStoreMemory = "memory"
	VectorStoreMilvus = "milvus"
)

// Providers known to the LLM factory.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// FileName is the settings file name under the files root.
const FileName = "app-settings.json"

// Settings is the process-wide configuration record.
type Settings struct {
	LLMProvider      string   `json:"llm_provider"`
	LLMModel         string   `json:"llm_model"`
	SystemPrompt     string   `json:"system_prompt"`
	LLMAPIKey        string   `json:"llm_api_key,omitempty"`
	VectorStore      string   `json:"vector_store,omitempty"`
	VectorStoreURL   string   `json:"vector_store_url,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
}

// Defaults returns the settings written on first read.
func Defaults() *Settings {
	return &Settings{
		LLMProvider:  ProviderOpenAI,
		LLMModel:     "gpt-4o",
		SystemPrompt: "You are a helpful assistant.",
		VectorStore:  VectorStoreMemory,
	}
}

// TemperatureOrDefault returns the configured temperature; defaults to 0.7 when unset.
func (s *Settings) TemperatureOrDefault() float64 {
	if s.Temperature != nil {
		return *s.Temperature
	}
	return 0.7
}

// TopPOrDefault returns the configured top_p; defaults to 1.0 when unset.
func (s *Settings) TopPOrDefault() float64 {
	if s.TopP != nil {
		return *s.TopP
	}
	return 1.0
}

// PresencePenaltyOrDefault returns the configured presence penalty; defaults to 0.
func (s *Settings) PresencePenaltyOrDefault() float64 {
	if s.PresencePenalty != nil {
		return *s.PresencePenalty
	}
	return 0
}

// FrequencyPenaltyOrDefault returns the configured frequency penalty; defaults to 0.
func (s *Settings) FrequencyPenaltyOrDefault() float64 {
	if s.FrequencyPenalty != nil {
		return *s.FrequencyPenalty
	}
	return 0
}

// ResolveAPIKey returns the credential for the given provider, in priority
// order: explicit request override, stored settings, environment.
func (s *Settings) ResolveAPIKey(requestKey string) string {
	if requestKey != "" {
		return requestKey
	}
	if s.LLMAPIKey != "" {
		return s.LLMAPIKey
	}
	switch strings.ToLower(s.LLMProvider) {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// EmbeddingAPIKey returns the credential used for embedding calls.
// Embeddings always go through OpenAI, regardless of the chat provider.
func (s *Settings) EmbeddingAPIKey() string {
	if s.LLMProvider == ProviderOpenAI && s.LLMAPIKey != "" {
		return s.LLMAPIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// Store loads and persists the settings record at files/app-settings.json.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store rooted at filesRoot.
func NewStore(filesRoot string) *Store {
	return &Store{path: filepath.Join(filesRoot, FileName)}
}

// Load reads the settings record. A missing, empty, or unparseable file is
// replaced with defaults, which are persisted before returning.
func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.resetLocked()
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return s.resetLocked()
	}
	var cfg Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return s.resetLocked()
	}
	return &cfg, nil
}

func (s *Store) resetLocked() (*Settings, error) {
	cfg := Defaults()
	if err := s.saveLocked(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists the full settings record.
func (s *Store) Save(cfg *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(cfg)
}

func (s *Store) saveLocked(cfg *Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Merge applies the non-empty fields of patch onto the stored record and
// persists the result. Unknown keys in the stored file are preserved by
// merging at the JSON object level.
func (s *Store) Merge(patch map[string]interface{}) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	merged := map[string]interface{}{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	for k, v := range patch {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal merged settings: %w", err)
	}
	var cfg Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal merged settings: %w", err)
	}
	if err := s.saveLocked(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
