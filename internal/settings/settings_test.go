package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_materializesDefaults(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	cfg, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLMProvider != ProviderOpenAI || cfg.LLMModel != "gpt-4o" {
		t.Errorf("defaults: %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Errorf("defaults should be persisted on first read: %v", err)
	}
}

func TestLoad_corruptFileReset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	store := NewStore(dir)
	cfg, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SystemPrompt != "You are a helpful assistant." {
		t.Errorf("corrupt file should reset to defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	temp := 0.2
	in := &Settings{
		LLMProvider: ProviderAnthropic,
		LLMModel:    "claude-3-5-sonnet-latest",
		VectorStore: VectorStoreMilvus,
		Temperature: &temp,
		MaxTokens:   1024,
	}
	if err := store.Save(in); err != nil {
		t.Fatal(err)
	}
	out, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if out.LLMProvider != ProviderAnthropic || out.VectorStore != VectorStoreMilvus {
		t.Errorf("round trip: %+v", out)
	}
	if out.TemperatureOrDefault() != 0.2 {
		t.Errorf("temperature = %f", out.TemperatureOrDefault())
	}
	if out.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d", out.MaxTokens)
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}
	out, err := store.Merge(map[string]interface{}{"llm_model": "gpt-4o-mini", "temperature": 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if out.LLMModel != "gpt-4o-mini" {
		t.Errorf("merged model = %s", out.LLMModel)
	}
	if out.LLMProvider != ProviderOpenAI {
		t.Error("merge should keep fields that were not patched")
	}
	if out.TemperatureOrDefault() != 0.1 {
		t.Errorf("merged temperature = %f", out.TemperatureOrDefault())
	}
}

func TestResolveAPIKey_priority(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	cfg := &Settings{LLMProvider: ProviderOpenAI}
	if got := cfg.ResolveAPIKey("request-key"); got != "request-key" {
		t.Errorf("request override should win, got %s", got)
	}
	cfg.LLMAPIKey = "stored-key"
	if got := cfg.ResolveAPIKey(""); got != "stored-key" {
		t.Errorf("stored key should beat env, got %s", got)
	}
	cfg.LLMAPIKey = ""
	if got := cfg.ResolveAPIKey(""); got != "env-key" {
		t.Errorf("env fallback, got %s", got)
	}
}

func TestResolveAPIKey_anthropicEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-env")
	t.Setenv("OPENAI_API_KEY", "openai-env")
	cfg := &Settings{LLMProvider: ProviderAnthropic}
	if got := cfg.ResolveAPIKey(""); got != "anthropic-env" {
		t.Errorf("anthropic env fallback, got %s", got)
	}
}

func TestDefaultsForLLMParameters(t *testing.T) {
	cfg := &Settings{}
	if cfg.TemperatureOrDefault() != 0.7 {
		t.Errorf("default temperature = %f", cfg.TemperatureOrDefault())
	}
	if cfg.TopPOrDefault() != 1.0 {
		t.Errorf("default top_p = %f", cfg.TopPOrDefault())
	}
	if cfg.PresencePenaltyOrDefault() != 0 || cfg.FrequencyPenaltyOrDefault() != 0 {
		t.Error("default penalties should be zero")
	}
	zero := 0.0
	cfg.Temperature = &zero
	if cfg.TemperatureOrDefault() != 0 {
		t.Error("explicit zero temperature should not fall back to default")
	}
}
