package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
files:
  root: "./data"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	want := filepath.Join(dir, "data")
	if cfg.Files.Root != want {
		t.Errorf("files root = %s, want %s", cfg.Files.Root, want)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Chunking.Size != 1000 || cfg.Chunking.Overlap != 200 {
		t.Errorf("default chunking: got %+v", cfg.Chunking)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("default embedding model: got %s", cfg.Embedding.Model)
	}
	if cfg.Embedding.BatchSize != 100 {
		t.Errorf("default batch size: got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("default top_k: got %d", cfg.Retrieval.TopK)
	}
	if cfg.Providers.LLMTimeout != 120 {
		t.Errorf("default llm timeout: got %d", cfg.Providers.LLMTimeout)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		Files:  FilesConfig{Root: "/tmp/files"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Files.Root != "/tmp/files" {
		t.Errorf("loaded files root: got %s", loaded.Files.Root)
	}
}
