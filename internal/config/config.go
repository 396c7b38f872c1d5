// Package config provides configuration loading and structs for the Kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all operator configuration for the application. User-facing
// runtime settings (provider, model, keys) live in the settings store instead.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Files     FilesConfig     `yaml:"files"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Providers ProvidersConfig `yaml:"providers"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// FilesConfig holds the files root: uploaded documents, record files,
// conversation logs, and the vector-store snapshot all live under it.
type FilesConfig struct {
	Root string `yaml:"root"`
}

// ChunkingConfig holds text splitter settings (sizes in characters).
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// ProvidersConfig holds timeouts (seconds) for outbound provider calls.
type ProvidersConfig struct {
	EmbedTimeout  int `yaml:"embed_timeout"`
	LLMTimeout    int `yaml:"llm_timeout"`
	VectorTimeout int `yaml:"vector_timeout"`
}

// WatchConfig holds document-directory watch settings. When enabled, changes
// under the groups directory mark the compiled index stale; with auto_compile
// a full recompile is triggered after the debounce window.
type WatchConfig struct {
	Enabled         bool `yaml:"enabled"`
	AutoCompile     bool `yaml:"auto_compile"`
	DebounceSeconds int  `yaml:"debounce_seconds"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Files.Root = expandPath(cfg.Files.Root, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
