package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Files.Root == "" {
		cfg.Files.Root = "./files"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Providers.EmbedTimeout == 0 {
		cfg.Providers.EmbedTimeout = 60
	}
	if cfg.Providers.LLMTimeout == 0 {
		cfg.Providers.LLMTimeout = 120
	}
	if cfg.Providers.VectorTimeout == 0 {
		cfg.Providers.VectorTimeout = 15
	}
	if cfg.Watch.DebounceSeconds == 0 {
		cfg.Watch.DebounceSeconds = 5
	}
}
