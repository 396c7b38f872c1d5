// Package compiler implements the ingestion pipeline: walk uploaded files,
// extract text, chunk, embed, and replace the vector index contents. A
// compile is idempotent; running it twice over an unchanged corpus yields the
// same chunk IDs and counts.
package compiler

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/apperr"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/settings"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// Result summarizes one compile run.
type Result struct {
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	Store     string `json:"vectorStoreType"`
}

// Stats describes the compiled corpus for the stats endpoint.
type Stats struct {
	TotalDocuments  int    `json:"totalDocuments"`
	TotalChunks     int    `json:"totalChunks"`
	LastCompiled    string `json:"lastCompiled,omitempty"`
	VectorStoreType string `json:"vectorStoreType"`
	DiskUsageBytes  int64  `json:"diskUsageBytes"`
}

// EmbedderFactory builds an embedder for an API key. Swapped for a mock in
// tests.
type EmbedderFactory func(apiKey string) (embedding.Embedder, error)

// Compiler turns uploaded documents into an embedded, searchable index.
type Compiler struct {
	cfg         *config.Config
	layout      storage.Layout
	files       *storage.FileStore
	settings    *settings.Store
	extractor   *extract.Extractor
	chunker     *chunker.Chunker
	newEmbedder EmbedderFactory
	logger      *zap.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets a logger for per-file progress.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// WithEmbedderFactory replaces the embedder constructor. Tests use this to
// avoid the network.
func WithEmbedderFactory(f EmbedderFactory) Option {
	return func(c *Compiler) { c.newEmbedder = f }
}

// New creates a compiler over the given configuration and stores.
func New(cfg *config.Config, files *storage.FileStore, settingsStore *settings.Store, opts ...Option) *Compiler {
	c := &Compiler{
		cfg:       cfg,
		layout:    storage.Layout{Root: cfg.Files.Root},
		files:     files,
		settings:  settingsStore,
		extractor: extract.NewExtractor(),
		chunker:   chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap),
		newEmbedder: func(apiKey string) (embedding.Embedder, error) {
			return embedding.NewOpenAIEmbedder(apiKey,
				embedding.WithModel(cfg.Embedding.Model),
				embedding.WithDimensions(cfg.Embedding.Dimensions),
				embedding.WithBatchSize(cfg.Embedding.BatchSize),
				embedding.WithRequestTimeout(time.Duration(cfg.Providers.EmbedTimeout)*time.Second))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger != nil {
		c.extractor = extract.NewExtractor(extract.WithLogger(c.logger))
	}
	return c
}

// openIndex returns the vector index for a scope per the stored settings.
func (c *Compiler) openIndex(ctx context.Context, cfg *settings.Settings, conversationID, groupID string) (vector.Index, error) {
	return vector.Open(ctx, vector.Options{
		Store:          vector.StoreType(cfg.VectorStore),
		MilvusURL:      cfg.VectorStoreURL,
		Dimensions:     c.cfg.Embedding.Dimensions,
		Timeout:        time.Duration(c.cfg.Providers.VectorTimeout) * time.Second,
		FilesRoot:      c.cfg.Files.Root,
		ConversationID: conversationID,
		GroupID:        groupID,
		Logger:         c.logger,
	})
}

// Compile builds the global index from every group's uploaded files. An
// empty corpus is a successful compile with zero counts. A missing embedding
// credential is a configuration error reported before any file is touched.
func (c *Compiler) Compile(ctx context.Context) (Result, error) {
	cfg, err := c.settings.Load()
	if err != nil {
		return Result{}, err
	}
	files, err := c.files.ListAllGroupFiles()
	if err != nil {
		return Result{}, err
	}
	return c.compile(ctx, cfg, files, "", "")
}

// EmbedConversation builds a conversation-scoped index from the files
// uploaded into that conversation.
func (c *Compiler) EmbedConversation(ctx context.Context, conversationID, groupID string) (Result, error) {
	if conversationID == "" {
		return Result{}, apperr.New(apperr.KindValidation, "conversation id is required")
	}
	cfg, err := c.settings.Load()
	if err != nil {
		return Result{}, err
	}
	files, err := c.files.ListConversationFiles(conversationID)
	if err != nil {
		return Result{}, err
	}
	if groupID != "" {
		kept := files[:0]
		for _, f := range files {
			if f.GroupID == groupID {
				kept = append(kept, f)
			}
		}
		files = kept
	}
	return c.compile(ctx, cfg, files, conversationID, groupID)
}

func (c *Compiler) compile(ctx context.Context, cfg *settings.Settings, files []models.FileInfo, conversationID, groupID string) (Result, error) {
	apiKey := cfg.EmbeddingAPIKey()
	if apiKey == "" {
		return Result{}, apperr.New(apperr.KindConfiguration,
			"no embedding credential configured (set llm_api_key or OPENAI_API_KEY)")
	}

	idx, err := c.openIndex(ctx, cfg, conversationID, groupID)
	if err != nil {
		return Result{}, err
	}
	defer idx.Close()

	result := Result{Store: storeName(cfg)}
	if len(files) == 0 {
		return result, nil
	}

	embedder, err := c.newEmbedder(apiKey)
	if err != nil {
		return Result{}, err
	}
	defer embedder.Close()

	var chunks []models.DocumentChunk
	for _, f := range files {
		data, err := c.files.Read(f.Path)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("skipping unreadable file", zap.String("path", f.Path), zap.Error(err))
			}
			continue
		}
		segments := c.extractor.Extract(f.Path, data)
		base := map[string]interface{}{
			models.MetaSource: f.Name,
			models.MetaGroup:  f.GroupID,
			models.MetaPath:   f.Path,
			models.MetaType:   f.Type,
		}
		fileChunks := c.chunker.ChunkSegments(segments, base)
		for i := range fileChunks {
			fileChunks[i].ID = fileid.ChunkID(f.Path, i)
		}
		chunks = append(chunks, fileChunks...)
		result.Documents++
		if c.logger != nil {
			c.logger.Debug("compiled file",
				zap.String("path", f.Path),
				zap.Int("chunks", len(fileChunks)))
		}
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Result{}, err
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := idx.UpsertAll(ctx, chunks); err != nil {
		return Result{}, err
	}
	result.Chunks = len(chunks)
	if c.logger != nil {
		c.logger.Info("compile finished",
			zap.Int("documents", result.Documents),
			zap.Int("chunks", result.Chunks),
			zap.String("store", result.Store))
	}
	return result, nil
}

// Truncate clears the global index and removes snapshot files. Uploaded
// source documents are left in place.
func (c *Compiler) Truncate(ctx context.Context) error {
	cfg, err := c.settings.Load()
	if err != nil {
		return err
	}
	idx, err := c.openIndex(ctx, cfg, "", "")
	if err != nil {
		return err
	}
	defer idx.Close()
	if err := idx.Clear(ctx); err != nil {
		return err
	}
	// The snapshot file may exist even when Milvus is the active store; a
	// stale fallback snapshot would silently serve old chunks.
	path := vector.SnapshotPath(c.cfg.Files.Root, "", "")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Stats reports corpus and index counts from the live filesystem.
func (c *Compiler) Stats(ctx context.Context) (Stats, error) {
	cfg, err := c.settings.Load()
	if err != nil {
		return Stats{}, err
	}
	files, err := c.files.ListAllGroupFiles()
	if err != nil {
		return Stats{}, err
	}

	idx, err := c.openIndex(ctx, cfg, "", "")
	if err != nil {
		return Stats{}, err
	}
	defer idx.Close()
	chunks, err := idx.Count(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalDocuments:  len(files),
		TotalChunks:     chunks,
		VectorStoreType: storeName(cfg),
	}
	snapshotPath := vector.SnapshotPath(c.cfg.Files.Root, "", "")
	if info, err := os.Stat(snapshotPath); err == nil {
		stats.LastCompiled = info.ModTime().UTC().Format(time.RFC3339)
	}
	usage, err := storage.DiskUsageBytes(c.layout.GroupsDir(), snapshotPath)
	if err == nil {
		stats.DiskUsageBytes = usage
	}
	return stats, nil
}

func storeName(cfg *settings.Settings) string {
	if cfg.VectorStore == "" {
		return settings.VectorStoreMemory
	}
	return cfg.VectorStore
}
