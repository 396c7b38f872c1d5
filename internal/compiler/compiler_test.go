package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/apperr"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/settings"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

func newTestCompiler(t *testing.T) (*Compiler, storage.Layout) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Files.Root = root
	cfg.Embedding.Dimensions = 8

	layout := storage.Layout{Root: root}
	store := settings.NewStore(root)
	if err := store.Save(&settings.Settings{
		LLMProvider: settings.ProviderOpenAI,
		LLMAPIKey:   "test-key",
	}); err != nil {
		t.Fatal(err)
	}
	files := storage.NewFileStore(layout, nil)
	c := New(cfg, files, store, WithEmbedderFactory(func(string) (embedding.Embedder, error) {
		return embedding.NewMockEmbedder(8), nil
	}))
	return c, layout
}

func writeGroupFile(t *testing.T, layout storage.Layout, group, name, content string) {
	t.Helper()
	dir := layout.GroupDir(group)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCompile(t *testing.T) {
	c, layout := newTestCompiler(t)
	writeGroupFile(t, layout, "g1", "a.txt", "alpha document text")
	writeGroupFile(t, layout, "g1", "b.txt", "beta document text")

	res, err := c.Compile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Documents != 2 {
		t.Errorf("expected 2 documents, got %d", res.Documents)
	}
	if res.Chunks != 2 {
		t.Errorf("expected 2 chunks, got %d", res.Chunks)
	}
	if _, err := os.Stat(vector.SnapshotPath(layout.Root, "", "")); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
}

func TestCompile_idempotentCounts(t *testing.T) {
	c, layout := newTestCompiler(t)
	writeGroupFile(t, layout, "g1", "a.txt", "some text to embed")

	ctx := context.Background()
	first, err := c.Compile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Compile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Chunks != second.Chunks {
		t.Errorf("recompile changed chunk count: %d then %d", first.Chunks, second.Chunks)
	}

	idx, err := vector.OpenSnapshot(vector.SnapshotPath(layout.Root, "", ""))
	if err != nil {
		t.Fatal(err)
	}
	n, err := idx.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != second.Chunks {
		t.Errorf("index holds %d chunks after recompile, expected %d", n, second.Chunks)
	}
}

func TestCompile_removedFileDropsChunks(t *testing.T) {
	c, layout := newTestCompiler(t)
	writeGroupFile(t, layout, "g1", "keep.txt", "text that stays in the corpus")
	writeGroupFile(t, layout, "g1", "gone.txt", "text that will be deleted")

	ctx := context.Background()
	if _, err := c.Compile(ctx); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(layout.GroupDir("g1"), "gone.txt")); err != nil {
		t.Fatal(err)
	}
	res, err := c.Compile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Documents != 1 || res.Chunks != 1 {
		t.Fatalf("expected 1 document and 1 chunk after removal, got %+v", res)
	}

	idx, err := vector.OpenSnapshot(vector.SnapshotPath(layout.Root, "", ""))
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.Count(ctx); n != res.Chunks {
		t.Errorf("index holds %d chunks, compile reported %d", n, res.Chunks)
	}
	emb := embedding.NewMockEmbedder(8)
	q, err := emb.Embed(ctx, "text that will be deleted")
	if err != nil {
		t.Fatal(err)
	}
	hits, err := idx.TopK(ctx, q, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.Chunk.Text == "text that will be deleted" {
			t.Fatal("deleted file's chunk still retrievable after recompile")
		}
	}
}

func TestCompile_emptyCorpus(t *testing.T) {
	c, _ := newTestCompiler(t)
	res, err := c.Compile(context.Background())
	if err != nil {
		t.Fatalf("empty corpus should compile successfully, got %v", err)
	}
	if res.Documents != 0 || res.Chunks != 0 {
		t.Errorf("expected zero counts, got %+v", res)
	}
}

func TestCompile_missingCredential(t *testing.T) {
	c, _ := newTestCompiler(t)
	if err := c.settings.Save(&settings.Settings{LLMProvider: settings.ProviderOpenAI}); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "")

	_, err := c.Compile(context.Background())
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestCompile_placeholderForBrokenFile(t *testing.T) {
	c, layout := newTestCompiler(t)
	writeGroupFile(t, layout, "g1", "broken.pdf", "not really a pdf")

	res, err := c.Compile(context.Background())
	if err != nil {
		t.Fatalf("broken file should not abort the run: %v", err)
	}
	if res.Documents != 1 || res.Chunks != 1 {
		t.Errorf("expected placeholder chunk, got %+v", res)
	}
}

func TestEmbedConversation(t *testing.T) {
	c, layout := newTestCompiler(t)
	dir := layout.ConversationGroupDir("conv1", "g1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("conversation notes"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := c.EmbedConversation(context.Background(), "conv1", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Documents != 1 {
		t.Errorf("expected 1 document, got %+v", res)
	}
	if _, err := os.Stat(vector.SnapshotPath(layout.Root, "conv1", "")); err != nil {
		t.Errorf("conversation snapshot not written: %v", err)
	}

	if _, err := c.EmbedConversation(context.Background(), "", ""); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for missing conversation id, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	c, layout := newTestCompiler(t)
	writeGroupFile(t, layout, "g1", "a.txt", "text")
	ctx := context.Background()
	if _, err := c.Compile(ctx); err != nil {
		t.Fatal(err)
	}

	if err := c.Truncate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(vector.SnapshotPath(layout.Root, "", "")); !os.IsNotExist(err) {
		t.Error("snapshot file should be removed")
	}
	// Source documents survive.
	if _, err := os.Stat(filepath.Join(layout.GroupDir("g1"), "a.txt")); err != nil {
		t.Errorf("source document removed by truncate: %v", err)
	}
}

func TestStats(t *testing.T) {
	c, layout := newTestCompiler(t)
	writeGroupFile(t, layout, "g1", "a.txt", "text")
	ctx := context.Background()
	if _, err := c.Compile(ctx); err != nil {
		t.Fatal(err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 1 || stats.TotalChunks != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.LastCompiled == "" {
		t.Error("expected lastCompiled from snapshot mtime")
	}
	if stats.VectorStoreType != settings.VectorStoreMemory {
		t.Errorf("unexpected store type: %s", stats.VectorStoreType)
	}
}
