// Package embedding produces vector embeddings for text through the OpenAI
// embeddings API, with an LRU cache to avoid re-embedding identical chunks.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
