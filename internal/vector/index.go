// Package vector provides vector index backends with cosine similarity
// search. Two implementations exist: a JSON snapshot held in memory with a
// file on disk, and a Milvus collection for larger corpora. The factory picks
// one from the configured store type and falls back to snapshots when Milvus
// is unreachable.
package vector

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Index stores embedded chunks and answers nearest-neighbour queries.
type Index interface {
	// UpsertAll inserts chunks, replacing any existing chunk with the same ID.
	UpsertAll(ctx context.Context, chunks []models.DocumentChunk) error
	// TopK returns up to k chunks most similar to query, best first.
	TopK(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error)
	// Clear removes all chunks.
	Clear(ctx context.Context) error
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	Close() error
}
