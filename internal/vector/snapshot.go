package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

// SnapshotFileName is the default file name for a snapshot index.
const SnapshotFileName = "vector-store.json"

// snapshotFile is the on-disk shape of a snapshot index.
type snapshotFile struct {
	Chunks []models.DocumentChunk `json:"chunks"`
}

// SnapshotIndex is a brute-force cosine index persisted as a single JSON
// file. Chunks keep their insertion order, which makes equal-score ties
// deterministic. Every mutation rewrites the file atomically.
type SnapshotIndex struct {
	path   string
	chunks []models.DocumentChunk
	mu     sync.RWMutex
}

// OpenSnapshot loads the snapshot file at path, creating an empty index when
// the file does not exist yet.
func OpenSnapshot(path string) (*SnapshotIndex, error) {
	s := &SnapshotIndex{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("open snapshot: parse %s: %w", filepath.Base(path), err)
	}
	s.chunks = file.Chunks
	return s, nil
}

// Path returns the snapshot file path.
func (s *SnapshotIndex) Path() string {
	return s.path
}

// UpsertAll replaces the entire collection with chunks and persists the
// result. A compile run rebuilds the full corpus, so chunks from files that
// no longer exist must not survive the write.
func (s *SnapshotIndex) UpsertAll(ctx context.Context, chunks []models.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append([]models.DocumentChunk(nil), chunks...)
	return s.save()
}

// TopK returns up to k chunks by cosine similarity, best first. Ties keep
// insertion order.
func (s *SnapshotIndex) TopK(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.chunks) == 0 {
		return nil, nil
	}
	scored := make([]models.ScoredChunk, len(s.chunks))
	for i, c := range s.chunks {
		scored[i] = models.ScoredChunk{Chunk: c, Score: Cosine(query, c.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	out := make([]models.ScoredChunk, k)
	copy(out, scored[:k])
	return out, nil
}

// Clear removes all chunks and rewrites the file as an empty store.
func (s *SnapshotIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	return s.save()
}

// Count returns the number of stored chunks.
func (s *SnapshotIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Close is a no-op; the snapshot is written on every mutation.
func (s *SnapshotIndex) Close() error {
	return nil
}

// save writes the snapshot atomically: marshal to a temp file in the same
// directory, then rename over the target. Caller holds the write lock.
func (s *SnapshotIndex) save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	chunks := s.chunks
	if chunks == nil {
		chunks = []models.DocumentChunk{}
	}
	data, err := json.MarshalIndent(snapshotFile{Chunks: chunks}, "", "  ")
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".vector-store-*.tmp")
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
