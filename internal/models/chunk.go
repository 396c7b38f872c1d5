// Package models defines core data structures for documents, chunks, messages, and settings.
package models

// Metadata keys attached to every chunk during compilation.
const (
	MetaSource = "source"
	MetaGroup  = "group"
	MetaPath   = "path"
	MetaType   = "type"
)

// RawSegment is a unit of extracted text plus format-specific metadata.
// Extractors return one or more segments per file; a failed extraction
// returns a single placeholder segment.
type RawSegment struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DocumentChunk is the unit of embedding and retrieval. Chunks carry the
// metadata of their source file so answers can cite where text came from.
type DocumentChunk struct {
	ID        string                 `json:"id"`
	Text      string                 `json:"text"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float32              `json:"embedding,omitempty"`
}

// ScoredChunk is a retrieval hit: a chunk with its cosine similarity score.
type ScoredChunk struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}
