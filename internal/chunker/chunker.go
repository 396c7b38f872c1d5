// Package chunker splits extracted text into overlapping chunks sized for
// embedding. Splits prefer natural boundaries (paragraph, then sentence, then
// word) and fall back to a hard cut when none exists inside the window.
package chunker

import (
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// DefaultSize is the target chunk length in characters.
const DefaultSize = 1000

// DefaultOverlap is the number of characters shared between adjacent chunks.
const DefaultOverlap = 200

// Chunker splits text into chunks of at most Size characters with Overlap
// characters repeated at the start of each subsequent chunk.
type Chunker struct {
	Size    int
	Overlap int
}

// New returns a Chunker, replacing non-positive or inconsistent values with
// the defaults. Overlap must be smaller than Size for the window to advance.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// boundaryPatterns are tried in order when looking for a split point near the
// end of a window.
var boundaryPatterns = []string{"\n\n", ". ", "! ", "? ", "\n", " "}

// Split divides text into chunks. Empty or whitespace-only text yields no
// chunks. Runes are never cut in half.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.Size {
		return []string{text}
	}

	step := c.Size - c.Overlap
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.Size
		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := c.findBoundary(runes, start, end)
		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - c.Overlap
		if next <= start {
			next = start + step
		}
		start = next
	}
	return chunks
}

// findBoundary returns the index to cut at, preferring the latest natural
// boundary in the second half of the window. Returns end when no boundary
// qualifies.
func (c *Chunker) findBoundary(runes []rune, start, end int) int {
	window := string(runes[start:end])
	half := len([]rune(window)) / 2
	for _, pat := range boundaryPatterns {
		idx := strings.LastIndex(window, pat)
		if idx < 0 {
			continue
		}
		runeIdx := len([]rune(window[:idx]))
		if runeIdx < half {
			continue
		}
		return start + runeIdx + len([]rune(pat))
	}
	return end
}

// ChunkSegments splits each segment and wraps the results as DocumentChunks,
// copying the segment metadata into every chunk and adding the chunk index.
func (c *Chunker) ChunkSegments(segments []models.RawSegment, base map[string]interface{}) []models.DocumentChunk {
	var out []models.DocumentChunk
	for _, seg := range segments {
		for i, text := range c.Split(seg.Text) {
			meta := make(map[string]interface{}, len(base)+len(seg.Metadata)+1)
			for k, v := range base {
				meta[k] = v
			}
			for k, v := range seg.Metadata {
				meta[k] = v
			}
			meta["chunkIndex"] = i
			out = append(out, models.DocumentChunk{
				Text:     text,
				Metadata: meta,
			})
		}
	}
	return out
}
