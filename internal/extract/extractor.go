// Package extract converts uploaded files into plain-text segments for chunking.
// Extraction strategies are registered per extension. Failures never escape
// this boundary: a file that cannot be read yields a placeholder segment so
// a compile run always continues past bad files.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// Func extracts text segments from the raw bytes of a file.
// name is the base file name, used for placeholders and metadata.
type Func func(name string, content []byte) ([]models.RawSegment, error)

// Extractor dispatches extraction by lowercased file extension.
type Extractor struct {
	strategies map[string]Func
	fallback   Func
	logger     *zap.Logger // optional; when set, logs recovered extraction failures
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a logger for recovered extraction failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns an Extractor with the default strategies registered:
// plain text, PDF, Word (with a permissive fallback), spreadsheet, CSV, and
// image metadata. Unrecognized extensions produce a placeholder segment.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		strategies: map[string]Func{},
		fallback:   extractUnsupported,
	}
	for _, ext := range []string{".txt", ".md", ".rst"} {
		e.Register(ext, extractPlain)
	}
	e.Register(".pdf", extractPDF)
	for _, ext := range []string{".doc", ".docx", ".odt", ".rtf"} {
		e.Register(ext, extractWord)
	}
	e.Register(".xlsx", extractSpreadsheet)
	e.Register(".csv", extractCSV)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif"} {
		e.Register(ext, extractImage)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register sets the strategy for an extension (leading dot, lowercased).
func (e *Extractor) Register(ext string, fn Func) {
	e.strategies[strings.ToLower(ext)] = fn
}

// Extract converts the file at path (with the given raw bytes) into segments.
// It never returns an error: a failed strategy is logged and replaced by a
// placeholder segment naming the file.
func (e *Extractor) Extract(path string, content []byte) []models.RawSegment {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))
	fn, ok := e.strategies[ext]
	if !ok {
		fn = e.fallback
	}
	segments, err := fn(name, content)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("extraction failed, using placeholder",
				zap.String("file", name),
				zap.String("ext", ext),
				zap.Error(err))
		}
		return []models.RawSegment{placeholder(name, fmt.Sprintf("extraction failed: %v", err))}
	}
	return segments
}

// placeholder returns a single segment standing in for unextractable content.
func placeholder(name, reason string) models.RawSegment {
	return models.RawSegment{
		Text:     fmt.Sprintf("File: %s (%s)", name, reason),
		Metadata: map[string]interface{}{"placeholder": true},
	}
}

// extractUnsupported handles extensions with no registered strategy.
func extractUnsupported(name string, _ []byte) ([]models.RawSegment, error) {
	return []models.RawSegment{placeholder(name, "content not extracted - unsupported type")}, nil
}
