package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
)

// extractPlain returns content as a single segment, validating it is valid
// UTF-8. Invalid sequences are replaced with the replacement character.
func extractPlain(_ string, content []byte) ([]models.RawSegment, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return []models.RawSegment{{Text: text}}, nil
}
