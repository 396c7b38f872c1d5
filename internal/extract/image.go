package extract

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/hyperjump/kotae/internal/models"
)

// extractImage produces a metadata-only segment for image files. Images carry
// no extractable text, but their presence in a group should still be
// retrievable by name, format and dimensions.
func extractImage(name string, content []byte) ([]models.RawSegment, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("extract image: %w", err)
	}
	text := fmt.Sprintf("Image: %s (format %s, %dx%d pixels, %d bytes)",
		name, format, cfg.Width, cfg.Height, len(content))
	return []models.RawSegment{{
		Text: text,
		Metadata: map[string]interface{}{
			"format": format,
			"width":  cfg.Width,
			"height": cfg.Height,
			"bytes":  len(content),
		},
	}}, nil
}
