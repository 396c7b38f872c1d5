package extract

import (
	"bytes"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/ledongthuc/pdf"
)

// extractPDF extracts the text layer of a PDF, one segment per document.
// Scanned PDFs without a text layer yield an empty segment, not an error.
func extractPDF(_ string, content []byte) ([]models.RawSegment, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		buf.WriteString(text)
		if i < numPages-1 {
			buf.WriteByte('\n')
		}
	}
	return []models.RawSegment{{
		Text:     buf.String(),
		Metadata: map[string]interface{}{"pages": numPages},
	}}, nil
}
