package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// extractCSV extracts text from CSV bytes. Like spreadsheets, rows are
// rendered as one JSON object per line keyed by the header row.
func extractCSV(name string, content []byte) ([]models.RawSegment, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("extract CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("extract CSV: empty file")
	}

	header := rows[0]
	var b strings.Builder
	for _, row := range rows[1:] {
		record := make(map[string]string, len(header))
		for i, cell := range row {
			key := fmt.Sprintf("col%d", i+1)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				key = strings.TrimSpace(header[i])
			}
			record[key] = cell
		}
		line, err := json.Marshal(record)
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	text := strings.TrimRight(b.String(), "\n")
	if text == "" {
		// Header-only file, keep the header as plain text.
		text = strings.Join(header, ", ")
	}
	return []models.RawSegment{{
		Text:     text,
		Metadata: map[string]interface{}{"rows": len(rows) - 1},
	}}, nil
}
