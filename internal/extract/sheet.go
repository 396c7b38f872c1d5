package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/xuri/excelize/v2"
)

// extractSpreadsheet extracts text from .xlsx bytes. Each sheet becomes one
// segment whose text starts with the sheet name followed by one JSON object
// per row keyed by the header row, so tabular records stay self-describing
// after chunking.
func extractSpreadsheet(name string, content []byte) ([]models.RawSegment, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("extract spreadsheet: %w", err)
	}
	defer f.Close()

	var segments []models.RawSegment
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("extract spreadsheet: sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		header := rows[0]
		var b strings.Builder
		b.WriteString("Sheet: ")
		b.WriteString(sheet)
		b.WriteByte('\n')
		for _, row := range rows[1:] {
			record := make(map[string]string, len(header))
			for i, cell := range row {
				key := fmt.Sprintf("col%d", i+1)
				if i < len(header) && strings.TrimSpace(header[i]) != "" {
					key = strings.TrimSpace(header[i])
				}
				record[key] = cell
			}
			if len(record) == 0 {
				continue
			}
			line, err := json.Marshal(record)
			if err != nil {
				continue
			}
			b.Write(line)
			b.WriteByte('\n')
		}

		segments = append(segments, models.RawSegment{
			Text: strings.TrimRight(b.String(), "\n"),
			Metadata: map[string]interface{}{
				"sheet": sheet,
				"rows":  len(rows) - 1,
			},
		})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("extract spreadsheet: no rows found")
	}
	return segments, nil
}
