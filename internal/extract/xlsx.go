package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX renders each non-empty sheet row by row, cells separated by
// two spaces, under a "[Sheet: name]" header.
func extractXLSX(buf []byte) ([]Part, error) {
	f, err := excelize.OpenReader(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var parts []Part
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, "  "))
			}
		}
		if len(lines) == 0 {
			continue
		}

		parts = append(parts, Part{
			Label: sheet,
			Text:  "[Sheet: " + sheet + "]\n" + strings.Join(lines, "\n"),
		})
	}
	return parts, nil
}
