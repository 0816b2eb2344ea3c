package adapter

import (
	"strings"

	"github.com/tealeg/xlsx/v2"
)

// readXLSX reads the first sheet of a workbook upload, treating the first
// row as headers, and returns header-keyed rows like the CSV path.
func readXLSX(data []byte) ([]map[string]string, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, MalformedFileError{Cause: err}
	}
	if len(file.Sheets) == 0 || len(file.Sheets[0].Rows) == 0 {
		return nil, nil
	}

	sheet := file.Sheets[0]
	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = strings.TrimSpace(cell.String())
	}

	var rows []map[string]string
	for _, r := range sheet.Rows[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(r.Cells) {
				row[col] = r.Cells[i].String()
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
