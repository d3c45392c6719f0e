package parser

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// ParseXLSX reads the first sheet of a workbook. The first row is the header.
func ParseXLSX(data []byte) (*models.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "open workbook"), models.ErrValidation)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, models.Validationf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", sheets[0])
	}
	if len(rows) == 0 {
		return nil, models.Validationf("file has no header row")
	}

	table := &models.Table{Columns: normalizeHeader(rows[0]), Rows: make([][]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		// GetRows drops trailing empty cells
		for len(row) < len(table.Columns) {
			row = append(row, "")
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}
