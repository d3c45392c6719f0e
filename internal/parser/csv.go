package parser

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// ParseCSV decodes and reads a delimited table. The separator is ';' when the
// header line has more semicolons than commas and ',' otherwise.
func ParseCSV(data []byte) (*models.Table, error) {
	text, _, err := Decode(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectSeparator(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, models.Validationf("file has no header row")
		}
		return nil, errors.Mark(errors.Wrap(err, "read header"), models.ErrValidation)
	}

	table := &models.Table{Columns: normalizeHeader(header), Rows: make([][]string, 0)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "read record"), models.ErrValidation)
		}
		if isBlank(record) {
			continue
		}
		table.Rows = append(table.Rows, record)
	}

	return table, nil
}

func detectSeparator(text string) rune {
	headerLine, _, _ := strings.Cut(text, "\n")
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}

func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(name, utf8BOM))
	}
	return columns
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
