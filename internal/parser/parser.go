package parser

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// Supported reports whether the file name has an importable extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Parse reads a table from file content, choosing the format by the file name's extension.
func Parse(name string, data []byte) (*models.Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ParseCSV(data)
	case ".xlsx":
		return ParseXLSX(data)
	}
	return nil, models.Validationf("unsupported file %q: expected .csv or .xlsx", filepath.Base(name))
}

func ParseFile(path string) (*models.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return Parse(path, data)
}
