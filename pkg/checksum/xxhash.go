package checksum

import (
	"encoding/hex"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	cellSeparator = "\x1f"
	rowSeparator  = "\x1e"
)

// TableChecksum hashes a decoded table. Tables with the same header and cells
// hash equally regardless of the file format or encoding they were read from.
func TableChecksum(header []string, rows [][]string) string {
	digest := xxhash.New()
	digest.WriteString(strings.Join(header, cellSeparator))
	for _, row := range rows {
		digest.WriteString(rowSeparator)
		digest.WriteString(strings.Join(row, cellSeparator))
	}

	return hex.EncodeToString(digest.Sum(nil))
}
