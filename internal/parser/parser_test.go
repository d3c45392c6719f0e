package parser

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

func TestDecode(t *testing.T) {
	t.Run("should keep valid utf-8 and strip the byte order mark", func(t *testing.T) {
		text, name, err := Decode([]byte("\ufeffCODE,NAME\n100,Итого\n"))

		require.NoError(t, err)
		assert.Equal(t, "utf-8", name)
		assert.Equal(t, "CODE,NAME\n100,Итого\n", text)
	})

	t.Run("should fall back to windows-1251", func(t *testing.T) {
		encoded, err := charmap.Windows1251.NewEncoder().String("CODE;NAME\n100;Наименование\n")
		require.NoError(t, err)

		text, name, err := Decode([]byte(encoded))

		require.NoError(t, err)
		assert.Equal(t, "windows-1251", name)
		assert.Equal(t, "CODE;NAME\n100;Наименование\n", text)
	})
}

func TestParseCSV(t *testing.T) {
	t.Run("should read a comma separated table", func(t *testing.T) {
		table, err := ParseCSV([]byte("CODE,NAME,PARENT_CODE\n100,Root,\n110,Child,100\n"))

		require.NoError(t, err)
		assert.Equal(t, []string{"CODE", "NAME", "PARENT_CODE"}, table.Columns)
		assert.Equal(t, [][]string{{"100", "Root", ""}, {"110", "Child", "100"}}, table.Rows)
	})

	t.Run("should detect a semicolon separator and trim header cells", func(t *testing.T) {
		table, err := ParseCSV([]byte(" CODE ; NAME\r\n100;Итого, всего\r\n"))

		require.NoError(t, err)
		assert.Equal(t, []string{"CODE", "NAME"}, table.Columns)
		assert.Equal(t, [][]string{{"100", "Итого, всего"}}, table.Rows)
	})

	t.Run("should skip blank lines and keep short rows", func(t *testing.T) {
		table, err := ParseCSV([]byte("CODE,NAME,COMMENT\n100,Root\n\n,,\n110,Child,x\n"))

		require.NoError(t, err)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, "", table.Cell(table.Rows[0], 2))
		assert.Equal(t, "x", table.Cell(table.Rows[1], 2))
	})

	t.Run("should reject an empty file", func(t *testing.T) {
		_, err := ParseCSV([]byte(""))

		assert.True(t, errors.Is(err, models.ErrValidation))
	})
}

func TestParseXLSX(t *testing.T) {
	t.Run("should read the first sheet and pad short rows", func(t *testing.T) {
		f := excelize.NewFile()
		sheet := f.GetSheetName(0)
		require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"CODE", "NAME", "COMMENT"}))
		require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"100", "Root"}))
		require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"110", "Child", "note"}))
		buffer, err := f.WriteToBuffer()
		require.NoError(t, err)

		table, err := ParseXLSX(buffer.Bytes())

		require.NoError(t, err)
		assert.Equal(t, []string{"CODE", "NAME", "COMMENT"}, table.Columns)
		assert.Equal(t, [][]string{{"100", "Root", ""}, {"110", "Child", "note"}}, table.Rows)
	})

	t.Run("should reject content that is not a workbook", func(t *testing.T) {
		_, err := ParseXLSX([]byte("CODE,NAME\n"))

		assert.True(t, errors.Is(err, models.ErrValidation))
	})
}

func TestParse(t *testing.T) {
	t.Run("should choose the format by extension", func(t *testing.T) {
		table, err := Parse("upload.CSV", []byte("CODE,NAME\n1,a\n"))

		require.NoError(t, err)
		assert.Len(t, table.Rows, 1)
	})

	t.Run("should reject unsupported files", func(t *testing.T) {
		_, err := Parse("upload.json", []byte("{}"))

		assert.True(t, errors.Is(err, models.ErrValidation))
		assert.False(t, Supported("upload.json"))
		assert.True(t, Supported("dir/upload.xlsx"))
	})
}
