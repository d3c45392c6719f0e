package parser

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

const utf8BOM = "\ufeff"

type namedEncoding struct {
	Name     string
	Encoding encoding.Encoding
}

// fallbackEncodings are tried in order when the input is not valid UTF-8.
var fallbackEncodings = []namedEncoding{
	{Name: "windows-1251", Encoding: charmap.Windows1251},
	{Name: "cp1252", Encoding: charmap.Windows1252},
	{Name: "iso-8859-1", Encoding: charmap.ISO8859_1},
}

// Decode converts raw file content to a string, trying UTF-8 first and then the
// single-byte fallbacks. It returns the name of the encoding that succeeded.
func Decode(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), utf8BOM), "utf-8", nil
	}

	for _, candidate := range fallbackEncodings {
		decoded, err := candidate.Encoding.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		text := string(decoded)
		// single-byte decoders substitute undefined bytes instead of failing
		if strings.ContainsRune(text, utf8.RuneError) {
			continue
		}
		return text, candidate.Name, nil
	}

	return "", "", models.Validationf("unable to decode file with any of utf-8, windows-1251, cp1252, iso-8859-1")
}
