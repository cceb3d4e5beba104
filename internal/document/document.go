// Package document loads reader text files.
package document

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Load reads the file at path and decodes it with Decode.
func Load(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return Decode(raw)
}

// Decode converts raw file bytes to text. A UTF-8 or UTF-16 byte order mark selects
// the encoding and is dropped. Without one, valid UTF-8 is kept as is and anything
// else is read as Windows-1252.
func Decode(raw []byte) (string, error) {
	var fallback transform.Transformer = unicode.UTF8.NewDecoder()
	if !utf8.Valid(raw) {
		fallback = charmap.Windows1252.NewDecoder()
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode document as %s: %w", Encoding(raw), err)
	}
	return string(out), nil
}

// Encoding names the encoding Decode would use for raw.
func Encoding(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return "utf-8 (bom)"
	case bytes.HasPrefix(raw, bomUTF16LE):
		return "utf-16le"
	case bytes.HasPrefix(raw, bomUTF16BE):
		return "utf-16be"
	case utf8.Valid(raw):
		return "utf-8"
	default:
		return "windows-1252"
	}
}
