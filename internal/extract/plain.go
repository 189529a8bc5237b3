package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as a string with CRLF line endings and a UTF-8
// BOM removed. Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	text := strings.TrimPrefix(string(content), "\ufeff")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}
