package security

import "strings"

// htmlEscaper escapes the five characters that enable markup or script
// injection in a rendering context. The replacement set and order are fixed:
// < > " ' / in that sequence, every occurrence.
var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize escapes markup-significant characters in free-text input.
// Empty input returns an empty string.
//
// The guarantee is monotonic escaping: output never contains a raw
// < > " ' or / character, no matter how many times input has already been
// escaped. Callers should still sanitize exactly once, at the trust
// boundary, since "&" is left alone and pre-escaped entities are not
// decoded.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	return htmlEscaper.Replace(text)
}
