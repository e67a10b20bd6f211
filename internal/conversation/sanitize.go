package conversation

import "strings"

// markup lists the characters the inference service uses for markdown
// emphasis and headings. They are never spoken.
const markup = "*#"

// Sanitize prepares an answer for display and speech: every '*' and '#'
// is removed and surrounding whitespace is trimmed. Interior whitespace
// is left alone. Sanitize is idempotent.
func Sanitize(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(markup, r) {
			return -1
		}
		return r
	}, raw)
	return strings.TrimSpace(cleaned)
}
