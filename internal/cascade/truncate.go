package cascade

import "unicode/utf8"

// Ellipsis marks text that was cut short.
const Ellipsis = "..."

// Truncate returns text unchanged when it has at most budget characters,
// otherwise its first budget characters followed by Ellipsis.
func Truncate(text string, budget int) string {
	if len(text) <= budget || utf8.RuneCountInString(text) <= budget {
		return text
	}
	n := 0
	for i := range text {
		if n == budget {
			return text[:i] + Ellipsis
		}
		n++
	}
	return text
}
