package cmdHandlers

import (
	"strings"
	"unicode/utf8"
)

// splitMessage cuts text into parts of at most limit runes. Cuts prefer the
// last newline inside the window so list lines stay whole.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := limit
		if n >= len(runes) {
			parts = append(parts, string(runes))
			break
		}
		if nl := lastNewline(runes[:n]); nl > 0 {
			n = nl + 1
		}
		parts = append(parts, strings.TrimSuffix(string(runes[:n]), "\n"))
		runes = runes[n:]
	}
	return parts
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}

// commandOf returns the leading command of a message for logging, or "" for
// plain text.
func commandOf(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	return fields[0]
}
