// Package adapterutil provides shared utilities for transport adapters.
package adapterutil

import (
	"strings"
	"unicode"
)

const summaryLimit = 120

// SummarizeText returns a preview of text for logs, cut at 120 runes.
func SummarizeText(text string) string {
	value := strings.TrimSpace(text)
	if value == "" {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= summaryLimit {
		return value
	}
	return string(runes[:summaryLimit]) + "..."
}

// ContainsMention reports whether text mentions "@handle" as a whole word,
// ignoring case.
func ContainsMention(text, handle string) bool {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return false
	}
	lower := strings.ToLower(text)
	needle := "@" + strings.ToLower(handle)
	for offset := 0; ; {
		idx := strings.Index(lower[offset:], needle)
		if idx < 0 {
			return false
		}
		end := offset + idx + len(needle)
		if end == len(lower) || !isHandleRune(rune(lower[end])) {
			return true
		}
		offset = end
	}
}

func isHandleRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
