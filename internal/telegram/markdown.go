package telegram

import (
	"strings"
	"unicode/utf8"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape makes user-provided text safe inside a Markdown (v1) message.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}

// truncate cuts text to at most maxLen runes, marking the cut.
func truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	return string([]rune(text)[:maxLen-20]) + "\n\n... (truncated)"
}
