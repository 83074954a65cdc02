package utils

import "unicode/utf8"

// Truncate shortens s to maxLen runes and appends "..." when anything was cut.
// Multi-byte runes are never split.
func Truncate(s string, maxLen int) string {
	maxLen = max(maxLen, 0)
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
