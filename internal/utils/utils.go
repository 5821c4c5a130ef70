package utils

import "strings"

// TruncateForLog shortens the provided string to the specified limit in runes,
// appending an ellipsis when truncated. Newlines are folded so previews stay on
// one log line.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
