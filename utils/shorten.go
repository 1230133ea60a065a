package utils

import "strings"

func Shorten(value string, n int) string {
	if len(value) <= n*2+3 {
		return value
	} else {
		return value[:n] + "..." + value[len(value)-n:]
	}
}

// LogSafe flattens newlines and shortens value so it can be embedded in a single log line.
func LogSafe(value string) string {
	value = strings.ReplaceAll(value, "\r", "")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return strings.ToValidUTF8(Shorten(value, 40), "?")
}
