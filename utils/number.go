package utils

import (
	"crypto/rand"
	"github.com/jxskiss/base62"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"strconv"
	"strings"
)

var encoding = base62.NewEncoding("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")

// RandomAlphanumeric returns n random characters from [0-9A-Za-z].
func RandomAlphanumeric(n int) string {
	var result strings.Builder
	buf := make([]byte, 16)
	for result.Len() < n {
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		result.Write(encoding.Encode(buf))
	}
	return result.String()[:n]
}

// FormatThousands formats n with commas every three digits, "1234567" -> "1,234,567".
func FormatThousands(n uint64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// ParseThousands is the inverse of FormatThousands.
func ParseThousands(s string) (uint64, error) {
	return strconv.ParseUint(strings.ReplaceAll(s, ",", ""), 10, 64)
}
