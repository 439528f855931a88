package textutil

import (
	"strings"
	"unicode"
)

// CleanTitle collapses runs of whitespace to single spaces and drops control
// and format characters. The result is trimmed.
func CleanTitle(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	space := false
	for _, r := range value {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r), r == unicode.ReplacementChar:
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Truncate shortens value to at most max bytes without splitting a rune.
func Truncate(value string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8RuneStart(value[cut]) {
		cut--
	}
	return strings.TrimSpace(value[:cut])
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
