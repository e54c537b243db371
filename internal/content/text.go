package content

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Truncate shortens text to at most max runes, preferring to cut at the last
// word boundary inside the limit.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := runes[:max]
	if !unicode.IsSpace(runes[max]) {
		for i := len(cut) - 1; i > max/2; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace)
}

// clean strips whitespace and wrapping quotes models like to add.
func clean(text string) string {
	text = strings.TrimSpace(text)
	for len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			text = strings.TrimSpace(text[1 : len(text)-1])
			continue
		}
		break
	}
	return text
}
