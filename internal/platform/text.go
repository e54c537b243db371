package platform

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText flattens status HTML into text, turning paragraph and line breaks
// into newlines.
func PlainText(content string) string {
	if !strings.Contains(content, "<") {
		return html.UnescapeString(strings.TrimSpace(content))
	}
	tokenizer := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "p" {
				b.WriteString("\n\n")
			}
		}
	}
}
