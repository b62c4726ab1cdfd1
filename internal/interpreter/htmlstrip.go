// internal/interpreter/htmlstrip.go
package interpreter

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML extracts the visible text and the anchor hrefs from a step's
// markup. Test management systems store steps as rich text, so both the
// parser and the validation oracle need the plain reading of a step.
// Whitespace is normalized to single spaces.
func StripHTML(s string) (text string, links []string) {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " "), nil
	}

	tz := html.NewTokenizer(strings.NewReader(s))
	var parts []string
	for {
		switch tz.Next() {
		case html.ErrorToken:
			// Includes io.EOF; the tokenizer never fails on malformed
			// markup, it just stops.
			return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), links
		case html.TextToken:
			parts = append(parts, string(tz.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := tz.Token()
			if tok.Data == "a" {
				for _, attr := range tok.Attr {
					if attr.Key == "href" && attr.Val != "" {
						links = append(links, attr.Val)
					}
				}
			}
		}
	}
}

// truncate shortens a string to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
