package scheduler

import (
	"strings"

	"golang.org/x/net/html"
)

// inlineMarkers maps inline formatting tags to the plain-text markers the
// prompt legend explains. The same marker opens and closes.
var inlineMarkers = map[string]string{
	"u":      "__",
	"s":      "~~",
	"strong": "**",
	"b":      "**",
	"em":     "*",
	"i":      "*",
}

// CleanRichText flattens editor HTML into plain text with lightweight
// markers. Plain text passes through unchanged apart from trimming.
func CleanRichText(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder

	endsWithNewline := func() bool {
		s := b.String()
		return s == "" || strings.HasSuffix(s, "\n")
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input; keep whatever was readable.
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch tag := string(name); tag {
			case "p":
				if !endsWithNewline() {
					b.WriteString("\n")
				}
			case "li":
				b.WriteString("\n- ")
			case "br":
				b.WriteString("\n")
			default:
				b.WriteString(inlineMarkers[tag])
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch tag := string(name); tag {
			case "p":
				b.WriteString("\n")
			default:
				b.WriteString(inlineMarkers[tag])
			}
		}
	}
}
