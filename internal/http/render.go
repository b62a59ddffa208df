package http

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"opentales/app/internal/lore"
)

// renderSegments turns mention-resolved segments into an HTML fragment: plain
// text is escaped with newlines as <br>, references become anchors opening
// the mentioned entry. Raw markup typed into an entry never survives;
// everything but the generated anchors is escaped.
func renderSegments(segments []lore.Segment, campaignID uint) string {
	var b strings.Builder
	for _, seg := range segments {
		if seg.IsReference() {
			fmt.Fprintf(&b, `<a class="mention" href="/campaigns/%d/lore/%d">%s</a>`,
				campaignID, seg.Entry.ID, html.EscapeString(seg.Text))
			continue
		}
		b.WriteString(escapeWithBreaks(seg.Text))
	}
	return b.String()
}

// stripMarkup reduces stored content to its text, dropping any tags a client
// may have smuggled into an entry body. Parsing with the html package instead
// of a regexp keeps entities and malformed markup correct.
func stripMarkup(content string) string {
	if !strings.ContainsAny(content, "<>") {
		return content
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return html.EscapeString(content)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return b.String()
}

func escapeWithBreaks(text string) string {
	escaped := html.EscapeString(text)
	return strings.ReplaceAll(escaped, "\n", "<br>")
}
