package segment

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ExtractText converts an HTML document into plain text.
//
// Script, style and noscript elements are removed with their contents, the
// remaining text nodes are joined with spaces, entities are decoded by the
// parser and whitespace runs collapse to a single space.
func ExtractText(document string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		collectText(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}
