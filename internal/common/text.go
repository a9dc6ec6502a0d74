package common

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText flattens any HTML markup in a payload string to its text
// content. Crash titles and method names occasionally arrive wrapped in
// markup from the platform UI; only plain text may reach a Jira summary or
// description.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return strings.TrimSpace(s)
	}

	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return ExtractText(root)
}

// ExtractText gets all text content from an HTML node and its children
func ExtractText(node *html.Node) string {
	var text strings.Builder

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(node)
	return strings.TrimSpace(text.String())
}
