package markup

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"galley/internal/doc"
)

// HTMLExtractor reads a rendered HTML document. Only genuinely invisible
// subtrees are skipped (script, style, noscript, template, iframe);
// header and footer elements count as candidate content.
type HTMLExtractor struct{}

func (e *HTMLExtractor) Extract(r io.Reader, markerClass string) (*Extraction, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	scope := findBody(root)
	if scope == nil {
		scope = root
	}

	ex := &Extraction{Structured: true}
	ex.Text = visibleText(scope)
	e.collectBlocks(scope, markerClass, ex)
	return ex, nil
}

func (e *HTMLExtractor) collectBlocks(n *html.Node, markerClass string, ex *Extraction) {
	if n.Type == html.ElementNode {
		if invisibleTag(n.Data) {
			return
		}
		if markerClass != "" && hasClass(n, markerClass) {
			ex.MarkerCount++
		}
		if level := headingLevel(n.Data); level > 0 {
			if text := textContent(n); text != "" {
				ex.Blocks = append(ex.Blocks, doc.Block{
					Kind:  doc.KindHeading,
					Level: clampHeading(level),
					Text:  text,
				})
				if markerClass == "" && level == 1 {
					ex.MarkerCount++
				}
			}
			return
		}
		switch n.Data {
		case "p", "blockquote", "td":
			if text := textContent(n); text != "" {
				ex.Blocks = append(ex.Blocks, doc.Block{Kind: doc.KindParagraph, Text: text})
			}
			return
		case "li":
			if text := textContent(n); text != "" {
				ex.Blocks = append(ex.Blocks, doc.Block{Kind: doc.KindListItem, Text: text})
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.collectBlocks(c, markerClass, ex)
	}
}

// visibleText collects every text node outside invisible subtrees, with
// newlines at block-element boundaries so line-based boilerplate checks
// keep working. Boundaries separate both sides: text following a closed
// block element must not fuse with the block's last word.
func visibleText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if invisibleTag(n.Data) {
				return
			}
			if blockTag(n.Data) && sb.Len() > 0 {
				sb.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTag(n.Data) {
			sb.WriteByte('\n')
		}
	}
	walk(n)

	// Collapse blank lines introduced by nested block elements.
	lines := strings.Split(sb.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimSpace(line))
		}
	}
	return strings.Join(kept, "\n")
}

func invisibleTag(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template", "iframe", "head":
		return true
	}
	return false
}

func blockTag(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6",
		"table", "tr", "blockquote", "section", "article", "header",
		"footer", "br", "figcaption", "dt", "dd":
		return true
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// textContent flattens a block's text, separating at <br> and nested
// block boundaries so adjacent words never fuse into one token.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && blockTag(n.Data) && buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
		if n.Type == html.ElementNode && blockTag(n.Data) {
			buf.WriteByte(' ')
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
