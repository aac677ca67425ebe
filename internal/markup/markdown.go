package markup

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"galley/internal/doc"
)

// MarkdownExtractor reads a markdown rendering through the goldmark AST.
// Level-1 headings double as chapter markers: markdown has no CSS
// classes to carry the marker.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(r io.Reader, markerClass string) (*Extraction, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	ex := &Extraction{Structured: true}
	var lines []string
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := nodeText(node, src)
			if title == "" {
				continue
			}
			ex.Blocks = append(ex.Blocks, doc.Block{
				Kind:  doc.KindHeading,
				Level: clampHeading(node.Level),
				Text:  title,
			})
			if node.Level == 1 {
				ex.MarkerCount++
			}
			lines = append(lines, title)
		case *ast.List:
			for li := node.FirstChild(); li != nil; li = li.NextSibling() {
				item := nodeText(li, src)
				if item == "" {
					continue
				}
				ex.Blocks = append(ex.Blocks, doc.Block{Kind: doc.KindListItem, Text: item})
				lines = append(lines, item)
			}
		default:
			t := nodeText(n, src)
			if t == "" {
				continue
			}
			ex.Blocks = append(ex.Blocks, doc.Block{Kind: doc.KindParagraph, Text: t})
			lines = append(lines, t)
		}
	}
	ex.Text = strings.Join(lines, "\n")
	return ex, nil
}

// nodeText renders the plain text of a goldmark node. Blocks with
// children recurse; leaf blocks (code blocks) contribute their raw
// lines. This never reads a block's lines and its inline children both,
// so nothing is emitted twice.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var write func(ast.Node)
	write = func(n ast.Node) {
		if t, ok := n.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
			return
		}
		if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
			segments := n.Lines()
			for i := 0; i < segments.Len(); i++ {
				seg := segments.At(i)
				buf.Write(seg.Value(src))
			}
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			write(c)
			if c.Type() == ast.TypeBlock {
				buf.WriteByte(' ')
			}
		}
	}
	write(n)
	return strings.TrimSpace(buf.String())
}
