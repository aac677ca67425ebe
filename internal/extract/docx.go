package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fumiama/go-docx"

	"galley/internal/doc"
)

// Word documents carry no page geometry or literal font sizes at the
// paragraph level, so heading styles are mapped onto synthetic size
// tiers. The downstream histogram then reconstructs the same ladder it
// would see in a PDF.
const docxBodySize = 11.0

var docxHeadingSizes = [...]float64{24, 18, 15, 13}

// DocxSource extracts spans from .docx paragraphs. Everything lands on
// a single synthetic page: DOCX has no fixed pagination.
type DocxSource struct{}

func (s *DocxSource) Extract(path string) (*doc.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat docx: %w", err)
	}
	parsed, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	page := doc.Page{Number: 1}
	for _, item := range parsed.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := paragraphText(para)
		if text == "" {
			continue
		}
		span := doc.Span{Text: text, Size: docxBodySize, Page: 1}
		if level := headingLevel(para); level > 0 {
			if level > len(docxHeadingSizes) {
				level = len(docxHeadingSizes)
			}
			span.Size = docxHeadingSizes[level-1]
			span.Bold = true
			span.Font = styleName(para)
		}
		page.Spans = append(page.Spans, span)
		// Separator: each paragraph is its own block downstream. The
		// rect is empty because DOCX has no geometry.
		page.Spans = append(page.Spans, doc.Span{Text: "", Size: docxBodySize, Page: 1, BBox: &doc.Rect{}})
	}
	if len(page.Spans) == 0 {
		return nil, fmt.Errorf("no paragraphs in %s", filepath.Base(path))
	}

	return &doc.Document{
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Pages: []doc.Page{page},
	}, nil
}

func headingLevel(para *docx.Paragraph) int {
	style := styleName(para)
	switch {
	case strings.EqualFold(style, "Title"):
		return 1
	case strings.EqualFold(style, "Heading1") || strings.EqualFold(style, "heading 1"):
		return 1
	case strings.EqualFold(style, "Heading2") || strings.EqualFold(style, "heading 2"):
		return 2
	case strings.EqualFold(style, "Heading3") || strings.EqualFold(style, "heading 3"):
		return 3
	case strings.EqualFold(style, "Heading4") || strings.EqualFold(style, "heading 4"):
		return 4
	}
	return 0
}

func styleName(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
