package markup

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"galley/internal/doc"
)

// TextExtractor reads a plain-text rendering. Blank lines separate
// paragraphs; nothing else is inferred, so the extraction is marked
// unstructured and marker/structure gates do not apply.
type TextExtractor struct{}

func (e *TextExtractor) Extract(r io.Reader, markerClass string) (*Extraction, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ex := &Extraction{Structured: false}
	var all []string
	var para strings.Builder

	flush := func() {
		t := strings.TrimSpace(para.String())
		if t != "" {
			ex.Blocks = append(ex.Blocks, doc.Block{Kind: doc.KindParagraph, Text: t})
			all = append(all, t)
		}
		para.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if para.Len() > 0 {
			para.WriteByte(' ')
		}
		para.WriteString(strings.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	flush()

	ex.Text = strings.Join(all, "\n")
	return ex, nil
}
