// Package markup extracts the comparable content of a candidate
// rendering: its visible text and its block-level structure.
package markup

import (
	"fmt"
	"io"
	"strings"

	"galley/internal/doc"
)

// Extraction is what the fidelity stage consumes from one rendering.
type Extraction struct {
	// Text is all visible text, block elements separated by newlines.
	// It includes chrome the generator emitted (headers, footers):
	// stray boilerplate in a candidate is a fidelity signal, not noise.
	Text string
	// Blocks is the block-level structure in document order.
	Blocks []doc.Block
	// MarkerCount counts chapter-marker occurrences: elements carrying
	// the marker class in HTML, level-1 headings in markdown.
	MarkerCount int
	// Structured is false for formats with no block structure to check
	// (plain text); marker and structure gates do not apply to them.
	Structured bool
}

// Extractor pulls an Extraction from one rendering format.
type Extractor interface {
	Extract(r io.Reader, markerClass string) (*Extraction, error)
}

// ForFormat returns the extractor for a rendering format label.
func ForFormat(format string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "html", "htm", "":
		return &HTMLExtractor{}, nil
	case "markdown", "md":
		return &MarkdownExtractor{}, nil
	case "text", "txt", "plain":
		return &TextExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported rendering format: %q", format)
	}
}

// IsSupportedFormat reports whether the rendering format label has an
// extractor.
func IsSupportedFormat(format string) bool {
	_, err := ForFormat(format)
	return err == nil
}

// clampHeading folds h5/h6 into the deepest supported level.
func clampHeading(level int) int {
	if level > 4 {
		return 4
	}
	return level
}
