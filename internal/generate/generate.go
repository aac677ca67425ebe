// Package generate produces candidate renderings for validation units
// through an external generator service.
package generate

import (
	"context"
	"fmt"
	"strings"

	"galley/internal/doc"
)

// Request carries one unit's reference content to the generator.
// Continuation marks batches after the first when a unit is split by
// token budget: continuations must not repeat the chapter marker.
type Request struct {
	Unit         string
	ChapterID    string
	Page         int
	Title        string
	Format       string
	MarkerClass  string
	Blocks       []doc.Block
	Attachments  []doc.Attachment
	Feedback     string
	Continuation bool
}

// Rendering is one candidate produced by a generator.
type Rendering struct {
	Format  string
	Content string
}

// Generator renders a candidate for a unit. Implementations retry
// transient failures internally; a returned error is final.
type Generator interface {
	Render(ctx context.Context, req Request) (*Rendering, error)
	Close()
}

// Directives returns the rendering rules sent with every request. The
// fidelity gates downstream check exactly these, so a generator that
// follows them produces a passing candidate. Continuation batches get
// the inverse marker rule: the joined rendering is validated as one
// unit, and the marker must appear exactly once across all batches.
func Directives(format, markerClass string, continuation bool) []string {
	d := []string{
		"render every block in reading order; do not reorder, merge, or omit content",
		"keep the source wording exactly; never paraphrase, summarize, or translate",
		"emit each heading and each paragraph exactly once",
		"do not add page numbers, running headers, or any text not present in the blocks",
	}
	if continuation {
		d = append(d, "this batch continues the same unit: do not repeat the chapter title or emit the chapter marker again")
		return d
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "markdown", "md":
		d = append(d, "render the chapter title as the only level-1 heading")
	case "text", "txt", "plain":
		d = append(d, "separate paragraphs with blank lines")
	default:
		if markerClass != "" {
			d = append(d, fmt.Sprintf("wrap the chapter title in an element with class %q, exactly once", markerClass))
		} else {
			d = append(d, "render the chapter title as the only h1 element")
		}
	}
	return d
}
