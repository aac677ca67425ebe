// Package doc defines the span and block model shared by extraction,
// classification, and fidelity checking.
package doc

import "encoding/json"

// Span is one positioned, font-annotated text fragment from a source
// page. Spans are immutable once extracted.
type Span struct {
	Text   string  `json:"text"`
	Font   string  `json:"font,omitempty"`
	Size   float64 `json:"size"`
	Bold   bool    `json:"bold,omitempty"`
	Italic bool    `json:"italic,omitempty"`
	Page   int     `json:"page"`
	BBox   *Rect   `json:"bbox,omitempty"`
}

// Rect is a page-space bounding box in points.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// BlockKind tags the semantic type of an assembled block.
type BlockKind string

const (
	KindHeading   BlockKind = "heading"
	KindParagraph BlockKind = "paragraph"
	KindListItem  BlockKind = "list_item"
)

// Emphasis records styling carried by every span in a block. A flag is
// set only when all contributing spans agree.
type Emphasis struct {
	Bold   bool `json:"bold,omitempty"`
	Italic bool `json:"italic,omitempty"`
}

// Block is one semantically typed unit assembled from consecutive spans.
// Heading blocks carry Level 1-4; other kinds leave it zero. A block
// always holds non-whitespace text.
type Block struct {
	Kind     BlockKind `json:"kind"`
	Level    int       `json:"level,omitempty"`
	Text     string    `json:"text"`
	Spans    []Span    `json:"source_spans,omitempty"`
	Emphasis Emphasis  `json:"emphasis"`
}

// IsHeading reports whether the block is a heading of any level.
func (b Block) IsHeading() bool { return b.Kind == KindHeading }

// Page returns the source page of the block's first span, or 0 when the
// block carries no span provenance.
func (b Block) Page() int {
	if len(b.Spans) == 0 {
		return 0
	}
	return b.Spans[0].Page
}

// Attachment is an opaque table or image descriptor carried from
// extraction to generation without interpretation.
type Attachment struct {
	Kind string          `json:"kind"`
	Page int             `json:"page"`
	BBox *Rect           `json:"bbox,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Page holds everything extracted from one source page.
type Page struct {
	Number      int          `json:"page"`
	Spans       []Span       `json:"spans"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Document is an ordered collection of extracted pages.
type Document struct {
	Title string `json:"title,omitempty"`
	Pages []Page `json:"pages"`
}

// AllSpans returns the document's spans in reading order: page order,
// span order within each page.
func (d *Document) AllSpans() []Span {
	var spans []Span
	for _, p := range d.Pages {
		spans = append(spans, p.Spans...)
	}
	return spans
}

// AllAttachments returns every attachment in page order.
func (d *Document) AllAttachments() []Attachment {
	var atts []Attachment
	for _, p := range d.Pages {
		atts = append(atts, p.Attachments...)
	}
	return atts
}

// PageRange returns the pages numbered from through to, inclusive.
func (d *Document) PageRange(from, to int) []Page {
	var pages []Page
	for _, p := range d.Pages {
		if p.Number >= from && p.Number <= to {
			pages = append(pages, p)
		}
	}
	return pages
}
