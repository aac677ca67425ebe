package structure

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"galley/internal/doc"
)

// Options tunes the classifier. Zero values take the service defaults.
type Options struct {
	// MaxHeadingLevel is the deepest heading level assigned (default 4).
	MaxHeadingLevel int
	// RungTolerance matches a span to a ladder rung when its size is at
	// least rung*RungTolerance, absorbing sub-point rendering jitter
	// (default 0.92).
	RungTolerance float64
}

func (o Options) withDefaults() Options {
	if o.MaxHeadingLevel <= 0 {
		o.MaxHeadingLevel = 4
	}
	if o.RungTolerance <= 0 {
		o.RungTolerance = 0.92
	}
	return o
}

// Result carries the assembled blocks plus classification diagnostics.
type Result struct {
	Blocks []doc.Block
	// Flat means the unit had fewer than two distinct font sizes, so no
	// heading could be inferred from size. Confidence is low.
	Flat     bool
	Warnings []string
}

// Text joins the block texts line-wise, giving the unit's reference text
// for fidelity comparison.
func (r Result) Text() string {
	lines := make([]string, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		lines = append(lines, b.Text)
	}
	return strings.Join(lines, "\n")
}

// Classify assembles one unit's ordered spans into typed blocks using
// the unit's own size distribution. The histogram must have been built
// from the same spans. Blocks come out in reading order and are never
// empty; noise spans and malformed spans are dropped, the latter with a
// warning.
func Classify(spans []doc.Span, hist *Histogram, opts Options) Result {
	opts = opts.withDefaults()
	tiers := hist.Tiers(opts.MaxHeadingLevel)

	res := Result{Flat: tiers.Flat}
	if tiers.Flat && hist.Total() > 0 {
		res.Warnings = append(res.Warnings,
			"fewer than two distinct font sizes: no headings inferred from size")
	}

	var cur *blockRun
	lastPage := 0
	havePage := false

	flush := func() {
		if cur == nil {
			return
		}
		if b, ok := cur.block(); ok {
			res.Blocks = append(res.Blocks, b)
		}
		cur = nil
	}

	for i, s := range spans {
		if reason := spanProblem(s); reason != "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("span %d skipped: %s", i, reason))
			continue
		}
		text := strings.TrimSpace(s.Text)
		if text == "" || text == "\f" {
			// Blank spans and page-break markers end the current block.
			flush()
			continue
		}
		if havePage && s.Page != lastPage {
			flush()
		}
		lastPage, havePage = s.Page, true

		if isBareBullet(text) {
			// A marker in its own span opens the list item; the glyph
			// itself is consumed as list syntax.
			flush()
			cur = newRun(doc.KindListItem, 0)
			cur.add(s, "")
			continue
		}
		if isDecorative(text) {
			continue
		}

		lvl := levelFor(s, tiers, opts)
		if lvl > 0 {
			if cur != nil && cur.kind == doc.KindHeading && cur.level == lvl {
				cur.add(s, text)
				continue
			}
			flush()
			cur = newRun(doc.KindHeading, lvl)
			cur.add(s, text)
			continue
		}

		if marker, rest := splitListMarker(text); marker {
			flush()
			cur = newRun(doc.KindListItem, 0)
			cur.add(s, rest)
			continue
		}
		// Unmarked body text continues an open list item (wrapped lines)
		// or an open paragraph.
		if cur != nil && (cur.kind == doc.KindListItem || cur.kind == doc.KindParagraph) {
			cur.add(s, text)
			continue
		}
		flush()
		cur = newRun(doc.KindParagraph, 0)
		cur.add(s, text)
	}
	flush()
	return res
}

// levelFor maps one span onto a heading level, or 0 for body text.
// Sizes above the body match ladder rungs; at body size, bold weight and
// all-caps runs still mark headings when the text is heading-shaped.
func levelFor(s doc.Span, t Tiers, opts Options) int {
	if t.Flat {
		return 0
	}
	size := roundSize(s.Size)
	if size > t.Body {
		for i, rung := range t.Ladder {
			if float64(size) >= float64(rung)*opts.RungTolerance {
				return i + 1
			}
		}
		// Above body text but below every recognized rung: weakest tier.
		lvl := len(t.Ladder) + 1
		if lvl > opts.MaxHeadingLevel {
			lvl = opts.MaxHeadingLevel
		}
		return lvl
	}
	if !headingShaped(s.Text) {
		return 0
	}
	if s.Bold && size == t.Body {
		return 2
	}
	if upperRun(s.Text) {
		return 3
	}
	return 0
}

// spanProblem reports why a span is unusable, or "" when it is fine.
// Blank spans with a position are legitimate block separators.
func spanProblem(s doc.Span) string {
	if strings.TrimSpace(s.Text) == "" && s.BBox == nil {
		return "no text and no position"
	}
	if s.Size <= 0 || math.IsNaN(s.Size) {
		return fmt.Sprintf("invalid font size %v", s.Size)
	}
	return ""
}

// headingShaped rejects emphasis cues that cannot plausibly be headings:
// long prose runs and text that starts lowercase.
func headingShaped(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" || utf8.RuneCountInString(t) > 120 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(t)
	return !unicode.IsLower(r)
}

// upperRun reports whether text is an all-caps run longer than two
// characters, e.g. "PART ONE".
func upperRun(text string) bool {
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) <= 2 {
		return false
	}
	hasLetter := false
	for _, r := range t {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

var listMarkerRe = regexp.MustCompile(`^(?:[•●▪◦‣]|\d{1,3}[.)]|\([a-z0-9]{1,3}\)|[-–*])\s+`)

// splitListMarker strips a leading list marker, reporting whether one was
// present. The marker itself is consumed as list syntax.
func splitListMarker(text string) (bool, string) {
	loc := listMarkerRe.FindStringIndex(text)
	if loc == nil {
		return false, ""
	}
	return true, strings.TrimSpace(text[loc[1]:])
}

func isBareBullet(text string) bool {
	if utf8.RuneCountInString(text) != 1 {
		return false
	}
	return strings.ContainsAny(text, "•●▪◦‣")
}

// isDecorative flags single-character glyphs that decorate the page
// without carrying content (section marks, asterisks, rules).
func isDecorative(text string) bool {
	if utf8.RuneCountInString(text) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text)
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

type blockRun struct {
	kind   doc.BlockKind
	level  int
	texts  []string
	spans  []doc.Span
	bold   bool
	italic bool
}

func newRun(kind doc.BlockKind, level int) *blockRun {
	return &blockRun{kind: kind, level: level, bold: true, italic: true}
}

func (r *blockRun) add(s doc.Span, text string) {
	if text != "" {
		r.texts = append(r.texts, text)
	}
	r.spans = append(r.spans, s)
	r.bold = r.bold && s.Bold
	r.italic = r.italic && s.Italic
}

func (r *blockRun) block() (doc.Block, bool) {
	text := strings.TrimSpace(strings.Join(r.texts, " "))
	if text == "" {
		return doc.Block{}, false
	}
	return doc.Block{
		Kind:     r.kind,
		Level:    r.level,
		Text:     text,
		Spans:    r.spans,
		Emphasis: doc.Emphasis{Bold: r.bold, Italic: r.italic},
	}, true
}
