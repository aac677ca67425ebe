package fidelity

import (
	"fmt"
	"unicode/utf8"

	"galley/internal/doc"
)

// DefaultMinDuplicateLen is the significance threshold: paragraphs and
// list items whose normalized text is this many runes or fewer are
// ignored as legitimately repeatable.
const DefaultMinDuplicateLen = 50

const previewRunes = 100

// Duplicate describes one repeated block of candidate content.
type Duplicate struct {
	Preview   string        `json:"text_preview"`
	Kind      doc.BlockKind `json:"kind"`
	Positions []int         `json:"positions"`
	Count     int           `json:"occurrence_count"`
}

// DupReport is the duplication scan result for one unit.
type DupReport struct {
	Duplicates []Duplicate `json:"duplicates"`
	// HeaderCount is the number of level-1 heading blocks, for the
	// exactly-once chapter-marker rule.
	HeaderCount int `json:"header_count"`
}

// MarkerIssue describes a violation of the exactly-once chapter-header
// rule, or returns "" when the rule holds.
func (r DupReport) MarkerIssue() string {
	return MarkerCountIssue(r.HeaderCount)
}

// MarkerCountIssue is the exactly-once chapter-marker rule for any
// observed marker count. Formats with explicit marker classes count
// marker elements rather than level-1 headings.
func MarkerCountIssue(count int) string {
	switch {
	case count == 0:
		return "chapter header missing"
	case count > 1:
		return fmt.Sprintf("chapter header appears %d times, want exactly 1", count)
	}
	return ""
}

// DetectDuplicates scans a unit's ordered blocks for repeated content.
// Two blocks are duplicates when their normalized texts match exactly.
// Headings are always significant; paragraphs and list items must exceed
// minLen normalized runes, so short repeatable fragments stay quiet.
// Duplicates come back in first-occurrence order with zero-based block
// positions.
func DetectDuplicates(blocks []doc.Block, minLen int) DupReport {
	if minLen <= 0 {
		minLen = DefaultMinDuplicateLen
	}
	var rep DupReport
	seen := make(map[string]*Duplicate)
	var order []string

	for i, b := range blocks {
		if b.Kind == doc.KindHeading && b.Level == 1 {
			rep.HeaderCount++
		}
		norm := Normalize(b.Text)
		if norm == "" {
			continue
		}
		if b.Kind != doc.KindHeading && utf8.RuneCountInString(norm) <= minLen {
			continue
		}
		if d, ok := seen[norm]; ok {
			d.Positions = append(d.Positions, i)
			d.Count++
			continue
		}
		seen[norm] = &Duplicate{
			Preview:   preview(norm),
			Kind:      b.Kind,
			Positions: []int{i},
			Count:     1,
		}
		order = append(order, norm)
	}

	rep.Duplicates = []Duplicate{}
	for _, norm := range order {
		if d := seen[norm]; d.Count >= 2 {
			rep.Duplicates = append(rep.Duplicates, *d)
		}
	}
	return rep
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes])
}
