// Package structure classifies a unit's spans into typed blocks using
// the unit's own font-size distribution.
package structure

import (
	"math"
	"sort"

	"galley/internal/doc"
)

// Histogram counts rounded font sizes for one classification unit. It is
// built per unit and passed to the classifier explicitly, so one
// chapter's font distribution never leaks into another's.
type Histogram struct {
	counts map[int]int
	total  int
}

// NewHistogram returns an empty histogram.
func NewHistogram() *Histogram {
	return &Histogram{counts: make(map[int]int)}
}

// BuildHistogram counts the sizes of the given spans. Spans with
// non-positive or NaN sizes are ignored; the classifier reports them.
func BuildHistogram(spans []doc.Span) *Histogram {
	h := NewHistogram()
	for _, s := range spans {
		if s.Size <= 0 || math.IsNaN(s.Size) {
			continue
		}
		h.Add(s.Size)
	}
	return h
}

// Add records one occurrence of a font size.
func (h *Histogram) Add(size float64) {
	h.counts[roundSize(size)]++
	h.total++
}

// Total returns the number of recorded occurrences.
func (h *Histogram) Total() int { return h.total }

// Distinct returns the number of distinct rounded sizes seen.
func (h *Histogram) Distinct() int { return len(h.counts) }

// SizeCount pairs a rounded font size with its occurrence count.
type SizeCount struct {
	Size  int `json:"size"`
	Count int `json:"count"`
}

// Entries returns the recorded sizes ordered by count descending, ties
// broken by size descending.
func (h *Histogram) Entries() []SizeCount {
	entries := make([]SizeCount, 0, len(h.counts))
	for size, count := range h.counts {
		entries = append(entries, SizeCount{Size: size, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Size > entries[j].Size
	})
	return entries
}

// Tiers is the derived size structure of one unit: the body-text size
// and the heading ladder, largest size first, so ladder index i maps to
// heading level i+1. Flat is set when the unit has fewer than two
// distinct sizes and no heading can be inferred from size alone.
type Tiers struct {
	Body   int   `json:"body"`
	Ladder []int `json:"ladder,omitempty"`
	Flat   bool  `json:"flat,omitempty"`
}

// Tiers derives the unit's tiers. The body size is the most frequent
// size. The ladder keeps up to maxLevels sizes above the body, preferring
// the most frequent ones; the largest size always earns a rung, since
// chapter titles are typically the largest and rarest text on the page.
func (h *Histogram) Tiers(maxLevels int) Tiers {
	if maxLevels <= 0 {
		maxLevels = 4
	}
	entries := h.Entries()
	if len(entries) == 0 {
		return Tiers{Flat: true}
	}
	t := Tiers{Body: entries[0].Size, Flat: len(entries) < 2}

	var larger []int
	maxSize := 0
	for _, e := range entries {
		if e.Size > t.Body {
			larger = append(larger, e.Size)
			if e.Size > maxSize {
				maxSize = e.Size
			}
		}
	}
	if len(larger) == 0 {
		return t
	}
	keep := larger
	if len(keep) > maxLevels {
		keep = keep[:maxLevels]
		if !containsInt(keep, maxSize) {
			keep[len(keep)-1] = maxSize
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keep)))
	t.Ladder = keep
	return t
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func roundSize(size float64) int {
	return int(math.Round(size))
}
