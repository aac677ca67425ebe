package structure

import (
	"testing"

	"galley/internal/doc"
)

func TestHistogram_EntriesOrdering(t *testing.T) {
	h := NewHistogram()
	for i := 0; i < 5; i++ {
		h.Add(12)
	}
	for i := 0; i < 2; i++ {
		h.Add(18)
	}
	h.Add(24)

	entries := h.Entries()
	want := []SizeCount{{Size: 12, Count: 5}, {Size: 18, Count: 2}, {Size: 24, Count: 1}}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i] != w {
			t.Errorf("entry %d: expected %+v, got %+v", i, w, entries[i])
		}
	}
}

func TestHistogram_EntriesTieBreakBySize(t *testing.T) {
	h := NewHistogram()
	for i := 0; i < 3; i++ {
		h.Add(10)
		h.Add(14)
	}

	entries := h.Entries()
	if entries[0].Size != 14 {
		t.Errorf("expected size 14 first on tied counts, got %d", entries[0].Size)
	}
}

func TestHistogram_RoundsSizes(t *testing.T) {
	h := NewHistogram()
	h.Add(11.6)
	h.Add(12.4)

	if h.Distinct() != 1 {
		t.Fatalf("expected 11.6 and 12.4 to share a bucket, got %d buckets", h.Distinct())
	}
	if got := h.Entries()[0]; got.Size != 12 || got.Count != 2 {
		t.Errorf("expected {12 2}, got %+v", got)
	}
}

func TestBuildHistogram_SkipsInvalidSizes(t *testing.T) {
	spans := []doc.Span{
		{Text: "ok", Size: 12},
		{Text: "zero", Size: 0},
		{Text: "negative", Size: -3},
	}
	h := BuildHistogram(spans)
	if h.Total() != 1 {
		t.Errorf("expected 1 counted span, got %d", h.Total())
	}
}

func TestHistogram_Tiers(t *testing.T) {
	h := NewHistogram()
	for i := 0; i < 50; i++ {
		h.Add(12)
	}
	for i := 0; i < 4; i++ {
		h.Add(18)
	}
	h.Add(24)

	tiers := h.Tiers(4)
	if tiers.Flat {
		t.Fatal("expected non-flat tiers")
	}
	if tiers.Body != 12 {
		t.Errorf("expected body size 12, got %d", tiers.Body)
	}
	want := []int{24, 18}
	if len(tiers.Ladder) != len(want) {
		t.Fatalf("expected ladder %v, got %v", want, tiers.Ladder)
	}
	for i, w := range want {
		if tiers.Ladder[i] != w {
			t.Errorf("ladder[%d]: expected %d, got %d", i, w, tiers.Ladder[i])
		}
	}
}

func TestHistogram_TiersKeepsLargestSize(t *testing.T) {
	h := NewHistogram()
	for i := 0; i < 50; i++ {
		h.Add(11)
	}
	// Frequent mid-tier sizes would crowd out the rare title size
	// without the largest-size guarantee.
	for i := 0; i < 9; i++ {
		h.Add(14)
	}
	for i := 0; i < 8; i++ {
		h.Add(16)
	}
	h.Add(40)

	tiers := h.Tiers(2)
	if len(tiers.Ladder) != 2 {
		t.Fatalf("expected 2 rungs, got %v", tiers.Ladder)
	}
	if tiers.Ladder[0] != 40 {
		t.Errorf("expected the largest size on top of the ladder, got %v", tiers.Ladder)
	}
}

func TestHistogram_TiersFlat(t *testing.T) {
	h := NewHistogram()
	for i := 0; i < 10; i++ {
		h.Add(12)
	}

	tiers := h.Tiers(4)
	if !tiers.Flat {
		t.Error("expected flat tiers for a single-size unit")
	}
	if len(tiers.Ladder) != 0 {
		t.Errorf("expected empty ladder, got %v", tiers.Ladder)
	}

	if empty := NewHistogram().Tiers(4); !empty.Flat {
		t.Error("expected flat tiers for an empty histogram")
	}
}
