package markup

import (
	"strings"
	"testing"
)

func TestTextExtractor_SplitsOnBlankLines(t *testing.T) {
	input := "First paragraph\ncontinues here.\n\nSecond paragraph.\n\n\nThird.\n"

	ex, err := (&TextExtractor{}).Extract(strings.NewReader(input), "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := []string{
		"First paragraph continues here.",
		"Second paragraph.",
		"Third.",
	}
	if len(ex.Blocks) != len(want) {
		t.Fatalf("expected %d paragraphs, got %d: %+v", len(want), len(ex.Blocks), ex.Blocks)
	}
	for i, text := range want {
		if ex.Blocks[i].Text != text {
			t.Errorf("paragraph %d: expected %q, got %q", i, text, ex.Blocks[i].Text)
		}
	}
	if ex.Text != strings.Join(want, "\n") {
		t.Errorf("unexpected joined text: %q", ex.Text)
	}
}

func TestTextExtractor_Unstructured(t *testing.T) {
	ex, err := (&TextExtractor{}).Extract(strings.NewReader("Only text.\n"), "chapter-title")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ex.Structured {
		t.Error("plain text must not claim structure")
	}
	if ex.MarkerCount != 0 {
		t.Errorf("plain text has no markers, got %d", ex.MarkerCount)
	}
}

func TestTextExtractor_Empty(t *testing.T) {
	ex, err := (&TextExtractor{}).Extract(strings.NewReader(""), "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(ex.Blocks) != 0 || ex.Text != "" {
		t.Errorf("expected empty extraction, got %+v", ex)
	}
}
