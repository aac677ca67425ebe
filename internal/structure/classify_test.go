package structure

import (
	"strings"
	"testing"

	"galley/internal/doc"
)

func span(text string, size float64) doc.Span {
	return doc.Span{Text: text, Size: size, Page: 1, BBox: &doc.Rect{X1: 100, Y1: 12}}
}

func boldSpan(text string, size float64) doc.Span {
	s := span(text, size)
	s.Bold = true
	return s
}

func classifyAll(t *testing.T, spans []doc.Span) Result {
	t.Helper()
	return Classify(spans, BuildHistogram(spans), Options{})
}

func TestClassify_HeadingLadder(t *testing.T) {
	spans := []doc.Span{span("Chapter 1: The Market", 24)}
	for i := 0; i < 20; i++ {
		spans = append(spans, span("Body text about the market.", 12))
		spans = append(spans, span("", 12))
	}
	spans = append(spans, span("A Section Title", 18))
	spans = append(spans, span("More body text follows here.", 12))

	res := classifyAll(t, spans)
	if res.Flat {
		t.Fatal("expected non-flat classification")
	}
	if len(res.Blocks) == 0 {
		t.Fatal("expected blocks")
	}
	first := res.Blocks[0]
	if first.Kind != doc.KindHeading || first.Level != 1 {
		t.Errorf("expected level-1 heading first, got %s level %d", first.Kind, first.Level)
	}

	var section *doc.Block
	for i := range res.Blocks {
		if res.Blocks[i].Text == "A Section Title" {
			section = &res.Blocks[i]
		}
	}
	if section == nil {
		t.Fatal("section heading not found")
	}
	if section.Kind != doc.KindHeading || section.Level != 2 {
		t.Errorf("expected level-2 heading, got %s level %d", section.Kind, section.Level)
	}
}

func TestClassify_FlatDistribution(t *testing.T) {
	spans := []doc.Span{
		boldSpan("Looks Like A Heading", 12),
		span("", 12),
		span("But everything is one size.", 12),
	}

	res := classifyAll(t, spans)
	if !res.Flat {
		t.Fatal("expected flat classification")
	}
	for _, b := range res.Blocks {
		if b.Kind != doc.KindParagraph {
			t.Errorf("expected only paragraphs in flat mode, got %s", b.Kind)
		}
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a low-confidence warning for flat distribution")
	}
}

func TestClassify_BoldBodyHeading(t *testing.T) {
	spans := []doc.Span{
		span("Chapter 2", 24),
		span("Regular paragraph text at body size.", 12),
		span("", 12),
		boldSpan("Summary", 12),
		span("", 12),
		span("The summary body.", 12),
	}

	res := classifyAll(t, spans)
	var summary *doc.Block
	for i := range res.Blocks {
		if res.Blocks[i].Text == "Summary" {
			summary = &res.Blocks[i]
		}
	}
	if summary == nil {
		t.Fatal("summary block not found")
	}
	if summary.Kind != doc.KindHeading || summary.Level != 2 {
		t.Errorf("expected bold body-size text as level-2 heading, got %s level %d", summary.Kind, summary.Level)
	}
	if !summary.Emphasis.Bold {
		t.Error("expected bold emphasis preserved")
	}
}

func TestClassify_AllCapsHeading(t *testing.T) {
	spans := []doc.Span{
		span("Chapter 3", 24),
		span("Some body text first.", 12),
		span("", 12),
		span("SNAPSHOT", 12),
		span("", 12),
		span("The snapshot body.", 12),
	}

	res := classifyAll(t, spans)
	var snap *doc.Block
	for i := range res.Blocks {
		if res.Blocks[i].Text == "SNAPSHOT" {
			snap = &res.Blocks[i]
		}
	}
	if snap == nil {
		t.Fatal("all-caps block not found")
	}
	if snap.Kind != doc.KindHeading || snap.Level != 3 {
		t.Errorf("expected all-caps run as level-3 heading, got %s level %d", snap.Kind, snap.Level)
	}
}

func TestClassify_ListMarkers(t *testing.T) {
	spans := []doc.Span{
		span("Title", 24),
		span("• First point", 12),
		span("continues on a wrapped line", 12),
		span("• Second point", 12),
		span("2. Third point", 12),
	}

	res := classifyAll(t, spans)
	var items []doc.Block
	for _, b := range res.Blocks {
		if b.Kind == doc.KindListItem {
			items = append(items, b)
		}
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 list items, got %d: %+v", len(items), items)
	}
	want := []string{"First point continues on a wrapped line", "Second point", "Third point"}
	for i, w := range want {
		if items[i].Text != w {
			t.Errorf("item %d: expected %q, got %q", i, w, items[i].Text)
		}
	}
	for _, item := range items {
		if strings.ContainsAny(item.Text, "•") {
			t.Errorf("marker glyph leaked into item text: %q", item.Text)
		}
	}
}

func TestClassify_BareBulletSpan(t *testing.T) {
	spans := []doc.Span{
		span("Title", 24),
		span("•", 12),
		span("Point in its own span", 12),
	}

	res := classifyAll(t, spans)
	last := res.Blocks[len(res.Blocks)-1]
	if last.Kind != doc.KindListItem {
		t.Fatalf("expected list item, got %s", last.Kind)
	}
	if last.Text != "Point in its own span" {
		t.Errorf("unexpected item text %q", last.Text)
	}
}

func TestClassify_MergesHeadingRuns(t *testing.T) {
	spans := []doc.Span{
		span("The Long", 24),
		span("Chapter Title", 24),
		span("Body under the heading", 12),
		span("keeps flowing across", 12),
		span("several extracted rows.", 12),
	}

	res := classifyAll(t, spans)
	if len(res.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(res.Blocks))
	}
	if res.Blocks[0].Text != "The Long Chapter Title" {
		t.Errorf("expected merged heading run, got %q", res.Blocks[0].Text)
	}
	if len(res.Blocks[0].Spans) != 2 {
		t.Errorf("expected 2 source spans, got %d", len(res.Blocks[0].Spans))
	}
}

func TestClassify_FlushOnPageChange(t *testing.T) {
	spans := []doc.Span{
		span("Title", 24),
		span("Text on the first page.", 12),
		span("Text on the second page.", 12),
	}
	spans[2].Page = 2

	res := classifyAll(t, spans)
	var paras []doc.Block
	for _, b := range res.Blocks {
		if b.Kind == doc.KindParagraph {
			paras = append(paras, b)
		}
	}
	if len(paras) != 2 {
		t.Fatalf("expected page change to split paragraphs, got %d", len(paras))
	}
}

func TestClassify_BlankSpanFlushes(t *testing.T) {
	spans := []doc.Span{
		span("Title", 24),
		span("First paragraph.", 12),
		span("", 12),
		span("Second paragraph.", 12),
	}

	res := classifyAll(t, spans)
	if len(res.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %+v", len(res.Blocks), res.Blocks)
	}
	if res.Blocks[1].Text != "First paragraph." || res.Blocks[2].Text != "Second paragraph." {
		t.Errorf("unexpected paragraph split: %+v", res.Blocks[1:])
	}
}

func TestClassify_SkipsMalformedSpans(t *testing.T) {
	spans := []doc.Span{
		span("Title", 24),
		{Text: "", Size: 12},
		{Text: "sizeless", Size: 0, Page: 1},
		span("Real content survives.", 12),
	}

	res := classifyAll(t, spans)
	if len(res.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", res.Warnings)
	}
	for _, b := range res.Blocks {
		if b.Text == "sizeless" {
			t.Error("malformed span leaked into blocks")
		}
	}
}

func TestClassify_DropsDecorativeGlyphs(t *testing.T) {
	spans := []doc.Span{
		span("Title", 24),
		span("❦", 12),
		span("Content after the ornament.", 12),
	}

	res := classifyAll(t, spans)
	for _, b := range res.Blocks {
		if strings.Contains(b.Text, "❦") {
			t.Errorf("decorative glyph leaked into %q", b.Text)
		}
	}
}

func TestClassify_EmphasisRequiresAllSpans(t *testing.T) {
	a := span("Starts plain", 12)
	b := boldSpan("ends bold.", 12)
	title := span("Title", 24)

	res := classifyAll(t, []doc.Span{title, a, b})
	para := res.Blocks[len(res.Blocks)-1]
	if para.Emphasis.Bold {
		t.Error("expected bold emphasis only when every span is bold")
	}

	res = classifyAll(t, []doc.Span{title, boldSpan("all bold", 12), boldSpan("text.", 12)})
	para = res.Blocks[len(res.Blocks)-1]
	if para.Kind != doc.KindParagraph || !para.Emphasis.Bold {
		t.Errorf("expected bold paragraph when every span is bold, got %+v", para)
	}
}

func TestClassify_NoEmptyBlocks(t *testing.T) {
	spans := []doc.Span{
		span("   ", 12),
		span("•", 12),
		span("Title", 24),
	}

	res := classifyAll(t, spans)
	for _, b := range res.Blocks {
		if strings.TrimSpace(b.Text) == "" {
			t.Errorf("empty block emitted: %+v", b)
		}
	}
}

func TestClassify_PreservesContentTokens(t *testing.T) {
	spans := []doc.Span{
		span("Chapter 4", 24),
		span("Every content word must survive classification.", 12),
		span("• Including list items", 12),
	}

	res := classifyAll(t, spans)
	got := make(map[string]bool)
	for _, b := range res.Blocks {
		for _, tok := range strings.Fields(b.Text) {
			got[tok] = true
		}
	}
	for _, tok := range []string{"Chapter", "4", "Every", "survive", "Including", "items"} {
		if !got[tok] {
			t.Errorf("token %q lost during classification", tok)
		}
	}
}

func TestResult_Text(t *testing.T) {
	res := Result{Blocks: []doc.Block{
		{Kind: doc.KindHeading, Level: 1, Text: "Title"},
		{Kind: doc.KindParagraph, Text: "Body."},
	}}
	if got := res.Text(); got != "Title\nBody." {
		t.Errorf("unexpected joined text %q", got)
	}
}
