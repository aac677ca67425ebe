package generate

import (
	"strings"

	"galley/internal/doc"
)

// EstimateTokens gives a rough token count using a words heuristic.
// Exact tokenization is not required for payload sizing.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per word for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 && len(text) > 0 {
		tokens = 1
	}
	return tokens
}

// SplitByPages groups blocks into generation batches that stay under
// maxTokens, splitting only at page boundaries so no page is rendered
// from partial content. A single page over the budget stays whole.
func SplitByPages(blocks []doc.Block, maxTokens int) [][]doc.Block {
	if len(blocks) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		return [][]doc.Block{blocks}
	}

	type pageRun struct {
		blocks []doc.Block
		tokens int
	}
	var runs []pageRun
	lastPage := -1
	for _, b := range blocks {
		p := b.Page()
		if len(runs) == 0 || p != lastPage {
			runs = append(runs, pageRun{})
		}
		r := &runs[len(runs)-1]
		r.blocks = append(r.blocks, b)
		r.tokens += EstimateTokens(b.Text)
		lastPage = p
	}

	var parts [][]doc.Block
	var cur []doc.Block
	curTokens := 0
	for _, r := range runs {
		if len(cur) > 0 && curTokens+r.tokens > maxTokens {
			parts = append(parts, cur)
			cur = nil
			curTokens = 0
		}
		cur = append(cur, r.blocks...)
		curTokens += r.tokens
	}
	if len(cur) > 0 {
		parts = append(parts, cur)
	}
	return parts
}
