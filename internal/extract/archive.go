package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"

	"galley/internal/doc"
)

// ArchiveSource loads a span archive: the JSON dump produced by the rich
// extraction tooling. One malformed span never aborts the archive; it is
// skipped with a warning.
type ArchiveSource struct {
	Log *slog.Logger
}

// Wire format. Sizes are points; bbox follows the extractor's page
// coordinates.
type archiveFile struct {
	Title string        `json:"title"`
	Pages []archivePage `json:"pages"`
}

type archivePage struct {
	Page   int               `json:"page"`
	Spans  []archiveSpan     `json:"spans"`
	Tables []json.RawMessage `json:"tables,omitempty"`
	Images []json.RawMessage `json:"images,omitempty"`
}

type archiveSpan struct {
	Text   string    `json:"text"`
	Font   string    `json:"font,omitempty"`
	Size   float64   `json:"size"`
	Bold   bool      `json:"bold,omitempty"`
	Italic bool      `json:"italic,omitempty"`
	BBox   *doc.Rect `json:"bbox,omitempty"`
}

func (a *ArchiveSource) Extract(path string) (*doc.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read span archive: %w", err)
	}
	var af archiveFile
	if err := json.Unmarshal(data, &af); err != nil {
		return nil, fmt.Errorf("parse span archive: %w", err)
	}
	if len(af.Pages) == 0 {
		return nil, fmt.Errorf("span archive has no pages")
	}
	sort.Slice(af.Pages, func(i, j int) bool { return af.Pages[i].Page < af.Pages[j].Page })

	log := logOrDefault(a.Log)
	d := &doc.Document{Title: af.Title}
	for _, p := range af.Pages {
		page := doc.Page{Number: p.Page}
		for i, s := range p.Spans {
			if reason := archiveSpanProblem(s); reason != "" {
				log.Warn("skipping malformed span", "page", p.Page, "span", i, "reason", reason)
				continue
			}
			page.Spans = append(page.Spans, doc.Span{
				Text:   s.Text,
				Font:   s.Font,
				Size:   s.Size,
				Bold:   s.Bold,
				Italic: s.Italic,
				Page:   p.Page,
				BBox:   s.BBox,
			})
		}
		for _, raw := range p.Tables {
			page.Attachments = append(page.Attachments, doc.Attachment{Kind: "table", Page: p.Page, Data: raw})
		}
		for _, raw := range p.Images {
			page.Attachments = append(page.Attachments, doc.Attachment{Kind: "image", Page: p.Page, Data: raw})
		}
		d.Pages = append(d.Pages, page)
	}
	return d, nil
}

// archiveSpanProblem reports why a span is unusable, or "" when it is
// fine. Blank spans with a position are kept: they are block separators.
func archiveSpanProblem(s archiveSpan) string {
	if strings.TrimSpace(s.Text) == "" && s.BBox == nil {
		return "no text and no position"
	}
	if s.Size <= 0 || math.IsNaN(s.Size) {
		return "invalid font size"
	}
	return ""
}
