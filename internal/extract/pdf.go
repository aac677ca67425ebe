package extract

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"galley/internal/doc"
)

const (
	// wordGapRatio: horizontal gaps wider than this fraction of the font
	// size separate words within a row.
	wordGapRatio = 0.2
	// paragraphGapRatio: vertical gaps taller than this multiple of the
	// font size separate paragraphs; a blank span is emitted between them.
	paragraphGapRatio = 1.8
)

// PDFSource extracts positioned spans from PDF pages. pdfcpu validates
// the file up front so corrupt documents fail fast; ledongthuc/pdf
// supplies per-row positioned text with fonts and sizes.
type PDFSource struct {
	Log *slog.Logger
}

func (p *PDFSource) Extract(path string) (*doc.Document, error) {
	if err := preflight(path); err != nil {
		return nil, err
	}

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	log := logOrDefault(p.Log)
	d := &doc.Document{
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			log.Warn("skipping null pdf page", "page", i)
			continue
		}
		spans, err := pageSpans(page, i)
		if err != nil {
			log.Warn("page extraction failed", "page", i, "error", err)
			continue
		}
		d.Pages = append(d.Pages, doc.Page{Number: i, Spans: spans})
	}
	if len(d.Pages) == 0 {
		return nil, fmt.Errorf("no extractable pages in %s", filepath.Base(path))
	}
	return d, nil
}

// preflight validates the document before extraction.
func preflight(path string) error {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("pdf preflight: %w", err)
	}
	return nil
}

// PageCount reports the page count without a full extraction pass.
func PageCount(path string) (int, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return ctx.PageCount, nil
}

// pageSpans converts one page into spans in reading order. Rows are
// ordered top-down (PDF Y grows upward, so larger Y comes first) and
// split into style runs; a blank separator span marks paragraph-sized
// vertical gaps between rows.
func pageSpans(page pdflib.Page, number int) ([]doc.Span, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("read text rows: %w", err)
	}

	sorted := make([]*pdflib.Row, 0, len(rows))
	for _, row := range rows {
		if row != nil && len(row.Content) > 0 {
			sorted = append(sorted, row)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return averageY(sorted[i].Content) > averageY(sorted[j].Content)
	})

	var spans []doc.Span
	prevY := 0.0
	havePrev := false
	for _, row := range sorted {
		runs := rowRuns(row.Content)
		if len(runs) == 0 {
			continue
		}
		y := averageY(row.Content)
		if havePrev {
			if gap := prevY - y; gap > runs[0].Size*paragraphGapRatio {
				spans = append(spans, doc.Span{
					Text: "",
					Size: runs[0].Size,
					Page: number,
					BBox: &doc.Rect{X0: runs[0].BBox.X0, Y0: y, X1: runs[0].BBox.X1, Y1: prevY},
				})
			}
		}
		for i := range runs {
			runs[i].Page = number
		}
		spans = append(spans, runs...)
		prevY, havePrev = y, true
	}
	return spans, nil
}

// rowRuns folds a row's raw text elements into style runs: consecutive
// elements sharing font and size merge into one span, with a space
// inserted when the horizontal gap is wide enough to separate words.
func rowRuns(content []pdflib.Text) []doc.Span {
	els := make([]pdflib.Text, len(content))
	copy(els, content)
	sort.Slice(els, func(i, j int) bool { return els[i].X < els[j].X })

	var runs []doc.Span
	var cur *doc.Span
	curEnd := 0.0

	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Text) != "" {
			runs = append(runs, *cur)
		}
		cur = nil
	}

	for _, el := range els {
		if el.S == "" {
			continue
		}
		if cur == nil || cur.Font != el.Font || cur.Size != el.FontSize {
			flush()
			bold, italic := fontFlags(el.Font)
			cur = &doc.Span{
				Text:   el.S,
				Font:   el.Font,
				Size:   el.FontSize,
				Bold:   bold,
				Italic: italic,
				BBox:   &doc.Rect{X0: el.X, Y0: el.Y, X1: el.X + el.W, Y1: el.Y + el.FontSize},
			}
			curEnd = el.X + el.W
			continue
		}
		fontSize := el.FontSize
		if fontSize <= 0 {
			fontSize = 12
		}
		if el.X-curEnd > fontSize*wordGapRatio {
			cur.Text += " "
		}
		cur.Text += el.S
		curEnd = el.X + el.W
		cur.BBox.X1 = curEnd
	}
	flush()
	return runs
}

func averageY(content []pdflib.Text) float64 {
	if len(content) == 0 {
		return 0
	}
	sum := 0.0
	for _, el := range content {
		sum += el.Y
	}
	return sum / float64(len(content))
}

// fontFlags infers weight and slant from a PDF font name, e.g.
// "Times-BoldItalic" or "Helvetica-Oblique".
func fontFlags(font string) (bold, italic bool) {
	f := strings.ToLower(font)
	bold = strings.Contains(f, "bold") || strings.Contains(f, "black") || strings.Contains(f, "heavy")
	italic = strings.Contains(f, "italic") || strings.Contains(f, "oblique")
	return bold, italic
}
