package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"galley/internal/config"
	"galley/internal/doc"
	"galley/internal/extract"
	"galley/internal/fidelity"
	"galley/internal/generate"
	"galley/internal/markup"
	"galley/internal/state"
	"galley/internal/structure"
)

// Worker processes a single validation job.
type Worker struct {
	store   *state.Store
	gen     generate.Generator
	profile config.Profile
	bp      *fidelity.Boilerplate
	log     *slog.Logger
	cfg     config.Config
}

func NewWorker(store *state.Store, gen generate.Generator, profile config.Profile, bp *fidelity.Boilerplate, log *slog.Logger, cfg config.Config) *Worker {
	return &Worker{
		store:   store,
		gen:     gen,
		profile: profile,
		bp:      bp,
		log:     log,
		cfg:     cfg,
	}
}

// Process runs the full validation pipeline for a job: extract the
// reference, classify it, then validate candidates against it until the
// unit passes or its retry budget runs out.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "unit", job.Unit.String())

	// Phase 1: resolve unit state.
	maxRetries := w.cfg.MaxRetries
	if override := job.MaxRetries(); override > 0 {
		maxRetries = override
	}
	unit, err := w.store.Load(job.Unit, maxRetries)
	if err != nil {
		log.Error("unit state load failed", "error", err)
		job.AddError(fmt.Sprintf("state: %s", err))
		job.SetStatus(StatusFailed, "state")
		return
	}
	if override := job.MaxRetries(); override > 0 {
		unit.MaxRetries = override
	}
	if unit.Status.Terminal() {
		log.Info("unit already terminal", "status", unit.Status)
		job.SetOutcome(&Outcome{Decision: unit.Decision()})
		job.SetStatus(StatusCompleted, "already_terminal")
		return
	}

	// Phase 2: extract reference spans.
	job.SetStatus(StatusExtracting, "extracting")
	document, err := w.extractSource(job, log)
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(fmt.Sprintf("extract: %s", err))
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	title := w.unitTitle(job, document)

	// Phase 3: classify reference structure.
	job.SetStatus(StatusClassifying, "classifying")
	spans := document.AllSpans()
	hist := structure.BuildHistogram(spans)
	ref := structure.Classify(spans, hist, structure.Options{})
	for _, warning := range ref.Warnings {
		log.Warn("classification warning", "warning", warning)
	}
	if len(ref.Blocks) == 0 {
		log.Error("no classifiable reference content", "spans", len(spans))
		job.AddError("no classifiable reference content")
		job.SetStatus(StatusFailed, "classifying")
		return
	}
	refText := ref.Text()

	// Attempt loop: validate, record, regenerate while budget remains.
	candidate := job.Candidate()
	attempts := 0
	for {
		if candidate == nil {
			job.SetStatus(StatusGenerating, "generating")
			candidate, err = w.generateCandidate(ctx, job, unit, document, ref.Blocks, title)
			if err != nil {
				// A generator hard failure says nothing about the
				// unit: no attempt is recorded and no retry budget
				// is consumed.
				log.Error("generation failed", "error", err)
				job.AddError(fmt.Sprintf("generate: %s", err))
				job.SetStatus(StatusFailed, "generating")
				return
			}
		}
		attempts++

		job.SetStatus(StatusValidating, "validating")
		eval := w.evaluate(job, ref, refText, candidate)

		job.SetStatus(StatusRecording, "recording")
		status := state.StatusFailed
		if eval.passed {
			status = state.StatusPassed
		}
		if err := unit.RecordAttempt("validate", status, eval.scores, eval.issues); err != nil {
			log.Error("record attempt failed", "error", err)
			job.AddError(fmt.Sprintf("record: %s", err))
			job.SetStatus(StatusFailed, "recording")
			return
		}
		if err := w.store.Save(unit); err != nil {
			log.Error("unit state save failed", "error", err)
			job.AddError(fmt.Sprintf("save: %s", err))
			job.SetStatus(StatusFailed, "recording")
			return
		}
		log.Info("attempt recorded",
			"attempt", len(unit.Attempts),
			"status", status,
			"issues", len(eval.issues))

		if eval.passed || !job.Generate || w.gen == nil || !unit.CanRetry() {
			job.SetOutcome(&Outcome{
				Decision:   unit.Decision(),
				Report:     eval.report,
				Duplicates: eval.dup,
				Issues:     eval.issues,
				Warnings:   ref.Warnings,
				Attempts:   attempts,
			})
			if unit.Status == state.StatusBlocked {
				job.SetStatus(StatusBlocked, "blocked")
			} else {
				job.SetStatus(StatusCompleted, "done")
			}
			return
		}

		unit.IncrementRetry()
		if err := w.store.Save(unit); err != nil {
			log.Error("unit state save failed", "error", err)
			job.AddError(fmt.Sprintf("save: %s", err))
			job.SetStatus(StatusFailed, "recording")
			return
		}
		log.Info("regenerating candidate", "retry", unit.RetryCount)
		candidate = nil
	}
}

// extractSource pulls the unit's reference document, sliced to the
// profile's chapter page range or the unit's single page.
func (w *Worker) extractSource(job *Job, log *slog.Logger) (*doc.Document, error) {
	src, err := extract.ForFile(job.SourcePath, log)
	if err != nil {
		return nil, err
	}

	if job.Unit.Page > 0 && strings.EqualFold(filepath.Ext(job.SourcePath), ".pdf") {
		if n, err := extract.PageCount(job.SourcePath); err == nil && job.Unit.Page > n {
			return nil, fmt.Errorf("page %d beyond source (%d pages)", job.Unit.Page, n)
		}
	}

	document, err := src.Extract(job.SourcePath)
	if err != nil {
		return nil, err
	}

	from, to := 0, 0
	if ch, ok := w.profile.Chapter(job.Unit.Chapter); ok && ch.Pages[0] > 0 {
		from, to = ch.Pages[0], ch.Pages[1]
	}
	if job.Unit.Page > 0 {
		if from > 0 && (job.Unit.Page < from || job.Unit.Page > to) {
			return nil, fmt.Errorf("page %d outside chapter %s range %d-%d", job.Unit.Page, job.Unit.Chapter, from, to)
		}
		from, to = job.Unit.Page, job.Unit.Page
	}
	if from > 0 {
		pages := document.PageRange(from, to)
		if len(pages) == 0 {
			return nil, fmt.Errorf("no pages in range %d-%d", from, to)
		}
		document = &doc.Document{Title: document.Title, Pages: pages}
	}
	return document, nil
}

func (w *Worker) unitTitle(job *Job, document *doc.Document) string {
	if ch, ok := w.profile.Chapter(job.Unit.Chapter); ok && ch.Title != "" {
		return ch.Title
	}
	return document.Title
}

// generateCandidate renders the unit through the external generator,
// splitting oversized units into page batches and rejoining the parts.
func (w *Worker) generateCandidate(ctx context.Context, job *Job, unit *state.Unit, document *doc.Document, blocks []doc.Block, title string) (*generate.Rendering, error) {
	if w.gen == nil {
		return nil, errors.New("no generator configured")
	}
	feedback := unit.FeedbackSummary()
	parts := generate.SplitByPages(blocks, w.cfg.GeneratorMaxTokens)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		req := generate.Request{
			Unit:         job.Unit.String(),
			ChapterID:    job.Unit.Chapter,
			Page:         job.Unit.Page,
			Title:        title,
			Format:       job.Format,
			MarkerClass:  w.profile.ChapterMarkerClass,
			Blocks:       part,
			Attachments:  partAttachments(document, part),
			Feedback:     feedback,
			Continuation: i > 0,
		}
		rendering, err := w.gen.Render(ctx, req)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, rendering.Content)
	}
	return &generate.Rendering{Format: job.Format, Content: strings.Join(pieces, "\n")}, nil
}

// partAttachments returns the attachments on the pages a batch covers.
func partAttachments(document *doc.Document, part []doc.Block) []doc.Attachment {
	pages := make(map[int]bool, len(part))
	for _, b := range part {
		pages[b.Page()] = true
	}
	var atts []doc.Attachment
	for _, a := range document.AllAttachments() {
		if pages[a.Page] {
			atts = append(atts, a)
		}
	}
	return atts
}

type evaluation struct {
	report *fidelity.Report
	dup    *fidelity.DupReport
	issues []string
	scores state.Scores
	passed bool
}

// evaluate runs every fidelity gate over one candidate rendering.
func (w *Worker) evaluate(job *Job, ref structure.Result, refText string, candidate *generate.Rendering) evaluation {
	var ev evaluation
	if ref.Flat {
		ev.issues = append(ev.issues, "reference structure is flat: no headings inferred from font sizes")
	}

	extractor, err := markup.ForFormat(candidate.Format)
	if err != nil {
		ev.issues = append(ev.issues, fmt.Sprintf("unsupported rendering format %q", candidate.Format))
		return ev
	}
	extraction, err := extractor.Extract(strings.NewReader(candidate.Content), w.profile.ChapterMarkerClass)
	if err != nil {
		ev.issues = append(ev.issues, fmt.Sprintf("candidate does not parse: %s", err))
		return ev
	}

	report := fidelity.Compare(refText, extraction.Text, w.bp)
	ev.report = &report
	if report.Verdict == fidelity.VerdictRejected {
		ev.issues = append(ev.issues, fmt.Sprintf("candidate carries %d words not in the source", len(report.ExtraWords)))
	}
	if report.Verdict == fidelity.VerdictFailed {
		ev.issues = append(ev.issues, fmt.Sprintf("text coverage %.1f%% below acceptable", report.Coverage))
	}
	if len(report.MissingContent) > 0 {
		ev.issues = append(ev.issues, fmt.Sprintf("missing content: %s", strings.Join(sampleWords(report.MissingContent, 8), ", ")))
	}

	dup := fidelity.DetectDuplicates(extraction.Blocks, w.profile.MinDuplicateLen)
	ev.dup = &dup
	for _, d := range dup.Duplicates {
		ev.issues = append(ev.issues, fmt.Sprintf("duplicated %s at positions %v: %q", d.Kind, d.Positions, d.Preview))
	}

	markerOK := true
	if extraction.Structured && job.Unit.Page == 0 {
		if issue := fidelity.MarkerCountIssue(extraction.MarkerCount); issue != "" {
			ev.issues = append(ev.issues, issue)
			markerOK = false
		}
	}

	ev.scores.TextCoverage = state.Float(report.Coverage)
	if extraction.Structured {
		ev.scores.StructureScore = state.Float(structureGateScore(ref, extraction, markerOK, len(dup.Duplicates)))
	}
	if vs := job.VisualScore(); vs != nil {
		ev.scores.VisualScore = vs
	}
	ev.passed = report.Valid && len(dup.Duplicates) == 0 && markerOK
	return ev
}

// structureGateScore grades block-level structure, 25 points per gate.
func structureGateScore(ref structure.Result, ext *markup.Extraction, markerOK bool, dupCount int) float64 {
	score := 100.0
	if len(ext.Blocks) == 0 {
		score -= 25
	}
	if hasHeading(ref.Blocks) && !hasHeading(ext.Blocks) {
		score -= 25
	}
	if !markerOK {
		score -= 25
	}
	if dupCount > 0 {
		score -= 25
	}
	if score < 0 {
		score = 0
	}
	return score
}

func hasHeading(blocks []doc.Block) bool {
	for _, b := range blocks {
		if b.IsHeading() {
			return true
		}
	}
	return false
}

func sampleWords(words []string, n int) []string {
	if len(words) <= n {
		return words
	}
	return words[:n]
}
