package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"galley/internal/extract"
	"galley/internal/markup"
	"galley/internal/pipeline"
	"galley/internal/state"
)

type validateRequest struct {
	ChapterID  string `json:"chapter_id"`
	Page       int    `json:"page,omitempty"`
	SourcePath string `json:"source_path"`
	Format     string `json:"format,omitempty"`
	Generate   bool   `json:"generate,omitempty"`
	MaxRetries int    `json:"max_retries,omitempty"`
	Candidate  *struct {
		Format  string `json:"format"`
		Content string `json:"content"`
	} `json:"candidate,omitempty"`
	VisualScore *float64 `json:"visual_score,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.ChapterID == "" {
		jsonError(w, "chapter_id is required", http.StatusBadRequest)
		return
	}
	if req.Page < 0 {
		jsonError(w, "page must be positive", http.StatusBadRequest)
		return
	}
	if req.SourcePath == "" {
		jsonError(w, "source_path is required", http.StatusBadRequest)
		return
	}
	if !extract.IsSupportedExtension(req.SourcePath) {
		jsonError(w, fmt.Sprintf("unsupported source format: %s", filepath.Ext(req.SourcePath)), http.StatusBadRequest)
		return
	}
	if req.Candidate == nil && !req.Generate {
		jsonError(w, "either candidate or generate:true is required", http.StatusBadRequest)
		return
	}
	if req.Generate && !s.orchestrator.HasGenerator() {
		jsonError(w, "no rendering generator is configured", http.StatusServiceUnavailable)
		return
	}

	format := req.Format
	if req.Candidate != nil {
		format = req.Candidate.Format
	}
	if format == "" {
		format = "html"
	}
	if !markup.IsSupportedFormat(format) {
		jsonError(w, fmt.Sprintf("unsupported rendering format: %s", format), http.StatusBadRequest)
		return
	}

	unit := state.Key{Chapter: req.ChapterID, Page: req.Page}
	job := pipeline.NewJob(unit, req.SourcePath, format, req.Generate)
	if req.Candidate != nil {
		job.SetCandidate(req.Candidate.Format, req.Candidate.Content)
	}
	if req.MaxRetries > 0 {
		job.SetMaxRetries(req.MaxRetries)
	}
	if req.VisualScore != nil {
		job.SetVisualScore(*req.VisualScore)
	}

	if err := s.orchestrator.Submit(job); err != nil {
		code := http.StatusServiceUnavailable
		if pipeline.IsUnitBusy(err) {
			code = http.StatusConflict
		}
		jsonError(w, err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"unit":     unit.String(),
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}
