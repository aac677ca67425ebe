package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"galley/internal/state"
)

// unitSummary is one row in the unit listing.
type unitSummary struct {
	Unit         string       `json:"unit"`
	Status       state.Status `json:"status"`
	RetryCount   int          `json:"retry_count"`
	MaxRetries   int          `json:"max_retries"`
	CanRetry     bool         `json:"can_retry"`
	Attempts     int          `json:"attempts"`
	TextCoverage *float64     `json:"text_coverage,omitempty"`
	UpdatedAt    string       `json:"updated_at"`
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.store.List()
	if err != nil {
		jsonError(w, "failed to list units: "+err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]unitSummary, 0, len(units))
	for _, u := range units {
		summaries = append(summaries, unitSummary{
			Unit:         u.Key.String(),
			Status:       u.Status,
			RetryCount:   u.RetryCount,
			MaxRetries:   u.MaxRetries,
			CanRetry:     u.CanRetry(),
			Attempts:     len(u.Attempts),
			TextCoverage: u.Scores.TextCoverage,
			UpdatedAt:    u.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"units": summaries})
}

// handleGetUnit returns one unit's full persisted state plus its retry
// decision. A unit that has never been validated reports the New state:
// units exist on first access by definition.
func (s *Server) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	key, err := unitKey(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	unit, err := s.store.Load(key, s.cfg.MaxRetries)
	if err != nil {
		jsonError(w, "failed to load unit: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"state":    unit,
		"decision": unit.Decision(),
	})
}

func (s *Server) handleUnitAttemptsCSV(w http.ResponseWriter, r *http.Request) {
	key, err := unitKey(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	unit, err := s.store.Load(key, s.cfg.MaxRetries)
	if err != nil {
		jsonError(w, "failed to load unit: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key.String()+"-attempts.csv"))
	if err := state.WriteAttemptsCSV(w, unit); err != nil {
		s.log.Error("attempts csv write failed", "unit", key.String(), "error", err)
	}
}

// handleResetUnit clears a unit's attempt history for deliberate
// reprocessing. Refused while the unit has a job in flight.
func (s *Server) handleResetUnit(w http.ResponseWriter, r *http.Request) {
	key, err := unitKey(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.orchestrator.Busy(key) {
		jsonError(w, "unit has a job in flight", http.StatusConflict)
		return
	}

	unit, err := s.store.Load(key, s.cfg.MaxRetries)
	if err != nil {
		jsonError(w, "failed to load unit: "+err.Error(), http.StatusInternalServerError)
		return
	}
	unit.Reset()
	if err := s.store.Save(unit); err != nil {
		jsonError(w, "failed to save unit: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("unit reset", "unit", key.String())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"decision": unit.Decision()})
}

// handleBlockUnit force-blocks a unit so nothing retries it until an
// operator resets it (e.g. a source document known to be beyond the
// generator). Passed units cannot be blocked.
func (s *Server) handleBlockUnit(w http.ResponseWriter, r *http.Request) {
	key, err := unitKey(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.orchestrator.Busy(key) {
		jsonError(w, "unit has a job in flight", http.StatusConflict)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Reason == "" {
		jsonError(w, "reason is required", http.StatusBadRequest)
		return
	}

	unit, err := s.store.Load(key, s.cfg.MaxRetries)
	if err != nil {
		jsonError(w, "failed to load unit: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if unit.Status == state.StatusPassed {
		jsonError(w, "unit already passed", http.StatusConflict)
		return
	}
	unit.MarkBlocked(body.Reason)
	if err := s.store.Save(unit); err != nil {
		jsonError(w, "failed to save unit: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("unit blocked by operator", "unit", key.String(), "reason", body.Reason)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"decision": unit.Decision()})
}

// unitKey builds the unit key from the chapter path segment and the
// optional page query parameter.
func unitKey(r *http.Request) (state.Key, error) {
	chapter := chi.URLParam(r, "chapterID")
	if chapter == "" {
		return state.Key{}, fmt.Errorf("chapter id is required")
	}
	key := state.Key{Chapter: chapter}
	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return state.Key{}, fmt.Errorf("page must be a positive integer")
		}
		key.Page = page
	}
	return key, nil
}
