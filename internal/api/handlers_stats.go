package api

import (
	"encoding/json"
	"net/http"

	"galley/internal/state"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	units, err := s.store.List()
	if err != nil {
		jsonError(w, "failed to list units: "+err.Error(), http.StatusInternalServerError)
		return
	}

	counts := map[state.Status]int{}
	var covered int
	var covSum, covMin, covMax float64
	for _, u := range units {
		counts[u.Status]++
		if c := u.Scores.TextCoverage; c != nil {
			if covered == 0 || *c < covMin {
				covMin = *c
			}
			if covered == 0 || *c > covMax {
				covMax = *c
			}
			covSum += *c
			covered++
		}
	}

	coverage := map[string]any{"measured_units": covered}
	if covered > 0 {
		coverage["avg"] = covSum / float64(covered)
		coverage["min"] = covMin
		coverage["max"] = covMax
	}

	resp := map[string]any{
		"units": map[string]any{
			"total":   len(units),
			"new":     counts[state.StatusNew],
			"passed":  counts[state.StatusPassed],
			"failed":  counts[state.StatusFailed],
			"blocked": counts[state.StatusBlocked],
		},
		"coverage":    coverage,
		"queue_depth": s.orchestrator.QueueDepth(),
	}
	if gs := s.orchestrator.GeneratorStats(); gs != nil {
		resp["generator"] = gs
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
