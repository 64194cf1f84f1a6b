package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taoeli/maxlink/internal/domain"
	"github.com/taoeli/maxlink/pkg/formulas"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus returns simulation progress and process stats
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	process := map[string]interface{}{
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  float64(mem.HeapAlloc) / 1024 / 1024,
		"total_alloc_mb": float64(mem.TotalAlloc) / 1024 / 1024,
		"num_gc":         mem.NumGC,
	}
	if s.history != nil {
		process["pending_samples"] = s.history.Pending()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"simulation": s.sim.Status(),
		"process":    process,
	})
}

// handleListMolecules lists the molecule IDs attached to the simulation
func (s *Server) handleListMolecules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"molecules": s.sim.MoleculeIDs(),
	})
}

// handleMolecule returns the most recent committed diagnostics for one molecule
func (s *Server) handleMolecule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid molecule ID")
		return
	}

	diag := s.sim.LatestDiagnostics(id)
	if diag == nil {
		// Nothing committed in memory yet; fall back to the last
		// persisted record of the most recent run.
		var step int64
		diag, step = s.storedDiagnostics(id)
		if diag == nil {
			writeError(w, http.StatusNotFound, "No diagnostics for molecule")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"molecule_id": id,
			"step":        step,
			"diagnostics": diag,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"molecule_id": id,
		"diagnostics": diag,
	})
}

// storedDiagnostics loads the latest persisted diagnostics of the most
// recent run, for servers answering before (or without) a live tick loop.
func (s *Server) storedDiagnostics(moleculeID int) (domain.Diagnostics, int64) {
	if s.runs == nil || s.diags == nil {
		return nil, 0
	}
	run, err := s.runs.Latest()
	if err != nil || run == nil {
		return nil, 0
	}
	diag, step, err := s.diags.Latest(run.ID, moleculeID)
	if err != nil || len(diag) == 0 {
		return nil, 0
	}
	return diag, step
}

// handleMoleculeTrajectory returns recent trajectory samples for one molecule
func (s *Server) handleMoleculeTrajectory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid molecule ID")
		return
	}

	if s.history == nil {
		writeError(w, http.StatusNotFound, "Trajectory history not configured")
		return
	}

	limit := 500
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	samples, err := s.history.GetSamples(id, limit)
	if err != nil {
		s.log.Error().Err(err).Int("molecule_id", id).Msg("Failed to load trajectory")
		writeError(w, http.StatusInternalServerError, "Failed to load trajectory")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"molecule_id": id,
		"samples":     samples,
	})
}

// handleLatestRun returns the most recently started run
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "Run recording not configured")
		return
	}

	run, err := s.runs.Latest()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load latest run")
		writeError(w, http.StatusInternalServerError, "Failed to load latest run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "No runs recorded")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// summaryNames are the diagnostics aggregated by the run summary endpoint.
var summaryNames = []string{"energy_tot_au", "Pe", "amp_z", "trace_dev", "herm_dev"}

// handleRunSummary aggregates recorded diagnostics over a whole run
func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil || s.diags == nil {
		writeError(w, http.StatusNotFound, "Run recording not configured")
		return
	}

	runID := chi.URLParam(r, "id")

	run, err := s.runs.Get(runID)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load run")
		writeError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}

	summary := make(map[string]interface{})
	for _, moleculeID := range s.sim.MoleculeIDs() {
		perName := make(map[string]interface{})
		for _, name := range summaryNames {
			series, err := s.diags.Series(runID, moleculeID, name)
			if err != nil {
				s.log.Error().Err(err).Str("name", name).Msg("Failed to load series")
				continue
			}
			if len(series) == 0 {
				continue
			}
			min, max := formulas.MinMax(series)
			perName[name] = map[string]interface{}{
				"samples": len(series),
				"mean":    formulas.Mean(series),
				"std_dev": formulas.StdDev(series),
				"min":     min,
				"max":     max,
				"max_abs": formulas.MaxAbs(series),
			}
		}
		summary[strconv.Itoa(moleculeID)] = perName
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":       run,
		"molecules": summary,
	})
}
