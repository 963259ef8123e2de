package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ethpandaops/flakeguard/pkg/quarantine"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth is a liveness check.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFlaky returns the full detection output, sorted by estimated
// cost descending. Statistics are recomputed on every request.
func (s *server) handleFlaky(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Detect(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"detecting: " + err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"generated": time.Now().Unix(),
		"tests":     stats,
	})
}

// handleStats returns the ingestion and detection summary.
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"computing stats: " + err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleTrends returns per-test failure trends over the configured
// window.
func (s *server) handleTrends(w http.ResponseWriter, r *http.Request) {
	trends, err := s.engine.Trends(r.Context(), time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"computing trends: " + err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"trends": trends})
}

// handleQuarantine returns the ordered quarantine decision. The
// configured policy floors can be tightened per request via the
// min_flip_rate and min_cost_usd query parameters.
func (s *server) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	policy := quarantine.Policy{
		MinFlipRate: s.cfg.Quarantine.MinFlipRate,
		MinCostUSD:  s.cfg.Quarantine.MinCostUSD,
	}

	if v := r.URL.Query().Get("min_flip_rate"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 || rate > 1 {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"min_flip_rate must be a number in [0, 1]"})

			return
		}

		policy.MinFlipRate = rate
	}

	if v := r.URL.Query().Get("min_cost_usd"); v != "" {
		cost, err := strconv.ParseFloat(v, 64)
		if err != nil || cost < 0 {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"min_cost_usd must be a non-negative number"})

			return
		}

		policy.MinCostUSD = cost
	}

	ids, err := s.engine.Quarantine(r.Context(), policy)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"selecting quarantine: " + err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"quarantined": ids})
}
