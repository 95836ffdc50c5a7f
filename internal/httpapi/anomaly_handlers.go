package httpapi

import (
	"net/http"
	"strings"

	"mizan.org/internal/anomaly"
)

// handleAnomalies serves GET /v1/anomalies?business=...&domain=...
// With no domain it runs all four detectors concurrently.
func (a *API) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	business, start, end, err := rangeQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	domain := strings.TrimSpace(r.URL.Query().Get("domain"))
	if domain == "" {
		summary := a.detector.All(r.Context(), business, start, end)
		writeJSON(w, http.StatusOK, summary)
		return
	}

	results, ok := a.detector.ByDomain(r.Context(), anomaly.Domain(domain), business, start, end)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "domain must be one of revenue, expense, invoice, tax")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":    domain,
		"anomalies": results,
		"total":     len(results),
	})
}
