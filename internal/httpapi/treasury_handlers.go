package httpapi

import (
	"net/http"
	"strings"
)

type computePeriodRequest struct {
	Business string `json:"business" validate:"required"`
	Start    string `json:"start" validate:"required"`
	End      string `json:"end" validate:"required"`
}

type recomputeRequest struct {
	Business string `json:"business" validate:"required"`
	From     string `json:"from" validate:"required"`
}

func (a *API) handlePeriodsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.computePeriod(w, r)
	case http.MethodGet:
		a.listPeriods(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePeriodResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/treasury/periods/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getPeriod(w, r, id)
	case http.MethodDelete:
		a.deletePeriod(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) computePeriod(w http.ResponseWriter, r *http.Request) {
	var req computePeriodRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	start, err := parseDate(req.Start)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := parseDate(req.End)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, r, http.StatusBadRequest, "end must not precede start")
		return
	}

	p, err := a.rollup.ComputePeriod(r.Context(), strings.TrimSpace(req.Business), start, end)
	if err != nil {
		handleTreasuryError(w, r, err)
		return
	}

	a.audit(r.Context(), "treasury_period.computed", "period", p.ID, map[string]any{
		"business": p.Business,
		"start":    req.Start,
		"end":      req.End,
	})

	w.Header().Set("Location", "/v1/treasury/periods/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req recomputeRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseDate(req.From)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}

	periods, err := a.rollup.RecomputeFrom(r.Context(), strings.TrimSpace(req.Business), from)
	if err != nil {
		handleTreasuryError(w, r, err)
		return
	}

	a.audit(r.Context(), "treasury.recomputed", "business", req.Business, map[string]any{
		"from":    req.From,
		"periods": len(periods),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"recomputed": periods,
		"total":      len(periods),
	})
}

func (a *API) listPeriods(w http.ResponseWriter, r *http.Request) {
	business := strings.TrimSpace(r.URL.Query().Get("business"))
	if business == "" {
		writeError(w, r, http.StatusBadRequest, "business query parameter is required")
		return
	}
	periods, err := a.periods.ListByBusiness(r.Context(), business)
	if err != nil {
		handleTreasuryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": periods,
		"total": len(periods),
	})
}

func (a *API) getPeriod(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.periods.Get(r.Context(), id)
	if err != nil {
		handleTreasuryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deletePeriod(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.periods.Delete(r.Context(), id); err != nil {
		handleTreasuryError(w, r, err)
		return
	}
	a.audit(r.Context(), "treasury_period.deleted", "period", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
