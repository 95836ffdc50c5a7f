package httpapi

import (
	"net/http"
	"strings"
	"time"

	"mizan.org/internal/anomaly"
	"mizan.org/internal/books"
	"mizan.org/internal/ledger"
	"mizan.org/internal/obs"
)

type revenueRequest struct {
	Business string `json:"business" validate:"required"`
	Date     string `json:"date" validate:"required"`

	Cash struct {
		Sales   float64 `json:"sales" validate:"gte=0"`
		Returns float64 `json:"returns" validate:"gte=0"`
	} `json:"cash"`
	Card struct {
		Sales   float64 `json:"sales" validate:"gte=0"`
		Returns float64 `json:"returns" validate:"gte=0"`
	} `json:"card"`

	OtherRevenue []struct {
		Type   string  `json:"type" validate:"required"`
		Amount float64 `json:"amount"`
	} `json:"other_revenue" validate:"omitempty,dive"`

	PettyExpenses float64 `json:"petty_expenses" validate:"gte=0"`
	OtherExpenses []struct {
		Description string  `json:"description" validate:"required"`
		Amount      float64 `json:"amount" validate:"gte=0"`
	} `json:"other_expenses" validate:"omitempty,dive"`

	Notes            string `json:"notes"`
	AutoJournalEntry bool   `json:"auto_journal_entry"`
}

// revenueResponse carries the stored record plus the advisory by-products of
// the write: the generated journal entry and the anomaly verdict.
type revenueResponse struct {
	Record       books.DailyRevenue `json:"record"`
	JournalEntry *ledger.Entry      `json:"journal_entry,omitempty"`
	Anomaly      *anomaly.Result    `json:"anomaly,omitempty"`
}

func (r revenueRequest) toRecord() (books.DailyRevenue, error) {
	d, err := parseDate(r.Date)
	if err != nil {
		return books.DailyRevenue{}, err
	}
	rec := books.DailyRevenue{
		Business:         strings.TrimSpace(r.Business),
		Date:             d,
		Cash:             books.CashRevenue{Sales: r.Cash.Sales, Returns: r.Cash.Returns},
		Card:             books.CardRevenue{Sales: r.Card.Sales, Returns: r.Card.Returns},
		PettyExpenses:    r.PettyExpenses,
		Notes:            r.Notes,
		AutoJournalEntry: r.AutoJournalEntry,
	}
	for _, item := range r.OtherRevenue {
		rec.OtherRevenue = append(rec.OtherRevenue, books.RevenueItem{Type: item.Type, Amount: item.Amount})
	}
	for _, item := range r.OtherExpenses {
		rec.OtherExpenses = append(rec.OtherExpenses, books.ExpenseItem{Description: item.Description, Amount: item.Amount})
	}
	return rec, nil
}

func (a *API) handleRevenuesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createRevenue(w, r)
	case http.MethodGet:
		a.listRevenues(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRevenueResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/revenues/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, ok := strings.CutSuffix(path, "/status"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.transitionRevenue(w, r, strings.TrimSuffix(id, "/"))
		return
	}
	if id, ok := strings.CutSuffix(path, "/anomaly"); ok {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.checkRevenue(w, r, strings.TrimSuffix(id, "/"))
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getRevenue(w, r, path)
	case http.MethodPut:
		a.updateRevenue(w, r, path)
	case http.MethodDelete:
		a.deleteRevenue(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) createRevenue(w http.ResponseWriter, r *http.Request) {
	var req revenueRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := req.toRecord()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	created, err := a.records.CreateDailyRevenue(r.Context(), rec)
	if err != nil {
		handleBooksError(w, r, err)
		return
	}

	resp := revenueResponse{Record: created}

	if created.AutoJournalEntry {
		if entry := a.autoJournal(r, &created); entry != nil {
			resp.JournalEntry = entry
			resp.Record = created
		}
	}

	// advisory; a flagged day is stored regardless
	if res, ok := a.detector.SingleRevenue(r.Context(), created.ID); ok {
		resp.Anomaly = &res
	}

	a.audit(r.Context(), "daily_revenue.created", "record", created.ID, map[string]any{
		"business": created.Business,
		"date":     created.Date.Format(dateLayout),
	})

	w.Header().Set("Location", "/v1/revenues/"+created.ID)
	writeJSON(w, http.StatusCreated, resp)
}

// autoJournal generates and stores the double-entry counterpart of a daily
// revenue record, then links it back. A day whose every side nets to zero
// produces no entry, and a generation failure never rolls back the stored
// record.
func (a *API) autoJournal(r *http.Request, rec *books.DailyRevenue) *ledger.Entry {
	e := ledger.FromDailyRevenue(*rec, time.Now().UTC())
	if len(e.Postings) == 0 {
		return nil
	}
	created, err := a.journal.CreateEntry(r.Context(), e)
	if err != nil {
		obs.Warn("httpapi", "auto journal generation failed", err, map[string]any{
			"record_id": rec.ID,
		})
		return nil
	}

	rec.JournalEntryID = created.ID
	linked, err := a.records.UpdateDailyRevenue(r.Context(), *rec)
	if err == nil {
		*rec = linked
	}

	a.audit(r.Context(), "journal_entry.autogenerated", "entry", created.ID, map[string]any{
		"piece_number": created.PieceNumber,
		"record_id":    rec.ID,
	})
	return &created
}

func (a *API) getRevenue(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := a.records.GetDailyRevenue(r.Context(), id)
	if err != nil {
		handleBooksError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) updateRevenue(w http.ResponseWriter, r *http.Request, id string) {
	var req revenueRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := req.toRecord()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	rec.ID = id

	updated, err := a.records.UpdateDailyRevenue(r.Context(), rec)
	if err != nil {
		handleBooksError(w, r, err)
		return
	}

	a.audit(r.Context(), "daily_revenue.updated", "record", updated.ID, map[string]any{
		"business": updated.Business,
	})
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deleteRevenue(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.records.DeleteDailyRevenue(r.Context(), id); err != nil {
		handleBooksError(w, r, err)
		return
	}
	a.audit(r.Context(), "daily_revenue.deleted", "record", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) transitionRevenue(w http.ResponseWriter, r *http.Request, id string) {
	var req transitionRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	moved, err := a.records.TransitionDailyRevenue(r.Context(), id, books.Status(req.Status))
	if err != nil {
		handleBooksError(w, r, err)
		return
	}

	a.audit(r.Context(), "daily_revenue.transitioned", "record", moved.ID, map[string]any{
		"status": string(moved.Status),
	})
	writeJSON(w, http.StatusOK, moved)
}

func (a *API) checkRevenue(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.records.GetDailyRevenue(r.Context(), id); err != nil {
		handleBooksError(w, r, err)
		return
	}
	res, ok := a.detector.SingleRevenue(r.Context(), id)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "anomaly check unavailable")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) listRevenues(w http.ResponseWriter, r *http.Request) {
	business := strings.TrimSpace(r.URL.Query().Get("business"))
	if business == "" {
		writeError(w, r, http.StatusBadRequest, "business query parameter is required")
		return
	}
	recs, err := a.records.ListDailyRevenues(r.Context(), business)
	if err != nil {
		handleBooksError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": recs,
		"total": len(recs),
	})
}
