package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"mizan.org/internal/ledger"
)

type postingPayload struct {
	AccountNumber string  `json:"account_number" validate:"required,min=1,max=5"`
	AccountName   string  `json:"account_name" validate:"required"`
	Debit         float64 `json:"debit" validate:"gte=0"`
	Credit        float64 `json:"credit" validate:"gte=0"`
	Description   string  `json:"description"`
}

type entryRequest struct {
	Business    string           `json:"business" validate:"required"`
	Date        string           `json:"date"`
	Description string           `json:"description"`
	Postings    []postingPayload `json:"postings" validate:"required,min=1,dive"`
	Reference   *struct {
		Kind       string `json:"kind" validate:"omitempty,oneof=INVOICE PURCHASE MANUAL DAILY_REVENUE OTHER"`
		DocumentID string `json:"document_id"`
	} `json:"reference"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT POSTED VERIFIED"`
}

func (r entryRequest) toEntry() (ledger.Entry, error) {
	e := ledger.Entry{
		Business:    strings.TrimSpace(r.Business),
		Description: strings.TrimSpace(r.Description),
	}
	if r.Date != "" {
		d, err := parseDate(r.Date)
		if err != nil {
			return ledger.Entry{}, err
		}
		e.Date = d
	}
	for _, p := range r.Postings {
		t, _ := ledger.AccountTypeFor(p.AccountNumber)
		e.Postings = append(e.Postings, ledger.Posting{
			AccountNumber: p.AccountNumber,
			AccountName:   p.AccountName,
			AccountType:   t,
			Debit:         p.Debit,
			Credit:        p.Credit,
			Description:   p.Description,
		})
	}
	if r.Reference != nil {
		e.Reference = ledger.Reference{
			Kind:       ledger.ReferenceKind(r.Reference.Kind),
			DocumentID: r.Reference.DocumentID,
		}
	}
	return e, nil
}

func (a *API) handleEntriesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createEntry(w, r)
	case http.MethodGet:
		a.listEntries(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleEntryResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/journal-entries/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, ok := strings.CutSuffix(path, "/status"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.transitionEntry(w, r, strings.TrimSuffix(id, "/"))
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getEntry(w, r, path)
	case http.MethodPut:
		a.updateEntry(w, r, path)
	case http.MethodDelete:
		a.deleteEntry(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	e, err := req.toEntry()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	created, err := a.journal.CreateEntry(r.Context(), e)
	if err != nil {
		handleJournalError(w, r, err)
		return
	}

	a.audit(r.Context(), "journal_entry.created", "entry", created.ID, map[string]any{
		"piece_number": created.PieceNumber,
		"business":     created.Business,
	})

	w.Header().Set("Location", "/v1/journal-entries/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) getEntry(w http.ResponseWriter, r *http.Request, id string) {
	e, err := a.journal.GetEntry(r.Context(), id)
	if err != nil {
		handleJournalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) updateEntry(w http.ResponseWriter, r *http.Request, id string) {
	var req entryRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	e, err := req.toEntry()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	e.ID = id

	updated, err := a.journal.UpdateEntry(r.Context(), e)
	if err != nil {
		handleJournalError(w, r, err)
		return
	}

	a.audit(r.Context(), "journal_entry.updated", "entry", updated.ID, map[string]any{
		"piece_number": updated.PieceNumber,
	})
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deleteEntry(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.journal.DeleteEntry(r.Context(), id); err != nil {
		handleJournalError(w, r, err)
		return
	}
	a.audit(r.Context(), "journal_entry.deleted", "entry", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) transitionEntry(w http.ResponseWriter, r *http.Request, id string) {
	var req transitionRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	moved, err := a.journal.TransitionEntry(r.Context(), id, ledger.Status(req.Status))
	if err != nil {
		handleJournalError(w, r, err)
		return
	}

	a.audit(r.Context(), "journal_entry.transitioned", "entry", moved.ID, map[string]any{
		"piece_number": moved.PieceNumber,
		"status":       string(moved.Status),
	})
	writeJSON(w, http.StatusOK, moved)
}

func (a *API) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.ListFilter{
		Business: strings.TrimSpace(q.Get("business")),
		Search:   strings.TrimSpace(q.Get("search")),
		Status:   ledger.Status(strings.TrimSpace(q.Get("status"))),
	}
	if raw := q.Get("start"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		f.StartDate = d
	}
	if raw := q.Get("end"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
		f.EndDate = d.Add(24*time.Hour - time.Millisecond)
	}
	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, r, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		f.Page = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		f.Limit = v
	}

	res, err := a.journal.ListEntries(r.Context(), f)
	if err != nil {
		handleJournalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
