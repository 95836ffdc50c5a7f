// Package httpapi is the HTTP surface of the engine: journal entries, daily
// books records, anomaly reports and treasury periods.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"mizan.org/api/spec"
	"mizan.org/internal/anomaly"
	"mizan.org/internal/audit"
	"mizan.org/internal/books"
	"mizan.org/internal/ledger"
	"mizan.org/internal/obs"
	"mizan.org/internal/treasury"
)

const dateLayout = "2006-01-02"

// ReadyProbe reports readiness, e.g. by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps wires the API to the engine's services.
type Deps struct {
	Journal  ledger.Service
	Records  books.Service
	Detector *anomaly.Detector
	Rollup   *treasury.Rollup
	Periods  treasury.Store

	ReadyProbe ReadyProbe
	RateBurst  int
	RatePerSec int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	journal  ledger.Service
	records  books.Service
	detector *anomaly.Detector
	rollup   *treasury.Rollup
	periods  treasury.Store

	validate   *validator.Validate
	rateBurst  int
	ratePerSec int
}

func New(d Deps, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: d.ReadyProbe,
		version:    version,
		journal:    d.Journal,
		records:    d.Records,
		detector:   d.Detector,
		rollup:     d.Rollup,
		periods:    d.Periods,
		validate:   validator.New(),
		rateBurst:  d.RateBurst,
		ratePerSec: d.RatePerSec,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/journal-entries", a.handleEntriesCollection)
	a.mux.HandleFunc("/v1/journal-entries/", a.handleEntryResource)

	a.mux.HandleFunc("/v1/revenues", a.handleRevenuesCollection)
	a.mux.HandleFunc("/v1/revenues/", a.handleRevenueResource)

	a.mux.HandleFunc("/v1/expenses", a.handleExpenses)
	a.mux.HandleFunc("/v1/invoices", a.handleInvoices)
	a.mux.HandleFunc("/v1/tax-reports", a.handleTaxReports)
	a.mux.HandleFunc("/v1/payrolls", a.handlePayrolls)

	a.mux.HandleFunc("/v1/anomalies", a.handleAnomalies)

	a.mux.HandleFunc("/v1/treasury/periods", a.handlePeriodsCollection)
	a.mux.HandleFunc("/v1/treasury/periods/", a.handlePeriodResource)
	a.mux.HandleFunc("/v1/treasury/recompute", a.handleRecompute)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mizan-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "mizan-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

func (a *API) audit(ctx context.Context, event, kind, id string, fields map[string]any) {
	merged := map[string]any{kind + "_id": id}
	for k, v := range fields {
		merged[k] = v
	}
	_ = audit.LogEvent(ctx, event, merged)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func (a *API) decodeValid(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	return a.validate.Struct(dst)
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(raw))
}

// rangeQuery reads business, start and end query parameters. A missing range
// defaults to the trailing 90 days.
func rangeQuery(r *http.Request) (business string, start, end time.Time, err error) {
	q := r.URL.Query()
	business = strings.TrimSpace(q.Get("business"))
	if business == "" {
		return "", time.Time{}, time.Time{}, errors.New("business query parameter is required")
	}
	now := time.Now().UTC()
	start = now.AddDate(0, 0, -90)
	end = now
	if raw := q.Get("start"); raw != "" {
		if start, err = parseDate(raw); err != nil {
			return "", time.Time{}, time.Time{}, errors.New("start must be YYYY-MM-DD")
		}
	}
	if raw := q.Get("end"); raw != "" {
		if end, err = parseDate(raw); err != nil {
			return "", time.Time{}, time.Time{}, errors.New("end must be YYYY-MM-DD")
		}
		end = treasury.EndOfDay(end)
	}
	return business, start, end, nil
}

// listRange answers the shared GET shape of the record collections.
func (a *API) listRange(w http.ResponseWriter, r *http.Request, load func(business string, start, end time.Time) (any, error)) {
	business, start, end, err := rangeQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := load(business, start, end)
	if err != nil {
		handleBooksError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func handleBooksError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, books.ErrDuplicateDate):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, books.ErrImmutableRecord), errors.Is(err, books.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, books.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleJournalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvariantViolation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrUnbalancedEntry),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrImmutableEntry):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleTreasuryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, treasury.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
