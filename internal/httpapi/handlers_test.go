package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"mizan.org/internal/anomaly"
	"mizan.org/internal/books"
	"mizan.org/internal/ledger"
	"mizan.org/internal/treasury"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	records := books.NewInMemory()
	periods := treasury.NewInMemoryStore()
	api := New(Deps{
		Journal:    ledger.NewInMemory(),
		Records:    records,
		Detector:   anomaly.New(records, anomaly.DefaultConfig()),
		Rollup:     treasury.NewRollup(periods, records),
		Periods:    periods,
		RateBurst:  100,
		RatePerSec: 100,
	}, "test")

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any) *http.Response {
	return c.do(http.MethodPost, path, body)
}

func (c *apiClient) get(path string, params url.Values) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestJournalEntryLifecycleFlow(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/journal-entries", map[string]any{
		"business":    "biz-1",
		"date":        "2024-03-10",
		"description": "Office chair",
		"postings": []map[string]any{
			{"account_number": "6100", "account_name": "Office Expenses", "debit": 250},
			{"account_number": "5700", "account_name": "Cash", "credit": 250},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	entry := decode[map[string]any](t, resp)
	if entry["piece_number"] != "JE-2024-00001" {
		t.Fatalf("unexpected piece number: %v", entry["piece_number"])
	}
	if entry["is_balanced"] != true {
		t.Fatalf("expected balanced entry")
	}
	id := entry["id"].(string)

	// DRAFT -> POSTED
	resp = api.post("/v1/journal-entries/"+id+"/status", map[string]any{"status": "POSTED"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transition status: %d", resp.StatusCode)
	}
	moved := decode[map[string]any](t, resp)
	if moved["status"] != "POSTED" {
		t.Fatalf("unexpected status: %v", moved["status"])
	}

	// POSTED entries cannot be deleted
	resp = api.do(http.MethodDelete, "/v1/journal-entries/"+id, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 deleting posted entry, got %d", resp.StatusCode)
	}

	// skipping a stage is rejected
	resp = api.post("/v1/journal-entries/"+id+"/status", map[string]any{"status": "DRAFT"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for reversal, got %d", resp.StatusCode)
	}
}

func TestJournalEntryRejectsDoubleSidedPosting(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/journal-entries", map[string]any{
		"business": "biz-1",
		"postings": []map[string]any{
			{"account_number": "5700", "account_name": "Cash", "debit": 100, "credit": 100},
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUnbalancedEntryStaysDraft(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/journal-entries", map[string]any{
		"business": "biz-1",
		"postings": []map[string]any{
			{"account_number": "5700", "account_name": "Cash", "debit": 100},
			{"account_number": "7000", "account_name": "Revenue", "credit": 80},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	entry := decode[map[string]any](t, resp)
	if entry["is_balanced"] != false {
		t.Fatalf("expected unbalanced entry to be stored as draft")
	}
	id := entry["id"].(string)

	resp = api.post("/v1/journal-entries/"+id+"/status", map[string]any{"status": "POSTED"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 posting unbalanced entry, got %d", resp.StatusCode)
	}
}

func TestRevenueCreateGeneratesJournalEntry(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/revenues", map[string]any{
		"business":           "biz-1",
		"date":               "2024-03-10",
		"cash":               map[string]any{"sales": 400},
		"card":               map[string]any{"sales": 300},
		"auto_journal_entry": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	payload := decode[revenueResponse](t, resp)

	if payload.Record.Summary.TotalRevenue != 700 {
		t.Fatalf("summary not derived: %+v", payload.Record.Summary)
	}
	if payload.JournalEntry == nil {
		t.Fatal("expected auto-generated journal entry")
	}
	if !payload.JournalEntry.IsBalanced {
		t.Fatalf("generated entry unbalanced: %+v", payload.JournalEntry)
	}
	if payload.Record.JournalEntryID != payload.JournalEntry.ID {
		t.Fatalf("record not linked to its entry")
	}
	if payload.JournalEntry.Reference.DocumentID != payload.Record.ID {
		t.Fatalf("entry not referencing its record")
	}
}

func TestRevenueDuplicateDateConflict(t *testing.T) {
	api := newTestAPI(t)

	body := map[string]any{
		"business": "biz-1",
		"date":     "2024-03-10",
		"cash":     map[string]any{"sales": 100},
	}
	resp := api.post("/v1/revenues", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/revenues", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate date, got %d", resp.StatusCode)
	}
}

func TestAnomalyEndpointFlagsSpike(t *testing.T) {
	api := newTestAPI(t)

	days := []float64{100, 120, 110, 90, 105, 95}
	for i, amount := range days {
		resp := api.post("/v1/revenues", map[string]any{
			"business": "biz-1",
			"date":     fmt.Sprintf("2024-03-%02d", i+1),
			"cash":     map[string]any{"sales": amount},
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed day %d: status %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}
	resp := api.post("/v1/revenues", map[string]any{
		"business": "biz-1",
		"date":     "2024-03-10",
		"cash":     map[string]any{"sales": 10000},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("spike day: status %d", resp.StatusCode)
	}
	payload := decode[revenueResponse](t, resp)
	if payload.Anomaly == nil || !payload.Anomaly.IsAnomaly {
		t.Fatalf("expected the spike day to be flagged on write: %+v", payload.Anomaly)
	}

	resp = api.get("/v1/anomalies", url.Values{
		"business": []string{"biz-1"},
		"start":    []string{"2024-03-01"},
		"end":      []string{"2024-03-31"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("anomalies status: %d", resp.StatusCode)
	}
	summary := decode[anomaly.Summary](t, resp)
	if len(summary.Revenue) != 1 || summary.TotalAnomalies != 1 {
		t.Fatalf("expected one revenue anomaly, got %+v", summary)
	}

	resp = api.get("/v1/anomalies", url.Values{
		"business": []string{"biz-1"},
		"domain":   []string{"nonsense"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown domain, got %d", resp.StatusCode)
	}
}

func TestTreasuryPeriodChainOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/revenues", map[string]any{
		"business": "biz-1",
		"date":     "2024-01-10",
		"cash":     map[string]any{"sales": 1000},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed revenue: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/expenses", map[string]any{
		"business": "biz-1",
		"date":     "2024-01-12",
		"amount":   400.0,
		"category": "rent",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed expense: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/treasury/periods", map[string]any{
		"business": "biz-1",
		"start":    "2024-01-01",
		"end":      "2024-01-15",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("compute period: status %d", resp.StatusCode)
	}
	a := decode[treasury.Period](t, resp)
	if a.ClosingBalance != 600 {
		t.Fatalf("period A closing = %v, want 600", a.ClosingBalance)
	}

	resp = api.post("/v1/treasury/periods", map[string]any{
		"business": "biz-1",
		"start":    "2024-01-16",
		"end":      "2024-01-31",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("compute period B: status %d", resp.StatusCode)
	}
	b := decode[treasury.Period](t, resp)
	if b.OpeningBalance != 600 {
		t.Fatalf("period B opening = %v, want 600", b.OpeningBalance)
	}

	resp = api.get("/v1/treasury/periods", url.Values{"business": []string{"biz-1"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list periods: status %d", resp.StatusCode)
	}
	listing := decode[map[string]any](t, resp)
	if listing["total"].(float64) != 2 {
		t.Fatalf("expected 2 periods, got %v", listing["total"])
	}
}

func TestValidationRejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/journal-entries", map[string]any{
		"business": "biz-1",
		"surprise": true,
		"postings": []map[string]any{{"account_number": "5700", "account_name": "Cash", "debit": 10}},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
}

func TestHealthAndInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	resp = api.get("/v1/info", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status: %d", resp.StatusCode)
	}
	info := decode[map[string]any](t, resp)
	if info["version"] != "test" {
		t.Fatalf("unexpected version: %v", info["version"])
	}
}
