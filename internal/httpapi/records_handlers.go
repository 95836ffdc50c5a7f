package httpapi

import (
	"net/http"
	"strings"
	"time"

	"mizan.org/internal/books"
)

type expenseRequest struct {
	Business  string  `json:"business" validate:"required"`
	Category  string  `json:"category"`
	Date      string  `json:"date" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	Tax       float64 `json:"tax" validate:"gte=0"`
	Vendor    string  `json:"vendor"`
	Reference string  `json:"reference"`
}

type invoiceRequest struct {
	Business   string  `json:"business" validate:"required"`
	ClientName string  `json:"client_name" validate:"required"`
	Date       string  `json:"date" validate:"required"`
	Total      float64 `json:"total" validate:"gt=0"`
}

type taxReportRequest struct {
	Business string  `json:"business" validate:"required"`
	Date     string  `json:"date" validate:"required"`
	Income   float64 `json:"income" validate:"gte=0"`
	Expenses float64 `json:"expenses" validate:"gte=0"`
	TaxRate  float64 `json:"tax_rate" validate:"gte=0,lte=1"`
}

type payrollRequest struct {
	Business    string  `json:"business" validate:"required"`
	EmployeeID  string  `json:"employee_id" validate:"required"`
	Period      string  `json:"period" validate:"required"`
	GrossSalary float64 `json:"gross_salary" validate:"gt=0"`
	NetSalary   float64 `json:"net_salary" validate:"gt=0"`
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
	case http.MethodGet:
		a.listRange(w, r, func(business string, start, end time.Time) (any, error) {
			return a.records.ExpensesInRange(r.Context(), business, start, end)
		})
		return
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}

	var req expenseRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	created, err := a.records.CreateExpense(r.Context(), books.Expense{
		Business:  strings.TrimSpace(req.Business),
		Category:  req.Category,
		Date:      d,
		Amount:    req.Amount,
		Tax:       req.Tax,
		Vendor:    req.Vendor,
		Reference: req.Reference,
	})
	if err != nil {
		handleBooksError(w, r, err)
		return
	}
	a.audit(r.Context(), "expense.created", "expense", created.ID, map[string]any{
		"business": created.Business,
		"amount":   created.Amount,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
	case http.MethodGet:
		a.listRange(w, r, func(business string, start, end time.Time) (any, error) {
			return a.records.InvoicesInRange(r.Context(), business, start, end)
		})
		return
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}

	var req invoiceRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	created, err := a.records.CreateInvoice(r.Context(), books.Invoice{
		Business:   strings.TrimSpace(req.Business),
		ClientName: req.ClientName,
		Date:       d,
		Total:      req.Total,
	})
	if err != nil {
		handleBooksError(w, r, err)
		return
	}
	a.audit(r.Context(), "invoice.created", "invoice", created.ID, map[string]any{
		"business": created.Business,
		"total":    created.Total,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleTaxReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
	case http.MethodGet:
		a.listRange(w, r, func(business string, start, end time.Time) (any, error) {
			return a.records.TaxReportsInRange(r.Context(), business, start, end)
		})
		return
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}

	var req taxReportRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	created, err := a.records.CreateTaxReport(r.Context(), books.TaxReport{
		Business:      strings.TrimSpace(req.Business),
		Date:          d,
		Income:        req.Income,
		Expenses:      req.Expenses,
		TaxRate:       req.TaxRate,
		CalculatedTax: (req.Income - req.Expenses) * req.TaxRate,
	})
	if err != nil {
		handleBooksError(w, r, err)
		return
	}
	a.audit(r.Context(), "tax_report.created", "tax_report", created.ID, map[string]any{
		"business": created.Business,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handlePayrolls(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
	case http.MethodGet:
		a.listRange(w, r, func(business string, start, end time.Time) (any, error) {
			return a.records.PayrollsInRange(r.Context(), business, start, end)
		})
		return
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}

	var req payrollRequest
	if err := a.decodeValid(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d, err := parseDate(req.Period)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "period must be YYYY-MM-DD")
		return
	}

	created, err := a.records.CreatePayroll(r.Context(), books.Payroll{
		Business:    strings.TrimSpace(req.Business),
		EmployeeID:  req.EmployeeID,
		Period:      d,
		GrossSalary: req.GrossSalary,
		NetSalary:   req.NetSalary,
	})
	if err != nil {
		handleBooksError(w, r, err)
		return
	}
	a.audit(r.Context(), "payroll.created", "payroll", created.ID, map[string]any{
		"business": created.Business,
	})
	writeJSON(w, http.StatusCreated, created)
}
