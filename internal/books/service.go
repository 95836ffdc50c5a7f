package books

import (
	"context"
	"sort"
	"sync"
	"time"

	"mizan.org/internal/ids"
)

// Service exposes the record operations the engine consumes and the intake
// of the auxiliary records feeding it.
type Service interface {
	CreateDailyRevenue(ctx context.Context, rec DailyRevenue) (DailyRevenue, error)
	GetDailyRevenue(ctx context.Context, id string) (DailyRevenue, error)
	UpdateDailyRevenue(ctx context.Context, rec DailyRevenue) (DailyRevenue, error)
	DeleteDailyRevenue(ctx context.Context, id string) error
	TransitionDailyRevenue(ctx context.Context, id string, target Status) (DailyRevenue, error)

	// ListDailyRevenues returns all records of a business, newest first.
	ListDailyRevenues(ctx context.Context, business string) ([]DailyRevenue, error)
	DailyRevenuesInRange(ctx context.Context, business string, start, end time.Time) ([]DailyRevenue, error)

	CreateExpense(ctx context.Context, e Expense) (Expense, error)
	CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	CreateTaxReport(ctx context.Context, tr TaxReport) (TaxReport, error)
	CreatePayroll(ctx context.Context, p Payroll) (Payroll, error)

	ExpensesInRange(ctx context.Context, business string, start, end time.Time) ([]Expense, error)
	InvoicesInRange(ctx context.Context, business string, start, end time.Time) ([]Invoice, error)
	TaxReportsInRange(ctx context.Context, business string, start, end time.Time) ([]TaxReport, error)
	PayrollsInRange(ctx context.Context, business string, start, end time.Time) ([]Payroll, error)
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu       sync.RWMutex
	revenues map[string]*DailyRevenue
	expenses []Expense
	invoices []Invoice
	taxes    []TaxReport
	payrolls []Payroll
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty record store.
func NewInMemory() *InMemory {
	return &InMemory{revenues: make(map[string]*DailyRevenue)}
}

func (s *InMemory) CreateDailyRevenue(ctx context.Context, rec DailyRevenue) (DailyRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.revenues {
		if existing.Business == rec.Business && SameDay(existing.Date, rec.Date) {
			return DailyRevenue{}, ErrDuplicateDate
		}
	}

	rec = Recompute(rec)
	rec.ID = ids.New()
	if rec.Status == "" {
		rec.Status = StatusDraft
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	stored := rec
	s.revenues[rec.ID] = &stored
	return rec, nil
}

func (s *InMemory) GetDailyRevenue(ctx context.Context, id string) (DailyRevenue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.revenues[id]
	if !ok {
		return DailyRevenue{}, ErrNotFound
	}
	return *rec, nil
}

func (s *InMemory) UpdateDailyRevenue(ctx context.Context, rec DailyRevenue) (DailyRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.revenues[rec.ID]
	if !ok {
		return DailyRevenue{}, ErrNotFound
	}
	if current.Status == StatusVerified {
		return DailyRevenue{}, ErrImmutableRecord
	}
	for id, existing := range s.revenues {
		if id != rec.ID && existing.Business == rec.Business && SameDay(existing.Date, rec.Date) {
			return DailyRevenue{}, ErrDuplicateDate
		}
	}

	rec = Recompute(rec)
	rec.Status = current.Status
	rec.CreatedAt = current.CreatedAt
	rec.UpdatedAt = time.Now().UTC()

	stored := rec
	s.revenues[rec.ID] = &stored
	return rec, nil
}

func (s *InMemory) DeleteDailyRevenue(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.revenues[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusDraft {
		return ErrImmutableRecord
	}
	delete(s.revenues, id)
	return nil
}

func (s *InMemory) TransitionDailyRevenue(ctx context.Context, id string, target Status) (DailyRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.revenues[id]
	if !ok {
		return DailyRevenue{}, ErrNotFound
	}
	moved, err := Transition(*rec, target)
	if err != nil {
		return DailyRevenue{}, err
	}
	moved.UpdatedAt = time.Now().UTC()
	stored := moved
	s.revenues[id] = &stored
	return moved, nil
}

func (s *InMemory) ListDailyRevenues(ctx context.Context, business string) ([]DailyRevenue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []DailyRevenue
	for _, rec := range s.revenues {
		if rec.Business == business {
			res = append(res, *rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.After(res[j].Date) })
	return res, nil
}

func (s *InMemory) DailyRevenuesInRange(ctx context.Context, business string, start, end time.Time) ([]DailyRevenue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []DailyRevenue
	for _, rec := range s.revenues {
		if rec.Business == business && inRange(rec.Date, start, end) {
			res = append(res, *rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}

func (s *InMemory) ExpensesInRange(ctx context.Context, business string, start, end time.Time) ([]Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []Expense
	for _, e := range s.expenses {
		if e.Business == business && inRange(e.Date, start, end) {
			res = append(res, e)
		}
	}
	return res, nil
}

func (s *InMemory) InvoicesInRange(ctx context.Context, business string, start, end time.Time) ([]Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []Invoice
	for _, inv := range s.invoices {
		if inv.Business == business && inRange(inv.Date, start, end) {
			res = append(res, inv)
		}
	}
	return res, nil
}

func (s *InMemory) TaxReportsInRange(ctx context.Context, business string, start, end time.Time) ([]TaxReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []TaxReport
	for _, t := range s.taxes {
		if t.Business == business && inRange(t.Date, start, end) {
			res = append(res, t)
		}
	}
	return res, nil
}

func (s *InMemory) PayrollsInRange(ctx context.Context, business string, start, end time.Time) ([]Payroll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []Payroll
	for _, p := range s.payrolls {
		if p.Business == business && inRange(p.Period, start, end) {
			res = append(res, p)
		}
	}
	return res, nil
}

func (s *InMemory) CreateExpense(ctx context.Context, e Expense) (Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = ids.New()
	}
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *InMemory) CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	s.invoices = append(s.invoices, inv)
	return inv, nil
}

func (s *InMemory) CreateTaxReport(ctx context.Context, tr TaxReport) (TaxReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tr.ID == "" {
		tr.ID = ids.New()
	}
	s.taxes = append(s.taxes, tr)
	return tr, nil
}

func (s *InMemory) CreatePayroll(ctx context.Context, p Payroll) (Payroll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	s.payrolls = append(s.payrolls, p)
	return p, nil
}

// Add* helpers seed records in tests where the error cannot occur.

func (s *InMemory) AddExpense(e Expense) { _, _ = s.CreateExpense(context.Background(), e) }

func (s *InMemory) AddInvoice(inv Invoice) { _, _ = s.CreateInvoice(context.Background(), inv) }

func (s *InMemory) AddTaxReport(t TaxReport) { _, _ = s.CreateTaxReport(context.Background(), t) }

func (s *InMemory) AddPayroll(p Payroll) { _, _ = s.CreatePayroll(context.Background(), p) }

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
