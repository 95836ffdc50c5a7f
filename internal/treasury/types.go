package treasury

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"mizan.org/internal/ids"
)

// Details breaks a period's flows down by source.
type Details struct {
	RevenueFromDaily  float64 `json:"revenue_from_daily"`
	ExpensesFromDaily float64 `json:"expenses_from_daily"`
	FixedExpenses     float64 `json:"fixed_expenses"`
	PayrollOutflows   float64 `json:"payroll_outflows"`
}

// Period is one business's cash position over a date range. Periods form a
// chain ordered by date: each opening balance is the closing balance of the
// most recent prior period.
type Period struct {
	ID       string    `json:"id"`
	Business string    `json:"business"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`

	OpeningBalance float64 `json:"opening_balance"`
	TotalInflows   float64 `json:"total_inflows"`
	TotalOutflows  float64 `json:"total_outflows"`
	ClosingBalance float64 `json:"closing_balance"`

	Details    Details   `json:"details"`
	ComputedAt time.Time `json:"computed_at"`
}

var ErrNotFound = errors.New("not found")

// Store persists treasury periods, keyed by (business, start).
type Store interface {
	// FindPrior returns the most recent period of the business whose end
	// date precedes before.
	FindPrior(ctx context.Context, business string, before time.Time) (Period, error)

	// Upsert replaces the period for (business, start) or inserts it. The
	// replace is full: no field survives from a previous computation.
	Upsert(ctx context.Context, p Period) (Period, error)

	// ListByBusiness returns all periods of a business in start order.
	ListByBusiness(ctx context.Context, business string) ([]Period, error)

	Get(ctx context.Context, id string) (Period, error)
	Delete(ctx context.Context, id string) error
}

// InMemoryStore implements Store with in-process concurrency safety.
type InMemoryStore struct {
	mu      sync.RWMutex
	periods map[string]*Period // keyed by business + start
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty period store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{periods: make(map[string]*Period)}
}

func upsertKey(business string, start time.Time) string {
	return business + "|" + start.UTC().Format("2006-01-02")
}

func (s *InMemoryStore) FindPrior(ctx context.Context, business string, before time.Time) (Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Period
	for _, p := range s.periods {
		if p.Business != business || !p.End.Before(before) {
			continue
		}
		if best == nil || p.End.After(best.End) {
			best = p
		}
	}
	if best == nil {
		return Period{}, ErrNotFound
	}
	return *best, nil
}

func (s *InMemoryStore) Upsert(ctx context.Context, p Period) (Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := upsertKey(p.Business, p.Start)
	if existing, ok := s.periods[key]; ok {
		p.ID = existing.ID
	} else if p.ID == "" {
		p.ID = ids.New()
	}
	stored := p
	s.periods[key] = &stored
	return p, nil
}

func (s *InMemoryStore) ListByBusiness(ctx context.Context, business string) ([]Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []Period
	for _, p := range s.periods {
		if p.Business == business {
			res = append(res, *p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Start.Before(res[j].Start) })
	return res, nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.periods {
		if p.ID == id {
			return *p, nil
		}
	}
	return Period{}, ErrNotFound
}

func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.periods {
		if p.ID == id {
			delete(s.periods, key)
			return nil
		}
	}
	return ErrNotFound
}
