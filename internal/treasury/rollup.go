package treasury

import (
	"context"
	"errors"
	"sync"
	"time"

	"mizan.org/internal/books"
	"mizan.org/internal/obs"
)

// Rollup computes chained per-period cash positions. Writes for the same
// business are serialized so two concurrent recomputes cannot interleave
// their read-modify-write of the upsert.
type Rollup struct {
	store Store
	src   books.Service

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRollup creates a rollup over the given period store and record source.
func NewRollup(store Store, src books.Service) *Rollup {
	return &Rollup{
		store: store,
		src:   src,
		locks: make(map[string]*sync.Mutex),
	}
}

// EndOfDay extends a date to 23:59:59.999 so range aggregation includes the
// whole final day.
func EndOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999e6, time.UTC)
}

// ComputePeriod builds and upserts the period [start, end] for a business.
// The opening balance chains from the most recent prior period; a failed
// prior lookup degrades to 0 with a logged warning rather than blocking the
// business's reporting.
func (r *Rollup) ComputePeriod(ctx context.Context, business string, start, end time.Time) (Period, error) {
	lock := r.businessLock(business)
	lock.Lock()
	defer lock.Unlock()

	end = EndOfDay(end)

	opening := 0.0
	prior, err := r.store.FindPrior(ctx, business, start)
	switch {
	case err == nil:
		opening = prior.ClosingBalance
	case errors.Is(err, ErrNotFound):
		// first period of the chain
	default:
		obs.Warn("treasury", "prior period lookup failed, opening balance degraded to 0", err, map[string]any{
			"business": business,
			"start":    start.Format("2006-01-02"),
		})
	}

	dailies, err := r.src.DailyRevenuesInRange(ctx, business, start, end)
	if err != nil {
		return Period{}, err
	}
	var revenueFromDaily, expensesFromDaily float64
	for _, rec := range dailies {
		rec = books.Recompute(rec)
		revenueFromDaily += rec.Summary.TotalRevenue
		expensesFromDaily += rec.Summary.TotalExpenses
	}

	expenses, err := r.src.ExpensesInRange(ctx, business, start, end)
	if err != nil {
		return Period{}, err
	}
	var fixedExpenses float64
	for _, e := range expenses {
		fixedExpenses += e.Amount
	}

	payrolls, err := r.src.PayrollsInRange(ctx, business, start, end)
	if err != nil {
		return Period{}, err
	}
	var payrollOutflows float64
	for _, p := range payrolls {
		payrollOutflows += p.NetSalary
	}

	inflows := revenueFromDaily
	outflows := expensesFromDaily + fixedExpenses + payrollOutflows

	period := Period{
		Business:       business,
		Start:          start,
		End:            end,
		OpeningBalance: opening,
		TotalInflows:   inflows,
		TotalOutflows:  outflows,
		ClosingBalance: opening + inflows - outflows,
		Details: Details{
			RevenueFromDaily:  revenueFromDaily,
			ExpensesFromDaily: expensesFromDaily,
			FixedExpenses:     fixedExpenses,
			PayrollOutflows:   payrollOutflows,
		},
		ComputedAt: time.Now().UTC(),
	}

	stored, err := r.store.Upsert(ctx, period)
	if err != nil {
		return Period{}, err
	}
	obs.ObserveTreasuryRecompute()
	return stored, nil
}

// RecomputeFrom walks the business's existing periods starting at the first
// one whose start is not before from, in chronological order, and recomputes
// each. Corrections to history propagate down the chain this way; a single
// ComputePeriod never cascades on its own.
func (r *Rollup) RecomputeFrom(ctx context.Context, business string, from time.Time) ([]Period, error) {
	periods, err := r.store.ListByBusiness(ctx, business)
	if err != nil {
		return nil, err
	}

	var recomputed []Period
	for _, p := range periods {
		if p.Start.Before(from) {
			continue
		}
		updated, err := r.ComputePeriod(ctx, business, p.Start, p.End)
		if err != nil {
			return recomputed, err
		}
		recomputed = append(recomputed, updated)
	}
	return recomputed, nil
}

func (r *Rollup) businessLock(business string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[business]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[business] = lock
	}
	return lock
}
