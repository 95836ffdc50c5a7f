package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mizan.org/internal/ids"
	"mizan.org/internal/treasury"
)

var _ treasury.Store = (*Store)(nil)

const periodColumns = `id, business, period_start, period_end,
	opening_balance, total_inflows, total_outflows, closing_balance,
	revenue_from_daily, expenses_from_daily, fixed_expenses, payroll_outflows, computed_at`

func (s *Store) FindPrior(ctx context.Context, business string, before time.Time) (treasury.Period, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+periodColumns+` from treasury_periods
		where business=$1 and period_end < $2
		order by period_end desc limit 1
	`, business, before)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return treasury.Period{}, treasury.ErrNotFound
	}
	return p, err
}

func (s *Store) Upsert(ctx context.Context, p treasury.Period) (treasury.Period, error) {
	if p.ID == "" {
		p.ID = ids.New()
	}
	// full replace, existing row keeps its id
	err := s.db.QueryRowContext(ctx, `
		insert into treasury_periods(`+periodColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		on conflict (business, period_start) do update
		set period_end=excluded.period_end,
		    opening_balance=excluded.opening_balance,
		    total_inflows=excluded.total_inflows,
		    total_outflows=excluded.total_outflows,
		    closing_balance=excluded.closing_balance,
		    revenue_from_daily=excluded.revenue_from_daily,
		    expenses_from_daily=excluded.expenses_from_daily,
		    fixed_expenses=excluded.fixed_expenses,
		    payroll_outflows=excluded.payroll_outflows,
		    computed_at=excluded.computed_at
		returning id
	`, p.ID, p.Business, p.Start, p.End,
		p.OpeningBalance, p.TotalInflows, p.TotalOutflows, p.ClosingBalance,
		p.Details.RevenueFromDaily, p.Details.ExpensesFromDaily,
		p.Details.FixedExpenses, p.Details.PayrollOutflows, p.ComputedAt).Scan(&p.ID)
	if err != nil {
		return treasury.Period{}, err
	}
	return p, nil
}

func (s *Store) ListByBusiness(ctx context.Context, business string) ([]treasury.Period, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+periodColumns+` from treasury_periods
		where business=$1 order by period_start asc
	`, business)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []treasury.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (treasury.Period, error) {
	row := s.db.QueryRowContext(ctx, `select `+periodColumns+` from treasury_periods where id=$1`, id)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return treasury.Period{}, treasury.ErrNotFound
	}
	return p, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from treasury_periods where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return treasury.ErrNotFound
	}
	return nil
}

func scanPeriod(row rowScanner) (treasury.Period, error) {
	var p treasury.Period
	if err := row.Scan(&p.ID, &p.Business, &p.Start, &p.End,
		&p.OpeningBalance, &p.TotalInflows, &p.TotalOutflows, &p.ClosingBalance,
		&p.Details.RevenueFromDaily, &p.Details.ExpensesFromDaily,
		&p.Details.FixedExpenses, &p.Details.PayrollOutflows, &p.ComputedAt); err != nil {
		return treasury.Period{}, err
	}
	return p, nil
}
