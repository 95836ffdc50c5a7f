package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"mizan.org/internal/books"
	"mizan.org/internal/ids"
)

var _ books.Service = (*Store)(nil)

const revenueColumns = `id, business, date, cash_sales, cash_returns, card_sales, card_returns,
	other_revenue, petty_expenses, other_expenses, total_revenue, total_expenses, net_daily,
	notes, auto_journal_entry, journal_entry_id, status, created_at, updated_at`

func (s *Store) CreateDailyRevenue(ctx context.Context, rec books.DailyRevenue) (books.DailyRevenue, error) {
	rec = books.Recompute(rec)
	rec.ID = ids.New()
	if rec.Status == "" {
		rec.Status = books.StatusDraft
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	otherRev, otherExp, err := marshalItems(rec)
	if err != nil {
		return books.DailyRevenue{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return books.DailyRevenue{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var dup int
	err = tx.QueryRowContext(ctx, `
		select 1 from daily_revenues where business=$1 and date::date = $2::date for update
	`, rec.Business, rec.Date).Scan(&dup)
	if err == nil {
		return books.DailyRevenue{}, books.ErrDuplicateDate
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return books.DailyRevenue{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into daily_revenues(`+revenueColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, rec.ID, rec.Business, rec.Date,
		rec.Cash.Sales, rec.Cash.Returns, rec.Card.Sales, rec.Card.Returns,
		otherRev, rec.PettyExpenses, otherExp,
		rec.Summary.TotalRevenue, rec.Summary.TotalExpenses, rec.Summary.NetDaily,
		rec.Notes, rec.AutoJournalEntry, rec.JournalEntryID,
		rec.Status, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return books.DailyRevenue{}, err
	}
	if err := tx.Commit(); err != nil {
		return books.DailyRevenue{}, err
	}
	return rec, nil
}

func (s *Store) GetDailyRevenue(ctx context.Context, id string) (books.DailyRevenue, error) {
	row := s.db.QueryRowContext(ctx, `select `+revenueColumns+` from daily_revenues where id=$1`, id)
	rec, err := scanRevenue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return books.DailyRevenue{}, books.ErrNotFound
	}
	return rec, err
}

func (s *Store) UpdateDailyRevenue(ctx context.Context, rec books.DailyRevenue) (books.DailyRevenue, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return books.DailyRevenue{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `select `+revenueColumns+` from daily_revenues where id=$1 for update`, rec.ID)
	current, err := scanRevenue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return books.DailyRevenue{}, books.ErrNotFound
	}
	if err != nil {
		return books.DailyRevenue{}, err
	}
	if current.Status == books.StatusVerified {
		return books.DailyRevenue{}, books.ErrImmutableRecord
	}

	var dup int
	err = tx.QueryRowContext(ctx, `
		select 1 from daily_revenues where business=$1 and date::date = $2::date and id <> $3
	`, rec.Business, rec.Date, rec.ID).Scan(&dup)
	if err == nil {
		return books.DailyRevenue{}, books.ErrDuplicateDate
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return books.DailyRevenue{}, err
	}

	rec = books.Recompute(rec)
	rec.Status = current.Status
	rec.CreatedAt = current.CreatedAt
	rec.UpdatedAt = time.Now().UTC()

	otherRev, otherExp, err := marshalItems(rec)
	if err != nil {
		return books.DailyRevenue{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		update daily_revenues
		set business=$2, date=$3, cash_sales=$4, cash_returns=$5, card_sales=$6, card_returns=$7,
		    other_revenue=$8, petty_expenses=$9, other_expenses=$10,
		    total_revenue=$11, total_expenses=$12, net_daily=$13,
		    notes=$14, auto_journal_entry=$15, journal_entry_id=$16, updated_at=$17
		where id=$1
	`, rec.ID, rec.Business, rec.Date,
		rec.Cash.Sales, rec.Cash.Returns, rec.Card.Sales, rec.Card.Returns,
		otherRev, rec.PettyExpenses, otherExp,
		rec.Summary.TotalRevenue, rec.Summary.TotalExpenses, rec.Summary.NetDaily,
		rec.Notes, rec.AutoJournalEntry, rec.JournalEntryID, rec.UpdatedAt); err != nil {
		return books.DailyRevenue{}, err
	}
	if err := tx.Commit(); err != nil {
		return books.DailyRevenue{}, err
	}
	return rec, nil
}

func (s *Store) DeleteDailyRevenue(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status books.Status
	err = tx.QueryRowContext(ctx, `select status from daily_revenues where id=$1 for update`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return books.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != books.StatusDraft {
		return books.ErrImmutableRecord
	}
	if _, err := tx.ExecContext(ctx, `delete from daily_revenues where id=$1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) TransitionDailyRevenue(ctx context.Context, id string, target books.Status) (books.DailyRevenue, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return books.DailyRevenue{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `select `+revenueColumns+` from daily_revenues where id=$1 for update`, id)
	rec, err := scanRevenue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return books.DailyRevenue{}, books.ErrNotFound
	}
	if err != nil {
		return books.DailyRevenue{}, err
	}

	moved, err := books.Transition(rec, target)
	if err != nil {
		return books.DailyRevenue{}, err
	}
	moved.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		update daily_revenues set status=$2, updated_at=$3 where id=$1
	`, moved.ID, moved.Status, moved.UpdatedAt); err != nil {
		return books.DailyRevenue{}, err
	}
	if err := tx.Commit(); err != nil {
		return books.DailyRevenue{}, err
	}
	return moved, nil
}

func (s *Store) ListDailyRevenues(ctx context.Context, business string) ([]books.DailyRevenue, error) {
	return s.queryRevenues(ctx, `
		select `+revenueColumns+` from daily_revenues where business=$1 order by date desc
	`, business)
}

func (s *Store) DailyRevenuesInRange(ctx context.Context, business string, start, end time.Time) ([]books.DailyRevenue, error) {
	return s.queryRevenues(ctx, `
		select `+revenueColumns+` from daily_revenues
		where business=$1 and date >= $2 and date <= $3
		order by date asc
	`, business, start, end)
}

func (s *Store) queryRevenues(ctx context.Context, query string, args ...any) ([]books.DailyRevenue, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []books.DailyRevenue
	for rows.Next() {
		rec, err := scanRevenue(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *Store) CreateExpense(ctx context.Context, e books.Expense) (books.Expense, error) {
	if e.ID == "" {
		e.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into expenses(id, business, category, date, amount, tax, vendor, reference)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, e.ID, e.Business, e.Category, e.Date, e.Amount, e.Tax, e.Vendor, e.Reference)
	return e, err
}

func (s *Store) CreateInvoice(ctx context.Context, inv books.Invoice) (books.Invoice, error) {
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into invoices(id, business, client_name, date, total)
		values ($1,$2,$3,$4,$5)
	`, inv.ID, inv.Business, inv.ClientName, inv.Date, inv.Total)
	return inv, err
}

func (s *Store) CreateTaxReport(ctx context.Context, tr books.TaxReport) (books.TaxReport, error) {
	if tr.ID == "" {
		tr.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into tax_reports(id, business, date, income, expenses, tax_rate, calculated_tax)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, tr.ID, tr.Business, tr.Date, tr.Income, tr.Expenses, tr.TaxRate, tr.CalculatedTax)
	return tr, err
}

func (s *Store) CreatePayroll(ctx context.Context, p books.Payroll) (books.Payroll, error) {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into payrolls(id, business, employee_id, period, gross_salary, net_salary)
		values ($1,$2,$3,$4,$5,$6)
	`, p.ID, p.Business, p.EmployeeID, p.Period, p.GrossSalary, p.NetSalary)
	return p, err
}

func (s *Store) ExpensesInRange(ctx context.Context, business string, start, end time.Time) ([]books.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, business, category, date, amount, tax, vendor, reference
		from expenses where business=$1 and date >= $2 and date <= $3 order by date asc
	`, business, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []books.Expense
	for rows.Next() {
		var e books.Expense
		if err := rows.Scan(&e.ID, &e.Business, &e.Category, &e.Date, &e.Amount, &e.Tax, &e.Vendor, &e.Reference); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (s *Store) InvoicesInRange(ctx context.Context, business string, start, end time.Time) ([]books.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, business, client_name, date, total
		from invoices where business=$1 and date >= $2 and date <= $3 order by date asc
	`, business, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []books.Invoice
	for rows.Next() {
		var inv books.Invoice
		if err := rows.Scan(&inv.ID, &inv.Business, &inv.ClientName, &inv.Date, &inv.Total); err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}

func (s *Store) TaxReportsInRange(ctx context.Context, business string, start, end time.Time) ([]books.TaxReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, business, date, income, expenses, tax_rate, calculated_tax
		from tax_reports where business=$1 and date >= $2 and date <= $3 order by date asc
	`, business, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []books.TaxReport
	for rows.Next() {
		var tr books.TaxReport
		if err := rows.Scan(&tr.ID, &tr.Business, &tr.Date, &tr.Income, &tr.Expenses, &tr.TaxRate, &tr.CalculatedTax); err != nil {
			return nil, err
		}
		res = append(res, tr)
	}
	return res, rows.Err()
}

func (s *Store) PayrollsInRange(ctx context.Context, business string, start, end time.Time) ([]books.Payroll, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, business, employee_id, period, gross_salary, net_salary
		from payrolls where business=$1 and period >= $2 and period <= $3 order by period asc
	`, business, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []books.Payroll
	for rows.Next() {
		var p books.Payroll
		if err := rows.Scan(&p.ID, &p.Business, &p.EmployeeID, &p.Period, &p.GrossSalary, &p.NetSalary); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func marshalItems(rec books.DailyRevenue) ([]byte, []byte, error) {
	otherRev, err := json.Marshal(rec.OtherRevenue)
	if err != nil {
		return nil, nil, err
	}
	otherExp, err := json.Marshal(rec.OtherExpenses)
	if err != nil {
		return nil, nil, err
	}
	return otherRev, otherExp, nil
}

func scanRevenue(row rowScanner) (books.DailyRevenue, error) {
	var rec books.DailyRevenue
	var otherRev, otherExp []byte
	if err := row.Scan(&rec.ID, &rec.Business, &rec.Date,
		&rec.Cash.Sales, &rec.Cash.Returns, &rec.Card.Sales, &rec.Card.Returns,
		&otherRev, &rec.PettyExpenses, &otherExp,
		&rec.Summary.TotalRevenue, &rec.Summary.TotalExpenses, &rec.Summary.NetDaily,
		&rec.Notes, &rec.AutoJournalEntry, &rec.JournalEntryID,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return books.DailyRevenue{}, err
	}
	if len(otherRev) > 0 {
		if err := json.Unmarshal(otherRev, &rec.OtherRevenue); err != nil {
			return books.DailyRevenue{}, err
		}
	}
	if len(otherExp) > 0 {
		if err := json.Unmarshal(otherExp, &rec.OtherExpenses); err != nil {
			return books.DailyRevenue{}, err
		}
	}
	// derived fields come back recomputed, not trusted from storage
	return books.Recompute(rec), nil
}
