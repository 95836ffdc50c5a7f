// Package pg persists the engine's records in PostgreSQL. One Store serves
// journal entries, daily books records and treasury periods.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mizan.org/internal/ids"
	"mizan.org/internal/ledger"
)

type Store struct {
	db *sql.DB
}

var _ ledger.Service = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const entryColumns = `id, piece_number, business, date, description, fiscal_year, postings,
	total_debit, total_credit, is_balanced, ref_kind, ref_document_id, status, created_at, updated_at`

func (s *Store) CreateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	if err := ledger.ValidatePostings(e.Postings); err != nil {
		return ledger.Entry{}, err
	}

	now := time.Now().UTC()
	if e.Date.IsZero() {
		e.Date = now
	}
	year := e.Date.Year()
	if e.FiscalYear == "" {
		e.FiscalYear = strconv.Itoa(year)
	}
	if e.Status == "" {
		e.Status = ledger.StatusDraft
	}
	if e.Reference.Kind == "" {
		e.Reference.Kind = ledger.RefManual
	}
	e.ID = ids.New()
	e.CreatedAt = now
	e.UpdatedAt = now
	e = ledger.Recompute(e)

	postings, err := json.Marshal(e.Postings)
	if err != nil {
		return ledger.Entry{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize piece numbering per fiscal year
	if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock($1)`, int64(year)); err != nil {
		return ledger.Entry{}, err
	}
	var highest int
	if err := tx.QueryRowContext(ctx, `
		select coalesce(max(cast(right(piece_number, 5) as int)), 0)
		from journal_entries where fiscal_year=$1
	`, e.FiscalYear).Scan(&highest); err != nil {
		return ledger.Entry{}, err
	}
	e.PieceNumber = ledger.NextPieceNumber(year, highest)

	if _, err := tx.ExecContext(ctx, `
		insert into journal_entries(`+entryColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, e.ID, e.PieceNumber, e.Business, e.Date, e.Description, e.FiscalYear, postings,
		e.TotalDebit, e.TotalCredit, e.IsBalanced, e.Reference.Kind, e.Reference.DocumentID,
		e.Status, e.CreatedAt, e.UpdatedAt); err != nil {
		return ledger.Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (ledger.Entry, error) {
	row := s.db.QueryRowContext(ctx, `select `+entryColumns+` from journal_entries where id=$1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return e, err
}

func (s *Store) UpdateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	if err := ledger.ValidatePostings(e.Postings); err != nil {
		return ledger.Entry{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `select `+entryColumns+` from journal_entries where id=$1 for update`, e.ID)
	current, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Entry{}, err
	}
	if err := ledger.AssertMutable(current); err != nil {
		return ledger.Entry{}, err
	}

	// identity and lifecycle fields are not editable
	e.PieceNumber = current.PieceNumber
	e.FiscalYear = current.FiscalYear
	e.Status = current.Status
	e.CreatedAt = current.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	e = ledger.Recompute(e)

	postings, err := json.Marshal(e.Postings)
	if err != nil {
		return ledger.Entry{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		update journal_entries
		set business=$2, date=$3, description=$4, postings=$5,
		    total_debit=$6, total_credit=$7, is_balanced=$8,
		    ref_kind=$9, ref_document_id=$10, updated_at=$11
		where id=$1
	`, e.ID, e.Business, e.Date, e.Description, postings,
		e.TotalDebit, e.TotalCredit, e.IsBalanced,
		e.Reference.Kind, e.Reference.DocumentID, e.UpdatedAt); err != nil {
		return ledger.Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status ledger.Status
	err = tx.QueryRowContext(ctx, `select status from journal_entries where id=$1 for update`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := ledger.AssertDeletable(ledger.Entry{Status: status}); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from journal_entries where id=$1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) TransitionEntry(ctx context.Context, id string, target ledger.Status) (ledger.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `select `+entryColumns+` from journal_entries where id=$1 for update`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Entry{}, err
	}

	moved, err := ledger.Transition(ledger.Recompute(e), target)
	if err != nil {
		return ledger.Entry{}, err
	}
	moved.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		update journal_entries
		set total_debit=$2, total_credit=$3, is_balanced=$4, status=$5, updated_at=$6
		where id=$1
	`, moved.ID, moved.TotalDebit, moved.TotalCredit, moved.IsBalanced, moved.Status, moved.UpdatedAt); err != nil {
		return ledger.Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, err
	}
	return moved, nil
}

func (s *Store) ListEntries(ctx context.Context, f ledger.ListFilter) (ledger.ListResult, error) {
	where, args := entryFilter(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from journal_entries`+where, args...).Scan(&total); err != nil {
		return ledger.ListResult{}, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := `select ` + entryColumns + ` from journal_entries` + where +
		` order by date desc, piece_number desc` +
		` limit $` + strconv.Itoa(len(args)+1) + ` offset $` + strconv.Itoa(len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return ledger.ListResult{}, err
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return ledger.ListResult{}, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return ledger.ListResult{}, err
	}

	return ledger.ListResult{
		Entries:    entries,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
		Page:       page,
	}, nil
}

func (s *Store) HighestPieceSequence(ctx context.Context, year int) (int, error) {
	var highest int
	err := s.db.QueryRowContext(ctx, `
		select coalesce(max(cast(right(piece_number, 5) as int)), 0)
		from journal_entries where fiscal_year=$1
	`, strconv.Itoa(year)).Scan(&highest)
	return highest, err
}

func entryFilter(f ledger.ListFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Business != "" {
		add("business=$%d", f.Business)
	}
	if f.Status != "" {
		add("status=$%d", f.Status)
	}
	if !f.StartDate.IsZero() {
		add("date >= $%d", f.StartDate)
	}
	if !f.EndDate.IsZero() {
		add("date <= $%d", f.EndDate)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(piece_number ilike $%d or description ilike $%d or postings::text ilike $%d)", n, n, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (ledger.Entry, error) {
	var e ledger.Entry
	var postings []byte
	if err := row.Scan(&e.ID, &e.PieceNumber, &e.Business, &e.Date, &e.Description, &e.FiscalYear,
		&postings, &e.TotalDebit, &e.TotalCredit, &e.IsBalanced,
		&e.Reference.Kind, &e.Reference.DocumentID, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return ledger.Entry{}, err
	}
	if len(postings) > 0 {
		if err := json.Unmarshal(postings, &e.Postings); err != nil {
			return ledger.Entry{}, err
		}
	}
	return e, nil
}
