package books

import (
	"errors"
	"time"
)

// Status is the lifecycle of a daily revenue record. It mirrors the journal
// entry lifecycle: monotonic, no skipping, no reversal.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusVerified Status = "VERIFIED"
)

var validTransitions = map[Status]Status{
	StatusDraft:  StatusPosted,
	StatusPosted: StatusVerified,
}

// CashRevenue is the cash register sub-record of a day.
type CashRevenue struct {
	Sales   float64 `json:"sales"`
	Returns float64 `json:"returns"`
	NetCash float64 `json:"net_cash"`
}

// CardRevenue is the card terminal sub-record of a day.
type CardRevenue struct {
	Sales   float64 `json:"sales"`
	Returns float64 `json:"returns"`
	NetCard float64 `json:"net_card"`
}

// RevenueItem is an additional typed revenue line (e.g. delivery platforms).
type RevenueItem struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// ExpenseItem is an additional named expense line paid out of the day's cash.
type ExpenseItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Summary holds the derived totals of a day. It is recomputed on every write
// and again on every read that feeds anomaly detection; stored values are
// never trusted to be fresh relative to the source fields.
type Summary struct {
	TotalRevenue  float64 `json:"total_revenue"`
	TotalExpenses float64 `json:"total_expenses"`
	NetDaily      float64 `json:"net_daily"`
}

// DailyRevenue is one business day's takings. Unique per (business, date).
type DailyRevenue struct {
	ID       string    `json:"id"`
	Business string    `json:"business"`
	Date     time.Time `json:"date"`

	Cash         CashRevenue   `json:"cash"`
	Card         CardRevenue   `json:"card"`
	OtherRevenue []RevenueItem `json:"other_revenue,omitempty"`

	PettyExpenses float64       `json:"petty_expenses"`
	OtherExpenses []ExpenseItem `json:"other_expenses,omitempty"`

	Summary Summary `json:"summary"`
	Notes   string  `json:"notes,omitempty"`

	AutoJournalEntry bool   `json:"auto_journal_entry"`
	JournalEntryID   string `json:"journal_entry_id,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expense is an independent fixed-expense record (rent, utilities, ...).
type Expense struct {
	ID        string    `json:"id"`
	Business  string    `json:"business"`
	Category  string    `json:"category"`
	Date      time.Time `json:"date"`
	Amount    float64   `json:"amount"`
	Tax       float64   `json:"tax"`
	Vendor    string    `json:"vendor"`
	Reference string    `json:"reference"`
}

// Invoice is a client invoice; only its total feeds the detector.
type Invoice struct {
	ID         string    `json:"id"`
	Business   string    `json:"business"`
	ClientName string    `json:"client_name"`
	Date       time.Time `json:"date"`
	Total      float64   `json:"total"`
}

// TaxReport is a computed tax declaration for a period.
type TaxReport struct {
	ID            string    `json:"id"`
	Business      string    `json:"business"`
	Date          time.Time `json:"date"`
	Income        float64   `json:"income"`
	Expenses      float64   `json:"expenses"`
	TaxRate       float64   `json:"tax_rate"`
	CalculatedTax float64   `json:"calculated_tax"`
}

// Payroll is one employee's pay for a period; NetSalary is the cash outflow.
type Payroll struct {
	ID          string    `json:"id"`
	Business    string    `json:"business"`
	EmployeeID  string    `json:"employee_id"`
	Period      time.Time `json:"period"`
	GrossSalary float64   `json:"gross_salary"`
	NetSalary   float64   `json:"net_salary"`
}

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateDate     = errors.New("a daily revenue record already exists for this date")
	ErrImmutableRecord   = errors.New("record is no longer mutable")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Recompute returns a copy of rec with all derived fields rebuilt from the
// source fields.
func Recompute(rec DailyRevenue) DailyRevenue {
	rec.Cash.NetCash = rec.Cash.Sales - rec.Cash.Returns
	rec.Card.NetCard = rec.Card.Sales - rec.Card.Returns

	other := 0.0
	for _, item := range rec.OtherRevenue {
		other += item.Amount
	}
	rec.Summary.TotalRevenue = rec.Cash.NetCash + rec.Card.NetCard + other

	otherExp := 0.0
	for _, item := range rec.OtherExpenses {
		otherExp += item.Amount
	}
	rec.Summary.TotalExpenses = rec.PettyExpenses + otherExp

	rec.Summary.NetDaily = rec.Summary.TotalRevenue - rec.Summary.TotalExpenses
	return rec
}

// Transition validates and applies a lifecycle move. Allowed moves are exactly
// DRAFT->POSTED and POSTED->VERIFIED.
func Transition(rec DailyRevenue, target Status) (DailyRevenue, error) {
	if next, ok := validTransitions[rec.Status]; !ok || next != target {
		return rec, ErrInvalidTransition
	}
	rec.Status = target
	return rec, nil
}

// SameDay reports whether two dates fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
