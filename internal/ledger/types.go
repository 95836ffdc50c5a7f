package ledger

import (
	"errors"
	"time"
)

// Status is the lifecycle of a journal entry: DRAFT -> POSTED -> VERIFIED,
// monotonic, no skipping, no reversal.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusVerified Status = "VERIFIED"
)

// AccountType is one of the seven chart-of-accounts categories, keyed by the
// leading digit of the account number.
type AccountType string

const (
	AccountCapital    AccountType = "CAPITAL_ACCOUNTS"
	AccountFixedAsset AccountType = "FIXED_ASSETS"
	AccountInventory  AccountType = "INVENTORY_ACCOUNTS"
	AccountThirdParty AccountType = "THIRD_PARTY"
	AccountFinancial  AccountType = "FINANCIAL_ACCOUNTS"
	AccountExpense    AccountType = "EXPENSES"
	AccountRevenue    AccountType = "REVENUE"
)

var accountTypesByDigit = map[byte]AccountType{
	'1': AccountCapital,
	'2': AccountFixedAsset,
	'3': AccountInventory,
	'4': AccountThirdParty,
	'5': AccountFinancial,
	'6': AccountExpense,
	'7': AccountRevenue,
}

// ReferenceKind names the document a journal entry originates from.
type ReferenceKind string

const (
	RefInvoice      ReferenceKind = "INVOICE"
	RefPurchase     ReferenceKind = "PURCHASE"
	RefManual       ReferenceKind = "MANUAL"
	RefDailyRevenue ReferenceKind = "DAILY_REVENUE"
	RefOther        ReferenceKind = "OTHER"
)

// Reference links an entry back to its originating document.
type Reference struct {
	Kind       ReferenceKind `json:"kind"`
	DocumentID string        `json:"document_id,omitempty"`
}

// Posting is one debit or credit line within a journal entry. Exactly one of
// Debit/Credit is strictly positive.
type Posting struct {
	AccountNumber string      `json:"account_number"`
	AccountName   string      `json:"account_name"`
	AccountType   AccountType `json:"account_type"`
	Debit         float64     `json:"debit"`
	Credit        float64     `json:"credit"`
	Description   string      `json:"description,omitempty"`
}

// Entry is an atomic accounting transaction: a balanced, ordered set of
// postings identified by a year-scoped piece number.
type Entry struct {
	ID          string    `json:"id"`
	PieceNumber string    `json:"piece_number"`
	Business    string    `json:"business"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	FiscalYear  string    `json:"fiscal_year"`

	Postings []Posting `json:"postings"`

	TotalDebit  float64 `json:"total_debit"`
	TotalCredit float64 `json:"total_credit"`
	IsBalanced  bool    `json:"is_balanced"`

	Reference Reference `json:"reference"`
	Status    Status    `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNotFound           = errors.New("not found")
	ErrInvariantViolation = errors.New("posting invariant violation")
	ErrUnbalancedEntry    = errors.New("entry is not balanced")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrImmutableEntry     = errors.New("entry is no longer mutable")
)

// AccountTypeFor maps an account number to its chart-of-accounts category.
func AccountTypeFor(accountNumber string) (AccountType, bool) {
	if len(accountNumber) < 1 || len(accountNumber) > 5 {
		return "", false
	}
	for i := 0; i < len(accountNumber); i++ {
		if accountNumber[i] < '0' || accountNumber[i] > '9' {
			return "", false
		}
	}
	t, ok := accountTypesByDigit[accountNumber[0]]
	return t, ok
}
