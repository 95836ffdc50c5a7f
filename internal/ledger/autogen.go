package ledger

import (
	"fmt"
	"time"

	"mizan.org/internal/books"
)

// Fixed accounts used by the daily revenue auto-generation path.
const (
	cashAccountNumber    = "5700"
	cardAccountNumber    = "4110"
	revenueAccountNumber = "7000"
)

// FromDailyRevenue builds the DRAFT journal entry for a daily revenue record:
// up to three postings (cash, card receivable, sales revenue), emitted only
// for non-zero net amounts. Negative nets flip the posting side so each line
// still carries exactly one positive amount. Derived totals of the record are
// rebuilt here rather than trusted.
func FromDailyRevenue(rec books.DailyRevenue, now time.Time) Entry {
	rec = books.Recompute(rec)

	e := Entry{
		Business:    rec.Business,
		Date:        rec.Date,
		Description: fmt.Sprintf("Daily revenue entry - %s", rec.Date.Format("2006-01-02")),
		FiscalYear:  fmt.Sprintf("%04d", rec.Date.Year()),
		Reference:   Reference{Kind: RefDailyRevenue, DocumentID: rec.ID},
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if net := rec.Cash.NetCash; net != 0 {
		e.Postings = append(e.Postings, splitPosting(Posting{
			AccountNumber: cashAccountNumber,
			AccountName:   "Cash",
			AccountType:   AccountFinancial,
			Description:   "Daily cash revenue",
		}, net))
	}
	if net := rec.Card.NetCard; net != 0 {
		e.Postings = append(e.Postings, splitPosting(Posting{
			AccountNumber: cardAccountNumber,
			AccountName:   "Accounts Receivable - Card Payments",
			AccountType:   AccountThirdParty,
			Description:   "Daily card revenue",
		}, net))
	}
	if total := rec.Summary.TotalRevenue; total != 0 {
		// revenue is credited when positive, debited on a net-negative day.
		// TotalRevenue includes other-revenue items that have no debit
		// counterpart here, so on days with such items the entry comes out
		// unbalanced and stays DRAFT (the status gate blocks posting it).
		e.Postings = append(e.Postings, splitPosting(Posting{
			AccountNumber: revenueAccountNumber,
			AccountName:   "Sales Revenue",
			AccountType:   AccountRevenue,
			Description:   "Daily total revenue",
		}, -total))
	}

	return Recompute(e)
}

// splitPosting places amount on the debit side when positive and on the
// credit side when negative.
func splitPosting(p Posting, amount float64) Posting {
	if amount > 0 {
		p.Debit = amount
	} else {
		p.Credit = -amount
	}
	return p
}
