package ledger

import (
	"testing"
	"time"

	"mizan.org/internal/books"
)

func TestFromDailyRevenueBalancedDay(t *testing.T) {
	rec := books.DailyRevenue{
		ID:       "rev-1",
		Business: "b1",
		Date:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Cash:     books.CashRevenue{Sales: 500, Returns: 100},
		Card:     books.CardRevenue{Sales: 300, Returns: 0},
	}

	e := FromDailyRevenue(rec, time.Now().UTC())

	if len(e.Postings) != 3 {
		t.Fatalf("postings = %d, want 3", len(e.Postings))
	}
	if e.Status != StatusDraft {
		t.Fatalf("status = %s", e.Status)
	}
	if e.FiscalYear != "2024" {
		t.Fatalf("fiscal year = %s", e.FiscalYear)
	}
	if e.Reference.Kind != RefDailyRevenue || e.Reference.DocumentID != "rev-1" {
		t.Fatalf("reference = %+v", e.Reference)
	}

	cash := e.Postings[0]
	if cash.AccountNumber != "5700" || cash.AccountType != AccountFinancial || cash.Debit != 400 || cash.Credit != 0 {
		t.Fatalf("cash posting = %+v", cash)
	}
	card := e.Postings[1]
	if card.AccountNumber != "4110" || card.AccountType != AccountThirdParty || card.Debit != 300 {
		t.Fatalf("card posting = %+v", card)
	}
	rev := e.Postings[2]
	if rev.AccountNumber != "7000" || rev.AccountType != AccountRevenue || rev.Credit != 700 || rev.Debit != 0 {
		t.Fatalf("revenue posting = %+v", rev)
	}

	if !e.IsBalanced || e.TotalDebit != 700 || e.TotalCredit != 700 {
		t.Fatalf("entry not balanced: %+v", e)
	}

	if err := ValidatePostings(e.Postings); err != nil {
		t.Fatalf("generated postings invalid: %v", err)
	}
}

func TestFromDailyRevenueSkipsZeroNets(t *testing.T) {
	rec := books.DailyRevenue{
		Business: "b1",
		Date:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Card:     books.CardRevenue{Sales: 150},
	}
	e := FromDailyRevenue(rec, time.Now().UTC())
	if len(e.Postings) != 2 {
		t.Fatalf("postings = %d, want 2 (card + revenue)", len(e.Postings))
	}
	if e.Postings[0].AccountNumber != "4110" {
		t.Fatalf("first posting = %+v", e.Postings[0])
	}
}

func TestFromDailyRevenueNegativeDayFlipsSides(t *testing.T) {
	// a returns-heavy day: net cash is negative, revenue is debited
	rec := books.DailyRevenue{
		Business: "b1",
		Date:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Cash:     books.CashRevenue{Sales: 50, Returns: 200},
	}
	e := FromDailyRevenue(rec, time.Now().UTC())

	cash := e.Postings[0]
	if cash.Credit != 150 || cash.Debit != 0 {
		t.Fatalf("cash posting should be credited 150: %+v", cash)
	}
	rev := e.Postings[1]
	if rev.Debit != 150 || rev.Credit != 0 {
		t.Fatalf("revenue posting should be debited 150: %+v", rev)
	}
	if !e.IsBalanced {
		t.Fatal("negative day should still balance")
	}
	if err := ValidatePostings(e.Postings); err != nil {
		t.Fatalf("generated postings invalid: %v", err)
	}
}

func TestFromDailyRevenueIgnoresStaleSummary(t *testing.T) {
	rec := books.DailyRevenue{
		Business: "b1",
		Date:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Cash:     books.CashRevenue{Sales: 100, NetCash: 9999},
		Summary:  books.Summary{TotalRevenue: 555},
	}
	e := FromDailyRevenue(rec, time.Now().UTC())
	if e.Postings[0].Debit != 100 {
		t.Fatalf("stale net cash used: %+v", e.Postings[0])
	}
	if e.Postings[1].Credit != 100 {
		t.Fatalf("stale total revenue used: %+v", e.Postings[1])
	}
}
