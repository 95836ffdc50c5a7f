package ledger

import (
	"errors"
	"strings"
	"testing"
)

func TestRecomputeTotals(t *testing.T) {
	e := Entry{Postings: []Posting{
		{AccountNumber: "5700", Debit: 100},
		{AccountNumber: "4110", Debit: 50.5},
		{AccountNumber: "7000", Credit: 150.5},
	}}
	got := Recompute(e)
	if got.TotalDebit != 150.5 || got.TotalCredit != 150.5 {
		t.Fatalf("totals = %v / %v", got.TotalDebit, got.TotalCredit)
	}
	if !got.IsBalanced {
		t.Fatal("expected balanced")
	}
}

func TestRecomputeToleranceBoundary(t *testing.T) {
	within := Recompute(Entry{Postings: []Posting{
		{Debit: 100.009},
		{Credit: 100},
	}})
	if !within.IsBalanced {
		t.Fatalf("gap 0.009 should be within tolerance")
	}

	outside := Recompute(Entry{Postings: []Posting{
		{Debit: 100.02},
		{Credit: 100},
	}})
	if outside.IsBalanced {
		t.Fatalf("gap 0.02 should exceed tolerance")
	}
}

func TestValidatePosting(t *testing.T) {
	cases := []struct {
		name    string
		p       Posting
		wantErr bool
	}{
		{"debit only", Posting{AccountNumber: "5700", Debit: 10}, false},
		{"credit only", Posting{AccountNumber: "7000", Credit: 10}, false},
		{"both sides", Posting{AccountNumber: "5700", Debit: 10, Credit: 10}, true},
		{"neither side", Posting{AccountNumber: "5700"}, true},
		{"negative debit", Posting{AccountNumber: "5700", Debit: -5}, true},
		{"bad account", Posting{AccountNumber: "97000", Debit: 10}, true},
		{"too long account", Posting{AccountNumber: "570000", Debit: 10}, true},
		{"non numeric account", Posting{AccountNumber: "57a0", Debit: 10}, true},
	}
	for _, tc := range cases {
		err := ValidatePosting(tc.p)
		if tc.wantErr && !errors.Is(err, ErrInvariantViolation) {
			t.Fatalf("%s: expected ErrInvariantViolation, got %v", tc.name, err)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestValidatePostingsReportsIndex(t *testing.T) {
	err := ValidatePostings([]Posting{
		{AccountNumber: "5700", Debit: 10},
		{AccountNumber: "7000"},
	})
	if err == nil || !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	if !strings.Contains(err.Error(), "posting 1") {
		t.Fatalf("error %q does not name the posting index", err)
	}
}

func TestTransitionTable(t *testing.T) {
	balanced := Entry{Status: StatusDraft, IsBalanced: true}

	posted, err := Transition(balanced, StatusPosted)
	if err != nil || posted.Status != StatusPosted {
		t.Fatalf("DRAFT->POSTED failed: %v", err)
	}
	verified, err := Transition(posted, StatusVerified)
	if err != nil || verified.Status != StatusVerified {
		t.Fatalf("POSTED->VERIFIED failed: %v", err)
	}

	statuses := []Status{StatusDraft, StatusPosted, StatusVerified}
	for _, from := range statuses {
		for _, to := range statuses {
			if (from == StatusDraft && to == StatusPosted) || (from == StatusPosted && to == StatusVerified) {
				continue
			}
			_, err := Transition(Entry{Status: from, IsBalanced: true}, to)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
			}
		}
	}
}

func TestTransitionRequiresBalance(t *testing.T) {
	unbalanced := Entry{Status: StatusDraft, IsBalanced: false}
	if _, err := Transition(unbalanced, StatusPosted); !errors.Is(err, ErrUnbalancedEntry) {
		t.Fatalf("expected ErrUnbalancedEntry, got %v", err)
	}

	postedUnbalanced := Entry{Status: StatusPosted, IsBalanced: false}
	if _, err := Transition(postedUnbalanced, StatusVerified); !errors.Is(err, ErrUnbalancedEntry) {
		t.Fatalf("expected ErrUnbalancedEntry, got %v", err)
	}
}

func TestMutabilityRules(t *testing.T) {
	if err := AssertMutable(Entry{Status: StatusVerified}); !errors.Is(err, ErrImmutableEntry) {
		t.Fatalf("verified entry should be immutable, got %v", err)
	}
	if err := AssertMutable(Entry{Status: StatusPosted}); err != nil {
		t.Fatalf("posted entry should still be editable: %v", err)
	}
	if err := AssertDeletable(Entry{Status: StatusPosted}); !errors.Is(err, ErrImmutableEntry) {
		t.Fatalf("posted entry should not be deletable, got %v", err)
	}
	if err := AssertDeletable(Entry{Status: StatusVerified}); !errors.Is(err, ErrImmutableEntry) {
		t.Fatalf("verified entry should not be deletable, got %v", err)
	}
	if err := AssertDeletable(Entry{Status: StatusDraft}); err != nil {
		t.Fatalf("draft entry should be deletable: %v", err)
	}
}

func TestNextPieceNumber(t *testing.T) {
	if got := NextPieceNumber(2024, 0); got != "JE-2024-00001" {
		t.Fatalf("first of year = %s", got)
	}
	if got := NextPieceNumber(2024, 37); got != "JE-2024-00038" {
		t.Fatalf("after 37 = %s", got)
	}
}

func TestPieceSequence(t *testing.T) {
	seq, err := PieceSequence("JE-2024-00042")
	if err != nil || seq != 42 {
		t.Fatalf("seq = %d, err = %v", seq, err)
	}
	if _, err := PieceSequence("JE-24-00042"); err == nil {
		t.Fatal("malformed piece number accepted")
	}
}

func TestAccountTypeFor(t *testing.T) {
	cases := map[string]AccountType{
		"1000":  AccountCapital,
		"21":    AccountFixedAsset,
		"3":     AccountInventory,
		"4110":  AccountThirdParty,
		"5700":  AccountFinancial,
		"60600": AccountExpense,
		"7000":  AccountRevenue,
	}
	for num, want := range cases {
		got, ok := AccountTypeFor(num)
		if !ok || got != want {
			t.Fatalf("AccountTypeFor(%s) = %s/%v, want %s", num, got, ok, want)
		}
	}
	for _, bad := range []string{"", "0100", "8100", "9", "123456", "12a4"} {
		if _, ok := AccountTypeFor(bad); ok {
			t.Fatalf("AccountTypeFor(%q) unexpectedly ok", bad)
		}
	}
}
