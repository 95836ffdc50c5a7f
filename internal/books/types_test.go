package books

import (
	"math"
	"testing"
	"time"
)

func TestRecomputeDerivations(t *testing.T) {
	rec := DailyRevenue{
		Cash: CashRevenue{Sales: 500, Returns: 50},
		Card: CardRevenue{Sales: 300, Returns: 20},
		OtherRevenue: []RevenueItem{
			{Type: "delivery", Amount: 100},
			{Type: "catering", Amount: 40},
		},
		PettyExpenses: 30,
		OtherExpenses: []ExpenseItem{
			{Description: "cleaning", Amount: 25},
		},
	}

	got := Recompute(rec)

	if got.Cash.NetCash != 450 {
		t.Fatalf("net cash = %v, want 450", got.Cash.NetCash)
	}
	if got.Card.NetCard != 280 {
		t.Fatalf("net card = %v, want 280", got.Card.NetCard)
	}
	if got.Summary.TotalRevenue != 870 {
		t.Fatalf("total revenue = %v, want 870", got.Summary.TotalRevenue)
	}
	if got.Summary.TotalExpenses != 55 {
		t.Fatalf("total expenses = %v, want 55", got.Summary.TotalExpenses)
	}
	if got.Summary.NetDaily != 815 {
		t.Fatalf("net daily = %v, want 815", got.Summary.NetDaily)
	}
}

func TestRecomputeOverwritesStaleSummary(t *testing.T) {
	rec := DailyRevenue{
		Cash:    CashRevenue{Sales: 100, NetCash: 9999},
		Summary: Summary{TotalRevenue: 12345, NetDaily: -1},
	}
	got := Recompute(rec)
	if got.Summary.TotalRevenue != 100 || got.Summary.NetDaily != 100 {
		t.Fatalf("stale summary survived recompute: %+v", got.Summary)
	}
}

func TestRecomputeIsPure(t *testing.T) {
	rec := DailyRevenue{Cash: CashRevenue{Sales: 10}}
	_ = Recompute(rec)
	if rec.Summary.TotalRevenue != 0 {
		t.Fatal("Recompute mutated its argument")
	}
}

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusDraft, StatusPosted},
		{StatusPosted, StatusVerified},
	}
	for _, tc := range allowed {
		if _, err := Transition(DailyRevenue{Status: tc.from}, tc.to); err != nil {
			t.Fatalf("%s -> %s should be allowed: %v", tc.from, tc.to, err)
		}
	}

	statuses := []Status{StatusDraft, StatusPosted, StatusVerified}
	for _, from := range statuses {
		for _, to := range statuses {
			if (from == StatusDraft && to == StatusPosted) || (from == StatusPosted && to == StatusVerified) {
				continue
			}
			if _, err := Transition(DailyRevenue{Status: from}, to); err != ErrInvalidTransition {
				t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
			}
		}
	}
}

func TestRecomputeFloatTolerance(t *testing.T) {
	rec := DailyRevenue{
		Cash: CashRevenue{Sales: 0.1},
		Card: CardRevenue{Sales: 0.2},
	}
	got := Recompute(rec)
	if math.Abs(got.Summary.TotalRevenue-0.3) > 1e-9 {
		t.Fatalf("total revenue = %v", got.Summary.TotalRevenue)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)
	c := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if !SameDay(a, b) {
		t.Fatal("same calendar day not recognised")
	}
	if SameDay(a, c) {
		t.Fatal("different days reported equal")
	}
}
