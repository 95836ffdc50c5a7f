package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func balancedEntry(business string, date time.Time) Entry {
	return Entry{
		Business:    business,
		Date:        date,
		Description: "test entry",
		Postings: []Posting{
			{AccountNumber: "5700", AccountName: "Cash", AccountType: AccountFinancial, Debit: 100},
			{AccountNumber: "7000", AccountName: "Sales Revenue", AccountType: AccountRevenue, Credit: 100},
		},
	}
}

func TestCreateAssignsPieceNumbersPerYear(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	e1, err := s.CreateEntry(ctx, balancedEntry("b1", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatal(err)
	}
	if e1.PieceNumber != "JE-2024-00001" {
		t.Fatalf("first piece = %s", e1.PieceNumber)
	}

	e2, _ := s.CreateEntry(ctx, balancedEntry("b1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	if e2.PieceNumber != "JE-2024-00002" {
		t.Fatalf("second piece = %s", e2.PieceNumber)
	}

	// a new year restarts the sequence
	e3, _ := s.CreateEntry(ctx, balancedEntry("b1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	if e3.PieceNumber != "JE-2025-00001" {
		t.Fatalf("new year piece = %s", e3.PieceNumber)
	}

	seq, err := s.HighestPieceSequence(ctx, 2024)
	if err != nil || seq != 2 {
		t.Fatalf("highest 2024 = %d, err = %v", seq, err)
	}
}

func TestCreateRejectsInvalidPostings(t *testing.T) {
	s := NewInMemory()
	e := balancedEntry("b1", time.Now().UTC())
	e.Postings[0].Credit = 50 // both sides set
	if _, err := s.CreateEntry(context.Background(), e); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestLifecycleAndImmutability(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	e, _ := s.CreateEntry(ctx, balancedEntry("b1", time.Now().UTC()))

	if _, err := s.TransitionEntry(ctx, e.ID, StatusVerified); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("DRAFT->VERIFIED: expected ErrInvalidTransition, got %v", err)
	}

	posted, err := s.TransitionEntry(ctx, e.ID, StatusPosted)
	if err != nil || posted.Status != StatusPosted {
		t.Fatalf("posting failed: %v", err)
	}

	if err := s.DeleteEntry(ctx, e.ID); !errors.Is(err, ErrImmutableEntry) {
		t.Fatalf("posted entry deleted: %v", err)
	}

	verified, err := s.TransitionEntry(ctx, e.ID, StatusVerified)
	if err != nil || verified.Status != StatusVerified {
		t.Fatalf("verification failed: %v", err)
	}

	verified.Description = "edited"
	if _, err := s.UpdateEntry(ctx, verified); !errors.Is(err, ErrImmutableEntry) {
		t.Fatalf("verified entry edited: %v", err)
	}
	if err := s.DeleteEntry(ctx, e.ID); !errors.Is(err, ErrImmutableEntry) {
		t.Fatalf("verified entry deleted: %v", err)
	}
}

func TestTransitionRejectsUnbalanced(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	e := balancedEntry("b1", time.Now().UTC())
	e.Postings[1].Credit = 90 // 10 off
	created, err := s.CreateEntry(ctx, e)
	if err != nil {
		t.Fatal(err)
	}
	if created.IsBalanced {
		t.Fatal("entry should not be balanced")
	}
	if _, err := s.TransitionEntry(ctx, created.ID, StatusPosted); !errors.Is(err, ErrUnbalancedEntry) {
		t.Fatalf("expected ErrUnbalancedEntry, got %v", err)
	}
	got, _ := s.GetEntry(ctx, created.ID)
	if got.Status != StatusDraft {
		t.Fatalf("status changed despite rejection: %s", got.Status)
	}
}

func TestUpdateRecomputesTotals(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	e, _ := s.CreateEntry(ctx, balancedEntry("b1", time.Now().UTC()))
	e.Postings[0].Debit = 250
	e.Postings[1].Credit = 250
	updated, err := s.UpdateEntry(ctx, e)
	if err != nil {
		t.Fatal(err)
	}
	if updated.TotalDebit != 250 || updated.TotalCredit != 250 || !updated.IsBalanced {
		t.Fatalf("totals not recomputed: %+v", updated)
	}
	if updated.PieceNumber != e.PieceNumber {
		t.Fatalf("piece number changed on update")
	}
}

func TestDeleteDraft(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	e, _ := s.CreateEntry(ctx, balancedEntry("b1", time.Now().UTC()))
	if err := s.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetEntry(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListEntriesFilters(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := balancedEntry("b1", base.AddDate(0, 0, i))
		e.Description = fmt.Sprintf("entry %d", i)
		if _, err := s.CreateEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	other := balancedEntry("b2", base)
	if _, err := s.CreateEntry(ctx, other); err != nil {
		t.Fatal(err)
	}

	res, err := s.ListEntries(ctx, ListFilter{Business: "b1", Limit: 2, Page: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 5 || res.TotalPages != 3 || len(res.Entries) != 2 {
		t.Fatalf("pagination wrong: total=%d pages=%d page len=%d", res.Total, res.TotalPages, len(res.Entries))
	}
	if res.Entries[0].Date.Before(res.Entries[1].Date) {
		t.Fatal("not sorted newest first")
	}

	res, _ = s.ListEntries(ctx, ListFilter{Business: "b1", Search: "entry 3"})
	if res.Total != 1 || res.Entries[0].Description != "entry 3" {
		t.Fatalf("search failed: %+v", res)
	}

	res, _ = s.ListEntries(ctx, ListFilter{Business: "b1", Search: "sales revenue"})
	if res.Total != 5 {
		t.Fatalf("account name search failed: total=%d", res.Total)
	}

	res, _ = s.ListEntries(ctx, ListFilter{
		Business:  "b1",
		StartDate: base.AddDate(0, 0, 3),
		EndDate:   base.AddDate(0, 0, 4),
	})
	if res.Total != 2 {
		t.Fatalf("date filter failed: total=%d", res.Total)
	}
}

func TestConcurrentCreatesKeepSequencesUnique(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	N := 50
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.CreateEntry(ctx, balancedEntry("b1", date))
		}()
	}
	wg.Wait()

	res, _ := s.ListEntries(ctx, ListFilter{Business: "b1", Limit: 100})
	seen := make(map[string]bool)
	for _, e := range res.Entries {
		if seen[e.PieceNumber] {
			t.Fatalf("duplicate piece number %s", e.PieceNumber)
		}
		seen[e.PieceNumber] = true
	}
	if len(seen) != N {
		t.Fatalf("expected %d unique piece numbers, got %d", N, len(seen))
	}
}
